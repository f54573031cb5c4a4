package estimator

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// AuthConfig holds the OAuth2 client credentials of the estimation service.
// A static Token is sent as is when no client id is configured.
type AuthConfig struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	TokenURL     string `json:"token_url"`
	Token        string `json:"token"`
}

func (c AuthConfig) enabled() bool {
	return c.ClientID != "" || c.Token != ""
}

// credentials caches an access token and refreshes it when it expires.
type credentials struct {
	mu     sync.Mutex
	conf   *clientcredentials.Config
	static string
	token  *oauth2.Token
}

func newCredentials(c AuthConfig) *credentials {
	if !c.enabled() {
		return nil
	}
	cr := &credentials{static: c.Token}
	if c.ClientID != "" {
		cr.conf = &clientcredentials.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			TokenURL:     c.TokenURL,
		}
	}
	return cr
}

// SetAuthHeader sets the Authorization header of r, fetching a token first
// when the cached one is missing or expired.
func (c *credentials) SetAuthHeader(ctx context.Context, r *http.Request) error {
	if c == nil {
		return nil
	}
	if c.conf == nil {
		r.Header.Set("Authorization", "Bearer "+c.static)
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == nil || !c.token.Valid() {
		tok, err := c.conf.Token(ctx)
		if err != nil {
			return fmt.Errorf("failed to get token: %w", err)
		}
		c.token = tok
	}
	c.token.SetAuthHeader(r)
	return nil
}
