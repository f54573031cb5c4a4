package model

import "strings"

// Worker is a crew member identified by email.
type Worker struct {
	Email        string  `json:"email"`
	Name         string  `json:"name"`
	PrimarySkill string  `json:"primary_skill"`
	HourlyCost   float64 `json:"hourly_cost"`
}

// CanPerform reports whether the worker holds the required skill. An empty
// requirement accepts every worker.
func (w Worker) CanPerform(skill string) bool {
	skill = strings.TrimSpace(skill)
	if skill == "" {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(w.PrimarySkill), skill)
}
