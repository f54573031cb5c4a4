// Package monitoring forwards unexpected scheduling faults, such as orphaned
// tasks or store failures, to an error tracker. The default reporter drops
// them.
package monitoring

import (
	"fmt"
	"sync"
	"time"
)

// Reporter receives faults that need operator attention.
type Reporter interface {
	CaptureError(err error, tags map[string]string)
	Flush(timeout time.Duration) bool
}

// NopReporter drops every fault.
type NopReporter struct{}

func (NopReporter) CaptureError(error, map[string]string) {}
func (NopReporter) Flush(time.Duration) bool              { return true }

var (
	mu      sync.RWMutex
	current Reporter = NopReporter{}
)

// SetReporter installs the process-wide reporter. A nil reporter restores
// the no-op default.
func SetReporter(r Reporter) {
	mu.Lock()
	defer mu.Unlock()
	if r == nil {
		r = NopReporter{}
	}
	current = r
}

func reporter() Reporter {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// CaptureError reports err with optional tags. Nil errors are ignored.
func CaptureError(err error, tags map[string]string) {
	if err == nil {
		return
	}
	reporter().CaptureError(err, tags)
}

// Flush waits for buffered reports to be delivered.
func Flush(timeout time.Duration) bool {
	return reporter().Flush(timeout)
}

// Recover reports a panic and re-raises it. It must be deferred directly.
func Recover(tags map[string]string) {
	if r := recover(); r != nil {
		CaptureError(fmt.Errorf("panic: %v", r), tags)
		Flush(2 * time.Second)
		panic(r)
	}
}
