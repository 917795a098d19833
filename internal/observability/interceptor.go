package observability

import (
	"time"
)

// Observe times fn under the given component/operation pair and counts
// failures. A nil Metrics turns it into a plain call.
func Observe(m *Metrics, component, operation string, fn func() error) error {
	if m == nil {
		return fn()
	}

	start := time.Now()
	err := fn()
	m.observeOperation(component, operation, time.Since(start), err != nil)
	return err
}
