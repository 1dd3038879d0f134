package failover

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoProviders is returned by [New] and [Orchestrator.UpdateConfig] when the
// registration set is empty or every provider is disabled. A service in this
// state must refuse to report ready.
var ErrNoProviders = errors.New("failover: no enabled providers configured")

// ErrExhausted is the sentinel matched by errors.Is against an
// [*ExhaustedError].
var ErrExhausted = errors.New("failover: all providers exhausted")

// Attempt records one failed provider invocation inside an Execute call.
type Attempt struct {
	Provider string
	Err      error
}

// ExhaustedError is returned by Execute when every eligible provider was tried
// and failed. Attempts lists the failures in the order they happened, each
// provider exactly once.
type ExhaustedError struct {
	Attempts []Attempt
}

// Error formats the per-attempt failure history.
func (e *ExhaustedError) Error() string {
	if len(e.Attempts) == 0 {
		return "failover: all providers exhausted: no eligible provider"
	}
	var sb strings.Builder
	sb.WriteString("failover: all providers exhausted: ")
	for i, a := range e.Attempts {
		if i > 0 {
			sb.WriteString("; ")
		}
		fmt.Fprintf(&sb, "%s: %v", a.Provider, a.Err)
	}
	return sb.String()
}

// Is reports a match against [ErrExhausted].
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}

// Unwrap returns the last attempt's cause, which is usually the most relevant
// error for the caller.
func (e *ExhaustedError) Unwrap() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}
