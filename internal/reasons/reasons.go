// Package reasons carries the human-readable trail of evaluation steps that
// accompanies every decision.
package reasons

import "fmt"

// Reasons is an ordered log of evaluation steps.
type Reasons []string

// Addf formats a message, appends it and returns it so callers can log the
// same text.
func (r *Reasons) Addf(format string, args ...any) string {
	msg := fmt.Sprintf(format, args...)
	*r = append(*r, msg)
	return msg
}

// Merge appends other after the existing entries.
func (r *Reasons) Merge(other Reasons) {
	*r = append(*r, other...)
}

// Result is a decision value paired with the reasons that produced it.
type Result[T any] struct {
	Value   T
	Reasons Reasons
}

// NewResult builds a Result.
func NewResult[T any](value T, r Reasons) Result[T] {
	return Result[T]{Value: value, Reasons: r}
}
