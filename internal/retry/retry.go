// Package retry runs bounded generate-and-validate loops that always end in
// a value: either an accepted attempt or a deterministic fallback.
package retry

import (
	"context"
	"errors"
)

// ErrRejected is a generic validation failure.
var ErrRejected = errors.New("attempt rejected")

// Machine drives Attempt → Validate → {Accept | Retry → Fallback}.
//
// Attempt produces a candidate for attempt n (starting at 1). An attempt
// error counts as a rejection; it is reported to OnReject and never returned.
// Validate turns a candidate into an accepted value or rejects it. Fallback
// must always succeed.
type Machine[T any] struct {
	Max      int
	Attempt  func(ctx context.Context, n int) (T, error)
	Validate func(candidate T) (T, error)
	Fallback func() T
	// OnReject is called after every rejected attempt, before the next one.
	OnReject func(n int, err error)
}

// Outcome reports how a run ended.
type Outcome[T any] struct {
	Value    T
	Attempts int
	Fallback bool
	LastErr  error
}

// Run executes the machine. A done context skips the remaining attempts and
// goes straight to the fallback.
func (m Machine[T]) Run(ctx context.Context) Outcome[T] {
	var out Outcome[T]

	for n := 1; n <= m.Max; n++ {
		if ctx.Err() != nil {
			out.LastErr = ctx.Err()
			break
		}
		out.Attempts = n

		candidate, err := m.Attempt(ctx, n)
		if err == nil && m.Validate != nil {
			candidate, err = m.Validate(candidate)
		}
		if err == nil {
			out.Value = candidate
			return out
		}

		out.LastErr = err
		if m.OnReject != nil {
			m.OnReject(n, err)
		}
	}

	out.Value = m.Fallback()
	out.Fallback = true
	return out
}
