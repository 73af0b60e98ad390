// Package quota enforces seat limits on user provisioning.
package quota

import (
	"context"
	"fmt"
)

// Checker reports whether the deployment can accept another active user.
type Checker interface {
	// WithinLimit returns true when at least one seat is free.
	WithinLimit(ctx context.Context) (bool, error)
}

// UserCounter is the subset of the user repository the checker needs.
type UserCounter interface {
	CountActive(ctx context.Context) (int, error)
}

// SeatChecker compares the active-user count against a fixed cap.
// A cap of zero or below means unlimited.
type SeatChecker struct {
	counter UserCounter
	cap     int
}

func NewSeatChecker(counter UserCounter, cap int) *SeatChecker {
	return &SeatChecker{counter: counter, cap: cap}
}

func (c *SeatChecker) WithinLimit(ctx context.Context) (bool, error) {
	if c.cap <= 0 {
		return true, nil
	}
	n, err := c.counter.CountActive(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to count active users: %w", err)
	}
	return n < c.cap, nil
}

// StaticChecker always answers the same. Useful in tests and for
// deployments without seat limits.
type StaticChecker struct {
	Allowed bool
}

func (c StaticChecker) WithinLimit(ctx context.Context) (bool, error) {
	return c.Allowed, nil
}
