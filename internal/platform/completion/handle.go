// Package completion provides a one-shot completion handle: one party settles it,
// any number of parties await it with a bounded deadline.
package completion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/btcpayserver/btcpayserver-sub006/internal/apperrors"
	"github.com/google/uuid"
)

// Handle is a one-shot result slot. The zero value is not usable; use New.
type Handle struct {
	id   string
	once sync.Once
	done chan struct{}
	err  error
}

// New creates a pending handle.
func New() *Handle {
	return &Handle{
		id:   uuid.NewString(),
		done: make(chan struct{}),
	}
}

// ID returns the opaque identity of the handle.
func (h *Handle) ID() string {
	return h.id
}

// Settle records err (nil means success) and wakes every awaiter.
// Only the first call has an effect; it reports whether this call settled the handle.
func (h *Handle) Settle(err error) bool {
	settled := false
	h.once.Do(func() {
		h.err = err
		close(h.done)
		settled = true
	})
	return settled
}

// Settled reports whether the handle has been settled.
func (h *Handle) Settled() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Done is closed once the handle is settled.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Await blocks until the handle is settled, timeout elapses or ctx is done.
// It returns the recorded result, or an error wrapping apperrors.ErrTimeout or
// apperrors.ErrCancelled. A pending handle cannot be awaited without a positive timeout.
func (h *Handle) Await(ctx context.Context, timeout time.Duration) error {
	if h.Settled() {
		return h.err
	}
	if timeout <= 0 {
		return fmt.Errorf("%w: await requires a positive timeout, got %s", apperrors.ErrValidation, timeout)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-h.done:
		return h.err
	case <-timer.C:
		if h.Settled() {
			return h.err
		}
		return fmt.Errorf("%w: handle %s not settled within %s", apperrors.ErrTimeout, h.id, timeout)
	case <-ctx.Done():
		if h.Settled() {
			return h.err
		}
		return fmt.Errorf("%w: %w", apperrors.ErrCancelled, ctx.Err())
	}
}
