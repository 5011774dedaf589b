package sensor

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/edss/rocket-sensors/logging"
)

// An Opener acquires the bus and runs the device's init sequence.
type Opener[T io.Closer] func(ctx context.Context) (T, error)

// handleState is one of uninitialized, opened or closed.
type handleState interface {
	isHandleState()
}

type (
	uninitialized       struct{}
	opened[T io.Closer] struct{ dev T }
	closed              struct{}
)

func (uninitialized) isHandleState() {}
func (opened[T]) isHandleState()     {}
func (closed) isHandleState()        {}

// A Handle owns the lifecycle of one physical device. The device is opened lazily on first use,
// discarded after any failed operation and re-opened on the next use.
type Handle[T io.Closer] struct {
	mu     sync.Mutex
	open   Opener[T]
	logger logging.Logger
	state  handleState
	opens  int
}

// NewHandle returns an uninitialized handle that opens devices with open.
func NewHandle[T io.Closer](open Opener[T], logger logging.Logger) *Handle[T] {
	return &Handle[T]{open: open, logger: logger, state: uninitialized{}}
}

// Use runs fn against the device, opening it first if needed. An opener failure is returned as a
// *HardwareInitError. A failure or panic of fn, or a context that is already done, discards the
// device and is returned as a *HardwareReadError.
func (h *Handle[T]) Use(ctx context.Context, fn func(ctx context.Context, dev T) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.state.(closed); ok {
		return ErrHandleClosed
	}
	if err := ctx.Err(); err != nil {
		h.discard()
		return &HardwareReadError{Err: err}
	}

	if _, ok := h.state.(uninitialized); ok {
		dev, err := h.open(ctx)
		if err != nil {
			return &HardwareInitError{Err: err}
		}
		h.opens++
		h.state = opened[T]{dev: dev}
		h.logger.CDebugw(ctx, "opened device", "opens", h.opens)
	}

	dev := h.state.(opened[T]).dev
	if err := callRecovered(ctx, dev, fn); err != nil {
		h.discard()
		var readErr *HardwareReadError
		if errors.As(err, &readErr) {
			return err
		}
		return &HardwareReadError{Err: err}
	}
	return nil
}

// callRecovered runs fn, turning a panic into an error.
func callRecovered[T io.Closer](ctx context.Context, dev T, fn func(ctx context.Context, dev T) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Errorf("panic using device: %v", rec)
		}
	}()
	return fn(ctx, dev)
}

// discard closes and forgets an open device. Close errors are logged, not returned.
func (h *Handle[T]) discard() {
	st, ok := h.state.(opened[T])
	if !ok {
		return
	}
	h.state = uninitialized{}
	if err := st.dev.Close(); err != nil {
		h.logger.Warnw("error closing discarded device", "error", err)
	}
	h.logger.Debug("discarded device")
}

// Reset discards any open device so that the next Use opens a fresh one.
func (h *Handle[T]) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.discard()
}

// Close closes any open device. The handle cannot be used afterwards.
func (h *Handle[T]) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	var err error
	if st, ok := h.state.(opened[T]); ok {
		err = st.dev.Close()
	}
	h.state = closed{}
	return err
}

// IsOpen returns whether a device is currently open.
func (h *Handle[T]) IsOpen() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.state.(opened[T])
	return ok
}

// Opens returns how many times a device was successfully opened.
func (h *Handle[T]) Opens() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.opens
}
