package callback

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Registry manages registered callbacks for the request lifecycle.
//
// The Registry is thread-safe and uses the snapshot pattern for
// execution: callbacks are copied under a read lock before execution,
// preventing lock contention while callbacks run.
//
// Example:
//
//	registry := callback.NewRegistry()
//	registry.RegisterBeforeRequest(myCallback)
//	err := registry.ExecuteBeforeRequest(ctx, event)
type Registry struct {
	beforeRequest []BeforeRequestCallback
	success       []SuccessCallback
	failure       []FailureCallback
	stream        []StreamCallback
	mu            sync.RWMutex
}

// NewRegistry creates a new callback registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// RegisterBeforeRequest registers a before-request callback.
// Callbacks are executed in registration order. Nil callbacks are ignored.
func (r *Registry) RegisterBeforeRequest(cb BeforeRequestCallback) {
	if cb == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beforeRequest = append(r.beforeRequest, cb)
}

// RegisterSuccess registers a success callback.
// Callbacks are executed in registration order. Nil callbacks are ignored.
func (r *Registry) RegisterSuccess(cb SuccessCallback) {
	if cb == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.success = append(r.success, cb)
}

// RegisterFailure registers a failure callback.
// Callbacks are executed in registration order. Nil callbacks are ignored.
func (r *Registry) RegisterFailure(cb FailureCallback) {
	if cb == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failure = append(r.failure, cb)
}

// RegisterStream registers a streaming callback.
// Callbacks are executed for each streamed chunk in registration order.
// Nil callbacks are ignored.
func (r *Registry) RegisterStream(cb StreamCallback) {
	if cb == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stream = append(r.stream, cb)
}

// ExecuteBeforeRequest executes all before-request callbacks.
//
// Callbacks are executed sequentially in registration order. If any
// callback returns an error, execution continues but all errors are
// collected and returned as an aggregated error; a non-nil return
// aborts the request.
//
// Context cancellation is checked before each callback execution.
// Panics in callbacks are recovered and converted to errors.
func (r *Registry) ExecuteBeforeRequest(ctx context.Context, event *BeforeRequestEvent) error {
	r.mu.RLock()
	callbacks := make([]BeforeRequestCallback, len(r.beforeRequest))
	copy(callbacks, r.beforeRequest)
	r.mu.RUnlock()

	if len(callbacks) == 0 {
		return nil
	}

	var errs []error
	for _, cb := range callbacks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := runGuarded(func() error { return cb(ctx, event) }); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("before-request callbacks failed: %w", errors.Join(errs...))
	}
	return nil
}

// ExecuteSuccess executes all success callbacks.
//
// Errors and panics from callbacks are ignored since the request has
// already succeeded. Informational only.
func (r *Registry) ExecuteSuccess(ctx context.Context, event *SuccessEvent) {
	r.mu.RLock()
	callbacks := make([]SuccessCallback, len(r.success))
	copy(callbacks, r.success)
	r.mu.RUnlock()

	for _, cb := range callbacks {
		select {
		case <-ctx.Done():
			return
		default:
		}
		_ = runGuarded(func() error { cb(ctx, event); return nil })
	}
}

// ExecuteFailure executes all failure callbacks.
//
// Errors and panics from callbacks are ignored. Informational only.
func (r *Registry) ExecuteFailure(ctx context.Context, event *FailureEvent) {
	r.mu.RLock()
	callbacks := make([]FailureCallback, len(r.failure))
	copy(callbacks, r.failure)
	r.mu.RUnlock()

	for _, cb := range callbacks {
		select {
		case <-ctx.Done():
			return
		default:
		}
		_ = runGuarded(func() error { cb(ctx, event); return nil })
	}
}

// ExecuteStream executes all stream callbacks for one chunk.
//
// Errors and panics from callbacks are ignored so that one misbehaving
// hook cannot interrupt an otherwise-healthy stream.
func (r *Registry) ExecuteStream(ctx context.Context, event *StreamEvent) {
	r.mu.RLock()
	callbacks := make([]StreamCallback, len(r.stream))
	copy(callbacks, r.stream)
	r.mu.RUnlock()

	for _, cb := range callbacks {
		select {
		case <-ctx.Done():
			return
		default:
		}
		_ = runGuarded(func() error { cb(ctx, event); return nil })
	}
}

// Count returns the number of registered callbacks per kind, in the
// order: before-request, success, failure, stream.
func (r *Registry) Count() (before, success, failure, stream int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.beforeRequest), len(r.success), len(r.failure), len(r.stream)
}

// runGuarded executes fn with panic recovery.
func runGuarded(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("callback panic: %v", rec)
		}
	}()
	return fn()
}
