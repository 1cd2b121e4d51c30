package app

import (
	"context"
	"sync/atomic"
)

// CancelToken is the cancellation signal owned by a single job.
// The flag is monotonic: once set it is never cleared; a new job gets a new token.
type CancelToken struct {
	cancelled atomic.Bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewCancelToken creates a token whose context is derived from parent
func NewCancelToken(parent context.Context) *CancelToken {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &CancelToken{ctx: ctx, cancel: cancel}
}

// Cancel requests cancellation. Safe to call more than once.
func (t *CancelToken) Cancel() {
	t.cancelled.Store(true)
	t.cancel()
}

// Cancelled reports whether cancellation was requested
func (t *CancelToken) Cancelled() bool {
	return t.cancelled.Load()
}

// Context returns a context that is done once Cancel is called
func (t *CancelToken) Context() context.Context {
	return t.ctx
}

// Release frees the context resources once the job is over. The flag is left untouched.
func (t *CancelToken) Release() {
	t.cancel()
}

// Bind derives a context from ctx that is also cancelled when the token is.
// The returned stop function must be called once the work is done.
func (t *CancelToken) Bind(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(t.ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}
