package payment

import (
	"context"
	"sync"

	"github.com/pixmart/pixmart/internal/models"
)

// intentGuard makes intent creation idempotent within one flow instance:
// re-entrant triggers all adopt the first caller's result instead of opening
// a second provider intent for the same user intent. Reset arms it again for
// a fresh intent after a full flow restart.
type intentGuard struct {
	mu      sync.Mutex
	started bool
	done    chan struct{}
	handle  *models.PaymentIntentHandle
	err     error
}

func newIntentGuard() *intentGuard {
	return &intentGuard{}
}

// create runs fn at most once per armed guard. The first caller executes it;
// concurrent and later callers block until it finishes and share its result.
func (g *intentGuard) create(ctx context.Context, fn func(context.Context) (*models.PaymentIntentHandle, error)) (*models.PaymentIntentHandle, error) {
	g.mu.Lock()
	if g.started {
		done := g.done
		g.mu.Unlock()

		select {
		case <-done:
			g.mu.Lock()
			handle, err := g.handle, g.err
			g.mu.Unlock()
			return handle, err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	g.started = true
	g.done = make(chan struct{})
	done := g.done
	g.mu.Unlock()

	handle, err := fn(ctx)

	g.mu.Lock()
	g.handle, g.err = handle, err
	if err != nil {
		// A failed creation does not burn the guard; the retry after a
		// full restart creates a fresh intent.
		g.started = false
	}
	g.mu.Unlock()
	close(done)

	return handle, err
}

// reset arms the guard for a new intent. Called on flow restart; a failed
// flow never resumes its old intent.
func (g *intentGuard) reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.started = false
	g.done = nil
	g.handle = nil
	g.err = nil
}
