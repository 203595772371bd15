// Package flow implements a generic driver for multi-step transactional
// flows. A flow is a sequence of steps, each pairing local validation with
// at most one network call; the engine owns the flow state, enforces a
// single outstanding call per instance, and turns every call result into a
// state transition.
package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pixmart/pixmart/internal/classify"
	"github.com/sirupsen/logrus"
)

// State is the full client-visible snapshot of a flow instance. Exactly one
// step tag is active at a time; Loading is true only while the active step's
// network call is outstanding.
type State[S comparable, D any] struct {
	Step    S
	Loading bool
	LastErr *classify.Error
	Data    D
}

// Apply folds a call result into the flow data and names the next step.
// It runs under the engine lock; it must not block.
type Apply[S comparable, D any] func(data *D) S

// Step is a single unit of work within a flow.
type Step[S comparable, I, D any] struct {
	// Validate runs locally before the network call. A non-nil error is
	// reported immediately and nothing is dispatched.
	Validate func(data D, input I) *classify.Error

	// Pending is the step tag shown while the call is outstanding.
	Pending S

	// Run performs the step's single network call against a copy of the
	// flow data. It executes outside the engine lock and returns an Apply
	// closure carrying the interpreted result.
	Run func(ctx context.Context, data D, input I) (Apply[S, D], error)

	// Retry is the step the flow returns to when Run fails, so the user
	// can correct input and try again.
	Retry S

	// Classify overrides the default error classifier for this step.
	Classify func(err error) *classify.Error
}

// Hooks are the engine's only outward effects. They are invoked outside the
// engine lock, so a hook may read state or dispatch again.
type Hooks[S comparable, D any] struct {
	OnSuccess func(data D)
	OnError   func(err *classify.Error)
	OnCancel  func()
}

type Config[S comparable, I, D any] struct {
	Initial S
	Success S
	Failed  S
	Steps   map[S]Step[S, I, D]
	Hooks   Hooks[S, D]
	Logger  *logrus.Logger
}

// Engine drives one flow instance. Instances are never shared across flows;
// the single-outstanding-call rule is the only synchronization a flow needs.
type Engine[S comparable, I, D any] struct {
	mu    sync.Mutex
	cfg   Config[S, I, D]
	state State[S, D]

	// gen is bumped by Cancel and Reset; a resolving call whose generation
	// no longer matches has been abandoned and its result is discarded.
	gen  uint64
	prev S

	wg sync.WaitGroup
}

func New[S comparable, I, D any](cfg Config[S, I, D]) *Engine[S, I, D] {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	e := &Engine[S, I, D]{cfg: cfg}
	e.state = State[S, D]{Step: cfg.Initial}
	return e
}

// State returns a snapshot of the current flow state.
func (e *Engine[S, I, D]) State() State[S, D] {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Dispatch advances the flow from its current step with the given input.
// While a call is outstanding it is a strict no-op returning the current
// state: duplicate submits are refused, not queued.
func (e *Engine[S, I, D]) Dispatch(ctx context.Context, input I) State[S, D] {
	e.mu.Lock()

	if e.state.Loading {
		snap := e.state
		e.mu.Unlock()
		return snap
	}

	step, ok := e.cfg.Steps[e.state.Step]
	if !ok || step.Run == nil {
		// Terminal or non-dispatchable step.
		snap := e.state
		e.mu.Unlock()
		return snap
	}

	if step.Validate != nil {
		if cerr := step.Validate(e.state.Data, input); cerr != nil {
			e.state.LastErr = cerr
			snap := e.state
			e.mu.Unlock()
			e.emitError(cerr)
			return snap
		}
	}

	e.prev = e.state.Step
	e.state.Step = step.Pending
	e.state.Loading = true
	e.state.LastErr = nil

	gen := e.gen
	data := e.state.Data
	snap := e.state

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		apply, err := step.Run(ctx, data, input)
		e.resolve(gen, step, apply, err)
	}()

	e.mu.Unlock()
	return snap
}

func (e *Engine[S, I, D]) resolve(gen uint64, step Step[S, I, D], apply Apply[S, D], err error) {
	e.mu.Lock()

	if gen != e.gen {
		// Canceled or reset while the call was in flight. The transport
		// finished on its own; the result is discarded at this boundary.
		e.mu.Unlock()
		e.cfg.Logger.Debug("discarding result of abandoned flow call")
		return
	}

	e.state.Loading = false

	if err != nil {
		cerr := e.classify(step, err)
		e.state.Step = step.Retry
		e.state.LastErr = cerr
		e.mu.Unlock()
		e.emitError(cerr)
		return
	}

	next := apply(&e.state.Data)
	e.state.Step = next
	e.state.LastErr = nil

	if next == e.cfg.Success {
		data := e.state.Data
		e.mu.Unlock()
		if e.cfg.Hooks.OnSuccess != nil {
			e.cfg.Hooks.OnSuccess(data)
		}
		return
	}

	if _, known := e.cfg.Steps[next]; !known && next != e.cfg.Failed {
		// A result the step interpreter did not account for. Never dropped
		// silently: land in the failed terminal with the raw detail.
		cerr := &classify.Error{Kind: classify.KindUnknown, Raw: fmt.Sprintf("unexpected flow transition to %v", next)}
		e.state.Step = e.cfg.Failed
		e.state.LastErr = cerr
		e.mu.Unlock()
		e.emitError(cerr)
		return
	}

	e.mu.Unlock()
}

func (e *Engine[S, I, D]) classify(step Step[S, I, D], err error) *classify.Error {
	var cerr *classify.Error
	if errors.As(err, &cerr) {
		return cerr
	}
	if step.Classify != nil {
		return step.Classify(err)
	}
	return classify.Classify(err.Error())
}

// Cancel abandons the outstanding call and returns the flow to the step it
// was on before the call started. Legal only while Loading; otherwise a
// no-op. The network call itself is not aborted — its result is discarded
// when it later resolves.
func (e *Engine[S, I, D]) Cancel() State[S, D] {
	e.mu.Lock()

	if !e.state.Loading {
		snap := e.state
		e.mu.Unlock()
		return snap
	}

	e.gen++
	e.state.Loading = false
	e.state.Step = e.prev
	snap := e.state
	e.mu.Unlock()

	if e.cfg.Hooks.OnCancel != nil {
		e.cfg.Hooks.OnCancel()
	}
	return snap
}

// Reset abandons any outstanding call and returns the flow to its initial
// state with zeroed data.
func (e *Engine[S, I, D]) Reset() State[S, D] {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.gen++
	var zero D
	e.state = State[S, D]{Step: e.cfg.Initial, Data: zero}
	return e.state
}

// Wait blocks until no call is outstanding. Abandoned calls are waited for
// too; their results are discarded on arrival.
func (e *Engine[S, I, D]) Wait() {
	e.wg.Wait()
}

func (e *Engine[S, I, D]) emitError(cerr *classify.Error) {
	if e.cfg.Hooks.OnError != nil {
		e.cfg.Hooks.OnError(cerr)
	}
}
