package flow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pixmart/pixmart/internal/classify"
	"github.com/sirupsen/logrus"
)

type testStep string

const (
	stepInput   testStep = "input"
	stepCalling testStep = "calling"
	stepDone    testStep = "done"
	stepFailed  testStep = "failed"
)

type testData struct {
	Result string
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

// newTestEngine builds a two-step flow whose single network call is driven
// through the returned release channel: send one error (or nil) per call to
// let it resolve.
func newTestEngine(hooks Hooks[testStep, testData]) (*Engine[testStep, string, testData], chan error, *atomic.Int64) {
	release := make(chan error, 4)
	var calls atomic.Int64

	cfg := Config[testStep, string, testData]{
		Initial: stepInput,
		Success: stepDone,
		Failed:  stepFailed,
		Hooks:   hooks,
		Logger:  quietLogger(),
		Steps: map[testStep]Step[testStep, string, testData]{
			stepInput: {
				Validate: func(_ testData, input string) *classify.Error {
					if input == "" {
						return classify.Validation("input required")
					}
					return nil
				},
				Pending: stepCalling,
				Retry:   stepInput,
				Run: func(ctx context.Context, _ testData, input string) (Apply[testStep, testData], error) {
					calls.Add(1)
					if err := <-release; err != nil {
						return nil, err
					}
					return func(d *testData) testStep {
						d.Result = input
						return stepDone
					}, nil
				},
			},
		},
	}
	return New(cfg), release, &calls
}

func TestDispatchWhileLoadingIsNoOp(t *testing.T) {
	t.Parallel()

	e, release, calls := newTestEngine(Hooks[testStep, testData]{})

	first := e.Dispatch(context.Background(), "one")
	if !first.Loading || first.Step != stepCalling {
		t.Fatalf("first dispatch: got step=%v loading=%v", first.Step, first.Loading)
	}

	second := e.Dispatch(context.Background(), "two")
	if second != first {
		t.Errorf("dispatch while loading changed state: %+v vs %+v", second, first)
	}

	release <- nil
	e.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("network call invoked %d times, want 1", got)
	}
	if st := e.State(); st.Step != stepDone || st.Data.Result != "one" {
		t.Errorf("final state %+v, want done with result from first dispatch", st)
	}
}

func TestValidationErrorNeverReachesNetwork(t *testing.T) {
	t.Parallel()

	var gotErr *classify.Error
	e, _, calls := newTestEngine(Hooks[testStep, testData]{
		OnError: func(err *classify.Error) { gotErr = err },
	})

	st := e.Dispatch(context.Background(), "")
	if st.Loading {
		t.Fatal("validation failure must not start a call")
	}
	if st.LastErr == nil || st.LastErr.Kind != classify.KindValidation {
		t.Fatalf("LastErr = %+v, want validation error", st.LastErr)
	}
	if gotErr == nil {
		t.Error("OnError hook not invoked for validation failure")
	}
	if calls.Load() != 0 {
		t.Errorf("network call invoked %d times, want 0", calls.Load())
	}
}

func TestCallFailureReturnsToRetryStep(t *testing.T) {
	t.Parallel()

	e, release, _ := newTestEngine(Hooks[testStep, testData]{})

	e.Dispatch(context.Background(), "one")
	release <- errors.New("Your card was declined")
	e.Wait()

	st := e.State()
	if st.Step != stepInput || st.Loading {
		t.Fatalf("state after failure = %+v, want back at input", st)
	}
	if st.LastErr == nil || st.LastErr.Kind != classify.KindCardDeclined {
		t.Errorf("LastErr = %+v, want classified card decline", st.LastErr)
	}
}

func TestSuccessfulTransitionClearsLastError(t *testing.T) {
	t.Parallel()

	e, release, _ := newTestEngine(Hooks[testStep, testData]{})

	e.Dispatch(context.Background(), "one")
	release <- errors.New("boom")
	e.Wait()
	if e.State().LastErr == nil {
		t.Fatal("expected an error recorded after failed call")
	}

	e.Dispatch(context.Background(), "two")
	release <- nil
	e.Wait()

	st := e.State()
	if st.LastErr != nil {
		t.Errorf("LastErr = %+v after successful transition, want nil", st.LastErr)
	}
	if st.Step != stepDone {
		t.Errorf("step = %v, want %v", st.Step, stepDone)
	}
}

func TestCancelDiscardsLateResult(t *testing.T) {
	t.Parallel()

	canceled := false
	e, release, _ := newTestEngine(Hooks[testStep, testData]{
		OnCancel: func() { canceled = true },
	})

	e.Dispatch(context.Background(), "one")
	st := e.Cancel()
	if st.Step != stepInput || st.Loading {
		t.Fatalf("state after cancel = %+v, want back at input, not loading", st)
	}
	if !canceled {
		t.Error("OnCancel hook not invoked")
	}

	// The transport call finishes afterwards; its result must be dropped.
	release <- nil
	e.Wait()

	if st := e.State(); st.Step != stepInput || st.Data.Result != "" {
		t.Errorf("late result was applied: %+v", st)
	}
}

func TestCancelWithoutOutstandingCallIsNoOp(t *testing.T) {
	t.Parallel()

	e, _, _ := newTestEngine(Hooks[testStep, testData]{})

	before := e.State()
	after := e.Cancel()
	if after != before {
		t.Errorf("cancel while idle changed state: %+v vs %+v", after, before)
	}
}

func TestResetReturnsToInitialStateAndDiscardsResult(t *testing.T) {
	t.Parallel()

	e, release, _ := newTestEngine(Hooks[testStep, testData]{})

	e.Dispatch(context.Background(), "one")
	st := e.Reset()
	if st.Step != stepInput || st.Loading || st.Data.Result != "" {
		t.Fatalf("state after reset = %+v, want pristine initial", st)
	}

	release <- nil
	e.Wait()
	if st := e.State(); st.Data.Result != "" {
		t.Errorf("result applied after reset: %+v", st)
	}
}

func TestUnknownTransitionLandsInFailedTerminal(t *testing.T) {
	t.Parallel()

	var gotErr *classify.Error
	var mu sync.Mutex

	cfg := Config[testStep, string, testData]{
		Initial: stepInput,
		Success: stepDone,
		Failed:  stepFailed,
		Logger:  quietLogger(),
		Hooks: Hooks[testStep, testData]{
			OnError: func(err *classify.Error) {
				mu.Lock()
				gotErr = err
				mu.Unlock()
			},
		},
		Steps: map[testStep]Step[testStep, string, testData]{
			stepInput: {
				Pending: stepCalling,
				Retry:   stepInput,
				Run: func(context.Context, testData, string) (Apply[testStep, testData], error) {
					return func(*testData) testStep { return testStep("nonsense") }, nil
				},
			},
		},
	}

	e := New(cfg)
	e.Dispatch(context.Background(), "x")
	e.Wait()

	if st := e.State(); st.Step != stepFailed {
		t.Fatalf("step = %v, want failed terminal", st.Step)
	}
	mu.Lock()
	defer mu.Unlock()
	if gotErr == nil || gotErr.Kind != classify.KindUnknown {
		t.Errorf("OnError got %+v, want unknown kind", gotErr)
	}
}

func TestSuccessHookFiresOnTerminalStep(t *testing.T) {
	t.Parallel()

	done := make(chan testData, 1)
	e, release, _ := newTestEngine(Hooks[testStep, testData]{
		OnSuccess: func(d testData) { done <- d },
	})

	e.Dispatch(context.Background(), "payload")
	release <- nil

	select {
	case d := <-done:
		if d.Result != "payload" {
			t.Errorf("OnSuccess data = %+v", d)
		}
	case <-time.After(time.Second):
		t.Fatal("OnSuccess never invoked")
	}
}
