package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pixmart/pixmart/internal/catalog"
	"github.com/pixmart/pixmart/internal/classify"
	"github.com/pixmart/pixmart/internal/gateway"
	"github.com/pixmart/pixmart/internal/models"
	"github.com/sirupsen/logrus"
)

type fakeAdapter struct {
	mu           sync.Mutex
	createCalls  int
	cardCalls    int
	confirmCalls int

	createErr  error
	cardErr    error
	confirmErr error

	balance int64

	// createGate, when non-nil, blocks CreateIntent until released.
	createGate chan struct{}
}

func (a *fakeAdapter) CreateIntent(ctx context.Context, userID string, plan models.Plan) (*models.PaymentIntentHandle, error) {
	a.mu.Lock()
	a.createCalls++
	n := a.createCalls
	gate := a.createGate
	a.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if a.createErr != nil {
		return nil, a.createErr
	}
	return &models.PaymentIntentHandle{
		ClientSecret:      fmt.Sprintf("secret-%d", n),
		ChargeAmountMinor: plan.PriceMinor,
		CreditAmount:      plan.Credits,
	}, nil
}

func (a *fakeAdapter) ConfirmCard(ctx context.Context, handle *models.PaymentIntentHandle, card models.CardDetails) (string, error) {
	a.mu.Lock()
	a.cardCalls++
	a.mu.Unlock()
	if a.cardErr != nil {
		return "", a.cardErr
	}
	return "pi_1", nil
}

func (a *fakeAdapter) ConfirmServer(ctx context.Context, providerPaymentID, userID string) (int64, error) {
	a.mu.Lock()
	a.confirmCalls++
	a.mu.Unlock()
	if a.confirmErr != nil {
		return 0, a.confirmErr
	}
	return a.balance, nil
}

func (a *fakeAdapter) counts() (int, int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.createCalls, a.cardCalls, a.confirmCalls
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func testPlans() []models.Plan {
	return []models.Plan{
		{ID: 1, Name: "Starter", PriceMinor: 500, Credits: 500, Active: true},
		{ID: 2, Name: "Standard", PriceMinor: 1000, Credits: 1100, Active: true},
	}
}

func testCard() models.CardDetails {
	return models.CardDetails{Number: "4242424242424242", ExpMonth: 12, ExpYear: 2030, CVC: "123"}
}

func TestIntentGuardCreatesExactlyOnce(t *testing.T) {
	t.Parallel()

	g := newIntentGuard()
	var calls int
	var mu sync.Mutex

	fn := func(ctx context.Context) (*models.PaymentIntentHandle, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		return &models.PaymentIntentHandle{ClientSecret: "only"}, nil
	}

	var wg sync.WaitGroup
	results := make([]*models.PaymentIntentHandle, 2)
	for i := 0; i < 2; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := g.create(context.Background(), fn)
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			results[i] = h
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("intent created %d times for near-simultaneous triggers, want exactly 1", calls)
	}
	if results[0] == nil || results[1] == nil || results[0].ClientSecret != results[1].ClientSecret {
		t.Errorf("both callers must adopt the first result: %+v vs %+v", results[0], results[1])
	}
}

func TestDuplicateSelectPlanCreatesOneIntent(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	a := &fakeAdapter{balance: 100, createGate: gate}
	f := NewFlow("user-1", testPlans(), a, Callbacks{}, testLogger())

	f.SelectPlan(context.Background(), 2)
	// Double-click while the first create is still in flight.
	f.SelectPlan(context.Background(), 2)
	close(gate)
	f.Wait()

	if creates, _, _ := a.counts(); creates != 1 {
		t.Fatalf("CreateIntent invoked %d times, want exactly 1", creates)
	}
	if st := f.State(); st.Step != StepAuthorize {
		t.Errorf("step = %v, want authorize", st.Step)
	}
}

func TestUnknownPlanRejectedLocally(t *testing.T) {
	t.Parallel()

	a := &fakeAdapter{}
	f := NewFlow("user-1", testPlans(), a, Callbacks{}, testLogger())

	st := f.SelectPlan(context.Background(), 42)
	f.Wait()

	if st.LastErr == nil || st.LastErr.Kind != classify.KindValidation {
		t.Fatalf("LastErr = %+v, want validation error", st.LastErr)
	}
	if creates, _, _ := a.counts(); creates != 0 {
		t.Errorf("CreateIntent invoked for unknown plan")
	}
}

func TestAuthorizeBeforePlanSelectionFailsLocally(t *testing.T) {
	t.Parallel()

	a := &fakeAdapter{}
	f := NewFlow("user-1", testPlans(), a, Callbacks{}, testLogger())

	// Authorizing before any plan was selected: the dispatch lands on
	// plan_select, fails its validation, and nothing reaches the gateway.
	st := f.Authorize(context.Background(), testCard())
	f.Wait()

	if st.Step != StepPlanSelect {
		t.Fatalf("step = %v, want still plan_select", st.Step)
	}
	if st.LastErr == nil {
		t.Error("expected a local validation error")
	}
	if _, cards, _ := a.counts(); cards != 0 {
		t.Errorf("ConfirmCard invoked without an intent")
	}
}

func TestConfirmFailureAfterChargeStillSucceeds(t *testing.T) {
	t.Parallel()

	completed := make(chan Result, 1)
	var errCount int
	var mu sync.Mutex

	a := &fakeAdapter{confirmErr: errors.New("confirm endpoint down")}
	f := NewFlow("user-1", testPlans(), a, Callbacks{
		OnCompleted: func(r Result) { completed <- r },
		OnError: func(*classify.Error) {
			mu.Lock()
			errCount++
			mu.Unlock()
		},
	}, testLogger())

	f.SelectPlan(context.Background(), 2)
	f.Wait()
	f.Authorize(context.Background(), testCard())
	f.Wait()

	select {
	case r := <-completed:
		if !r.Degraded {
			t.Error("result not marked degraded after confirm failure")
		}
		if r.NewBalance != 0 {
			t.Errorf("degraded balance = %d, want placeholder 0", r.NewBalance)
		}
	case <-time.After(time.Second):
		t.Fatal("OnCompleted never invoked; money moved but flow reported failure")
	}

	mu.Lock()
	defer mu.Unlock()
	if errCount != 0 {
		t.Errorf("OnError invoked %d times after a successful charge, want 0", errCount)
	}
	if st := f.State(); st.Step != StepCredited {
		t.Errorf("step = %v, want credited", st.Step)
	}
}

func TestCardDeclineRestartsWithFreshIntent(t *testing.T) {
	t.Parallel()

	a := &fakeAdapter{balance: 100, cardErr: errors.New("Your card was declined")}
	var gotErr *classify.Error
	var mu sync.Mutex
	f := NewFlow("user-1", testPlans(), a, Callbacks{
		OnError: func(err *classify.Error) {
			mu.Lock()
			gotErr = err
			mu.Unlock()
		},
	}, testLogger())

	f.SelectPlan(context.Background(), 2)
	f.Wait()
	f.Authorize(context.Background(), testCard())
	f.Wait()

	st := f.State()
	if st.Step != StepPlanSelect {
		t.Fatalf("step after decline = %v, want full restart at plan_select", st.Step)
	}
	mu.Lock()
	if gotErr == nil || gotErr.Kind != classify.KindCardDeclined {
		t.Errorf("OnError got %+v, want classified card decline", gotErr)
	}
	mu.Unlock()

	// Retry: a fresh intent must be created, not the old one resumed.
	a.mu.Lock()
	a.cardErr = nil
	a.mu.Unlock()

	f.SelectPlan(context.Background(), 2)
	f.Wait()

	if creates, _, _ := a.counts(); creates != 2 {
		t.Errorf("CreateIntent invoked %d times across restart, want 2", creates)
	}
	if got := f.State().Data.Intent.ClientSecret; got != "secret-2" {
		t.Errorf("intent secret = %q, want the fresh secret-2", got)
	}
}

type creditLedger struct {
	mu      sync.Mutex
	balance int64
}

func (l *creditLedger) Add(_ context.Context, _ string, amount int64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balance += amount
	return l.balance, nil
}

func TestMockAdapterEndToEnd(t *testing.T) {
	t.Parallel()

	existing := int64(250)
	mock := gateway.NewMock(10*time.Millisecond, &creditLedger{balance: existing}, testLogger())
	completed := make(chan Result, 1)

	cat := catalog.New(emptySource{}, testLogger())
	o := NewOrchestrator(cat, mock, testLogger())
	f := o.NewPurchase(context.Background(), "user-1", Callbacks{
		OnCompleted: func(r Result) { completed <- r },
	})

	f.SelectPlan(context.Background(), 2)
	f.Wait()
	start := time.Now()
	f.Authorize(context.Background(), testCard())
	f.Wait()

	select {
	case r := <-completed:
		if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
			t.Errorf("mock resolved in %v, want at least its fixed delay", elapsed)
		}
		if want := existing + 1000; r.NewBalance != want {
			t.Errorf("new balance = %d, want %d", r.NewBalance, want)
		}
		if r.Degraded {
			t.Error("mock purchase marked degraded")
		}
	case <-time.After(time.Second):
		t.Fatal("OnCompleted never invoked")
	}

	// Another OnCompleted must not arrive; the flow is terminal.
	select {
	case <-completed:
		t.Fatal("OnCompleted invoked more than once")
	case <-time.After(50 * time.Millisecond):
	}

	if st := f.Reset(); st.Step != StepPlanSelect || st.Data.Intent.ClientSecret != "" {
		t.Errorf("state after reset = %+v, want pristine plan_select", st)
	}
}

type emptySource struct{}

func (emptySource) ListActive(context.Context) ([]models.Plan, error) {
	return nil, nil
}
