// Package payment implements the credit-purchase flow on top of the generic
// flow engine: plan selection, provider intent creation, card authorization,
// and the two-phase commit that credits the purchase.
package payment

import (
	"context"
	"fmt"

	"github.com/pixmart/pixmart/internal/classify"
	"github.com/pixmart/pixmart/internal/flow"
	"github.com/pixmart/pixmart/internal/gateway"
	"github.com/pixmart/pixmart/internal/models"
	"github.com/sirupsen/logrus"
)

type Step string

const (
	StepPlanSelect     Step = "plan_select"
	StepIntentCreating Step = "intent_creating"
	StepAuthorize      Step = "authorize"
	StepConfirming     Step = "confirming"
	StepCredited       Step = "credited"
	StepFailed         Step = "failed"
)

// Input is the per-dispatch payload: PlanID while selecting, Card while
// authorizing.
type Input struct {
	PlanID int
	Card   *models.CardDetails
}

// Data is the flow-owned payload. The intent handle is created exactly once
// per flow instance and never shared with another flow.
type Data struct {
	Plan       models.Plan
	Intent     models.PaymentIntentHandle
	NewBalance int64
	Degraded   bool
}

// Result is handed to OnCompleted when the purchase reaches the credited
// terminal. When Degraded is true the charge went through but the server
// confirmation failed; NewBalance is a placeholder zero that a later
// balance read must correct.
type Result struct {
	Plan       models.Plan
	NewBalance int64
	Degraded   bool
}

type Callbacks struct {
	OnCompleted func(result Result)
	OnError     func(err *classify.Error)
	OnCancel    func()
}

// Flow drives one purchase. The gateway adapter is fixed at construction
// and never swapped mid-flow.
type Flow struct {
	engine  *flow.Engine[Step, Input, Data]
	adapter gateway.Adapter
	userID  string
	plans   []models.Plan
	guard   *intentGuard
	cb      Callbacks
	logger  *logrus.Logger
}

func NewFlow(userID string, plans []models.Plan, adapter gateway.Adapter, cb Callbacks, logger *logrus.Logger) *Flow {
	f := &Flow{
		adapter: adapter,
		userID:  userID,
		plans:   plans,
		guard:   newIntentGuard(),
		cb:      cb,
		logger:  logger,
	}

	f.engine = flow.New(flow.Config[Step, Input, Data]{
		Initial: StepPlanSelect,
		Success: StepCredited,
		Failed:  StepFailed,
		Logger:  logger,
		Hooks: flow.Hooks[Step, Data]{
			OnSuccess: f.onSuccess,
			OnError:   f.onError,
			OnCancel:  cb.OnCancel,
		},
		Steps: map[Step]flow.Step[Step, Input, Data]{
			StepPlanSelect: f.planSelectStep(),
			StepAuthorize:  f.authorizeStep(),
			StepFailed:     {},
		},
	})

	return f
}

func (f *Flow) findPlan(id int) *models.Plan {
	for i := range f.plans {
		if f.plans[i].ID == id {
			return &f.plans[i]
		}
	}
	return nil
}

func (f *Flow) planSelectStep() flow.Step[Step, Input, Data] {
	return flow.Step[Step, Input, Data]{
		Pending: StepIntentCreating,
		Retry:   StepPlanSelect,
		Validate: func(_ Data, input Input) *classify.Error {
			if f.userID == "" {
				return classify.SessionInvalid("no authenticated user; sign in before purchasing")
			}
			if f.findPlan(input.PlanID) == nil {
				return classify.Validation(fmt.Sprintf("unknown plan %d", input.PlanID))
			}
			return nil
		},
		Run: func(ctx context.Context, _ Data, input Input) (flow.Apply[Step, Data], error) {
			plan := *f.findPlan(input.PlanID)

			handle, err := f.guard.create(ctx, func(ctx context.Context) (*models.PaymentIntentHandle, error) {
				return f.adapter.CreateIntent(ctx, f.userID, plan)
			})
			if err != nil {
				return nil, err
			}

			return func(d *Data) Step {
				d.Plan = plan
				d.Intent = *handle
				return StepAuthorize
			}, nil
		},
	}
}

func (f *Flow) authorizeStep() flow.Step[Step, Input, Data] {
	return flow.Step[Step, Input, Data]{
		Pending: StepConfirming,
		// A failed authorization restarts the whole purchase; the old
		// intent is abandoned, never resumed.
		Retry: StepPlanSelect,
		Validate: func(d Data, input Input) *classify.Error {
			if d.Intent.ClientSecret == "" {
				return classify.SessionInvalid("no payment intent; restart the purchase")
			}
			if input.Card == nil {
				return classify.Validation("card details are required")
			}
			return nil
		},
		Run: func(ctx context.Context, d Data, input Input) (flow.Apply[Step, Data], error) {
			// Phase 1: client-side authorization. Once this succeeds the
			// card has been charged.
			providerPaymentID, err := f.adapter.ConfirmCard(ctx, &d.Intent, *input.Card)
			if err != nil {
				return nil, err
			}

			// Phase 2: server confirmation for the authoritative balance.
			// A failure here must not be reported as a payment failure:
			// the money already moved. Report success with a placeholder
			// balance and leave the rest to reconciliation.
			balance, confirmErr := f.adapter.ConfirmServer(ctx, providerPaymentID, f.userID)
			degraded := false
			if confirmErr != nil {
				degraded = true
				balance = 0
				f.logger.WithError(confirmErr).WithFields(logrus.Fields{
					"provider_payment_id": providerPaymentID,
					"user_id":             f.userID,
					"charge_amount":       d.Intent.ChargeAmountMinor,
				}).Warn("Server confirmation failed after successful charge; needs reconciliation")
			}

			return func(d *Data) Step {
				d.Intent.ProviderPaymentID = providerPaymentID
				d.NewBalance = balance
				d.Degraded = degraded
				return StepCredited
			}, nil
		},
	}
}

func (f *Flow) onSuccess(d Data) {
	f.logger.WithFields(logrus.Fields{
		"user_id":     f.userID,
		"plan_id":     d.Plan.ID,
		"new_balance": d.NewBalance,
		"degraded":    d.Degraded,
	}).Info("Purchase completed")

	if f.cb.OnCompleted != nil {
		f.cb.OnCompleted(Result{Plan: d.Plan, NewBalance: d.NewBalance, Degraded: d.Degraded})
	}
}

func (f *Flow) onError(err *classify.Error) {
	// Any failure restarts from plan selection with a fresh intent.
	f.guard.reset()
	if f.cb.OnError != nil {
		f.cb.OnError(err)
	}
}

// SelectPlan dispatches plan selection, creating the provider intent.
func (f *Flow) SelectPlan(ctx context.Context, planID int) flow.State[Step, Data] {
	return f.engine.Dispatch(ctx, Input{PlanID: planID})
}

// Authorize dispatches the card authorization and two-phase commit.
func (f *Flow) Authorize(ctx context.Context, card models.CardDetails) flow.State[Step, Data] {
	return f.engine.Dispatch(ctx, Input{Card: &card})
}

func (f *Flow) State() flow.State[Step, Data] {
	return f.engine.State()
}

// UserID returns the purchasing user this flow was opened for.
func (f *Flow) UserID() string {
	return f.userID
}

// Cancel abandons the outstanding call; its late result is discarded at the
// engine boundary.
func (f *Flow) Cancel() flow.State[Step, Data] {
	return f.engine.Cancel()
}

// Reset restarts the purchase from plan selection. Any created intent is
// abandoned; the next selection opens a fresh one.
func (f *Flow) Reset() flow.State[Step, Data] {
	f.guard.reset()
	return f.engine.Reset()
}

// Wait blocks until no call is outstanding.
func (f *Flow) Wait() {
	f.engine.Wait()
}
