package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pixmart/pixmart/internal/models"
	"github.com/sirupsen/logrus"
)

// CreditStore persists purchased credits. Add applies the amount atomically
// and returns the resulting balance.
type CreditStore interface {
	Add(ctx context.Context, userID string, amount int64) (int64, error)
}

// Mock is the no-network gateway: card authorization resolves after a fixed
// delay and confirmation credits the charge amount into the store, so the
// confirmed balance is the existing balance plus the charge and a later
// balance read agrees with it. Useful for development and for driving the
// payment flow in tests.
type Mock struct {
	delay   time.Duration
	credits CreditStore
	logger  *logrus.Logger

	mu      sync.Mutex
	charges map[string]int64 // provider payment id -> charge amount
}

func NewMock(delay time.Duration, credits CreditStore, logger *logrus.Logger) *Mock {
	return &Mock{
		delay:   delay,
		credits: credits,
		logger:  logger,
		charges: make(map[string]int64),
	}
}

func (m *Mock) CreateIntent(ctx context.Context, userID string, plan models.Plan) (*models.PaymentIntentHandle, error) {
	return &models.PaymentIntentHandle{
		ClientSecret:      "mock_secret_" + uuid.New().String(),
		ChargeAmountMinor: plan.PriceMinor,
		CreditAmount:      plan.Credits,
	}, nil
}

func (m *Mock) ConfirmCard(ctx context.Context, handle *models.PaymentIntentHandle, card models.CardDetails) (string, error) {
	if err := waitOrCancel(ctx, m.delay); err != nil {
		return "", err
	}

	providerPaymentID := "mock_pi_" + uuid.New().String()
	m.mu.Lock()
	m.charges[providerPaymentID] = handle.ChargeAmountMinor
	m.mu.Unlock()

	return providerPaymentID, nil
}

func (m *Mock) ConfirmServer(ctx context.Context, providerPaymentID, userID string) (int64, error) {
	m.mu.Lock()
	charge, ok := m.charges[providerPaymentID]
	m.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("unknown payment %s", providerPaymentID)
	}

	balance, err := m.credits.Add(ctx, userID, charge)
	if err != nil {
		return 0, fmt.Errorf("failed to credit purchase: %w", err)
	}

	m.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"charge":  charge,
		"balance": balance,
	}).Debug("Mock gateway confirmed payment")

	return balance, nil
}

func waitOrCancel(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
