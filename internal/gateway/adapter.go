// Package gateway abstracts the payment processor behind a capability
// interface so the live/mock choice is a construction-time parameter of a
// payment flow, never a branch inside flow logic.
package gateway

import (
	"context"

	"github.com/pixmart/pixmart/internal/models"
)

// Adapter is the payment gateway capability a payment flow is written
// against. One adapter instance may serve many flows; each flow creates its
// own intent handle and never shares it.
type Adapter interface {
	// CreateIntent opens a provider payment intent for one purchase of the
	// given plan. Called exactly once per flow instance.
	CreateIntent(ctx context.Context, userID string, plan models.Plan) (*models.PaymentIntentHandle, error)

	// ConfirmCard performs the client-side authorization with the collected
	// card details. On success the returned provider payment id identifies
	// the charge; the money has moved once this returns nil.
	ConfirmCard(ctx context.Context, handle *models.PaymentIntentHandle, card models.CardDetails) (providerPaymentID string, err error)

	// ConfirmServer reports the authorized charge to the server side and
	// returns the authoritative new credit balance.
	ConfirmServer(ctx context.Context, providerPaymentID, userID string) (creditBalance int64, err error)
}
