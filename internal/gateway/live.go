package gateway

import (
	"context"
	"fmt"

	"github.com/pixmart/pixmart/internal/httpclient"
	"github.com/pixmart/pixmart/internal/models"
	"github.com/sirupsen/logrus"
)

// CardConfirmer is the client-side SDK seam: it collects the card details
// into a provider authorization against the intent's client secret.
type CardConfirmer interface {
	ConfirmCardPayment(ctx context.Context, clientSecret string, card models.CardDetails) (*CardPaymentResult, error)
}

// CardPaymentResult mirrors the SDK's confirm result. Status "succeeded"
// means the charge went through; any other status is a rejection whose
// message classifies downstream.
type CardPaymentResult struct {
	PaymentIntentID string
	Status          string
	ErrorMessage    string
}

// Live drives the real processor: intents are created and confirmed through
// the server-side payment endpoints, card authorization goes through the
// provider SDK.
type Live struct {
	client    *httpclient.Client
	confirmer CardConfirmer
	logger    *logrus.Logger
}

func NewLive(client *httpclient.Client, confirmer CardConfirmer, logger *logrus.Logger) *Live {
	return &Live{
		client:    client,
		confirmer: confirmer,
		logger:    logger,
	}
}

type createIntentRequest struct {
	UserID       string `json:"user_id"`
	ChargeAmount int64  `json:"charge_amount"`
	CreditAmount int64  `json:"credit_amount"`
}

type createIntentResponse struct {
	ClientSecret string `json:"client_secret"`
}

type confirmRequest struct {
	PaymentIntentID string `json:"payment_intent_id"`
	UserID          string `json:"user_id"`
}

type confirmResponse struct {
	CreditBalance int64 `json:"credit_balance"`
}

// HTTPCardConfirmer drives the provider's card-confirmation endpoint over
// the JSON transport. It stands in for the browser SDK when the server
// proxies the confirmation.
type HTTPCardConfirmer struct {
	client *httpclient.Client
}

func NewHTTPCardConfirmer(client *httpclient.Client) *HTTPCardConfirmer {
	return &HTTPCardConfirmer{client: client}
}

type confirmCardRequest struct {
	ClientSecret string             `json:"client_secret"`
	Card         models.CardDetails `json:"card"`
}

type confirmCardResponse struct {
	PaymentIntentID string `json:"payment_intent_id"`
	Status          string `json:"status"`
	ErrorMessage    string `json:"error_message"`
}

func (c *HTTPCardConfirmer) ConfirmCardPayment(ctx context.Context, clientSecret string, card models.CardDetails) (*CardPaymentResult, error) {
	var resp confirmCardResponse
	req := confirmCardRequest{ClientSecret: clientSecret, Card: card}
	if err := c.client.PostJSON(ctx, "/payments/confirm-card", req, &resp); err != nil {
		return nil, err
	}

	return &CardPaymentResult{
		PaymentIntentID: resp.PaymentIntentID,
		Status:          resp.Status,
		ErrorMessage:    resp.ErrorMessage,
	}, nil
}

func (l *Live) CreateIntent(ctx context.Context, userID string, plan models.Plan) (*models.PaymentIntentHandle, error) {
	req := createIntentRequest{
		UserID:       userID,
		ChargeAmount: plan.PriceMinor,
		CreditAmount: plan.Credits,
	}

	var resp createIntentResponse
	if err := l.client.PostJSON(ctx, "/payments/create-intent", req, &resp); err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	return &models.PaymentIntentHandle{
		ClientSecret:      resp.ClientSecret,
		ChargeAmountMinor: plan.PriceMinor,
		CreditAmount:      plan.Credits,
	}, nil
}

func (l *Live) ConfirmCard(ctx context.Context, handle *models.PaymentIntentHandle, card models.CardDetails) (string, error) {
	result, err := l.confirmer.ConfirmCardPayment(ctx, handle.ClientSecret, card)
	if err != nil {
		return "", err
	}

	if result.Status != "succeeded" {
		msg := result.ErrorMessage
		if msg == "" {
			msg = fmt.Sprintf("payment intent status %q", result.Status)
		}
		return "", fmt.Errorf("%s", msg)
	}

	return result.PaymentIntentID, nil
}

func (l *Live) ConfirmServer(ctx context.Context, providerPaymentID, userID string) (int64, error) {
	req := confirmRequest{PaymentIntentID: providerPaymentID, UserID: userID}

	var resp confirmResponse
	if err := l.client.PostJSON(ctx, "/payments/confirm", req, &resp); err != nil {
		return 0, fmt.Errorf("failed to confirm payment: %w", err)
	}

	l.logger.WithFields(logrus.Fields{
		"payment_id": providerPaymentID,
		"user_id":    userID,
	}).Info("Payment confirmed")

	return resp.CreditBalance, nil
}
