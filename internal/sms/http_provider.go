package sms

import (
	"context"
	"fmt"
	"time"

	"github.com/pixmart/pixmart/internal/httpclient"
	"github.com/sirupsen/logrus"
)

// HTTPProvider talks to the external SMS backend's send/verify/update-user
// endpoints over the JSON transport client.
type HTTPProvider struct {
	client *httpclient.Client
	logger *logrus.Logger
}

func NewHTTPProvider(client *httpclient.Client, logger *logrus.Logger) *HTTPProvider {
	return &HTTPProvider{
		client: client,
		logger: logger,
	}
}

type sendRequest struct {
	PhoneNumber string `json:"phone_number"`
}

type sendResponse struct {
	SessionID  string `json:"session_id"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

type verifyRequest struct {
	SessionID string `json:"session_id"`
	Code      string `json:"code"`
}

type verifyResponse struct {
	UserID    string `json:"user_id"`
	Nickname  string `json:"nickname"`
	IsNewUser bool   `json:"is_new_user"`
}

type updateUserRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Nickname  string `json:"nickname"`
}

func (p *HTTPProvider) Send(ctx context.Context, phone string) (*SendResult, error) {
	var resp sendResponse
	if err := p.client.PostJSON(ctx, "/otp/send", sendRequest{PhoneNumber: phone}, &resp); err != nil {
		return nil, fmt.Errorf("failed to send OTP: %w", err)
	}

	return &SendResult{
		SessionID: resp.SessionID,
		TTL:       time.Duration(resp.TTLSeconds) * time.Second,
	}, nil
}

func (p *HTTPProvider) Verify(ctx context.Context, sessionID, code string) (*VerifyResult, error) {
	var resp verifyResponse
	req := verifyRequest{SessionID: sessionID, Code: code}
	if err := p.client.PostJSON(ctx, "/otp/verify", req, &resp); err != nil {
		return nil, fmt.Errorf("failed to verify OTP: %w", err)
	}

	return &VerifyResult{
		UserID:    resp.UserID,
		Nickname:  resp.Nickname,
		IsNewUser: resp.IsNewUser,
	}, nil
}

func (p *HTTPProvider) UpdateUser(ctx context.Context, sessionID, userID, nickname string) error {
	req := updateUserRequest{SessionID: sessionID, UserID: userID, Nickname: nickname}
	if err := p.client.PostJSON(ctx, "/otp/update-user", req, nil); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}
