// Package sms abstracts the OTP SMS provider. The flow engine only sees the
// Provider capability; whether codes travel through a real SMS backend or
// the in-process development provider is a wiring decision.
package sms

import (
	"context"
	"time"
)

// SendResult is returned when an OTP has been dispatched. SessionID is
// provider-issued and opaque; TTL bounds how long the code stays valid.
type SendResult struct {
	SessionID string
	TTL       time.Duration
}

// VerifyResult is returned when a code has been accepted.
type VerifyResult struct {
	UserID    string
	Nickname  string
	IsNewUser bool
}

type Provider interface {
	// Send dispatches a one-time code to phone and opens a session.
	Send(ctx context.Context, phone string) (*SendResult, error)

	// Verify checks code against the session. The server is authoritative
	// on expiry; a stale session fails here, not client-side.
	Verify(ctx context.Context, sessionID, code string) (*VerifyResult, error)

	// UpdateUser sets the nickname chosen during registration. Legal only
	// after Verify succeeded for the session.
	UpdateUser(ctx context.Context, sessionID, userID, nickname string) error
}
