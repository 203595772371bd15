package models

import "time"

// OTPSession is the client-visible handle for one OTP exchange. The session id
// and TTL are issued by the SMS provider; UserID and IsNewUser stay empty until
// the code has been verified.
type OTPSession struct {
	SessionID   string    `json:"session_id"`
	PhoneNumber string    `json:"phone_number"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      string    `json:"user_id,omitempty"`
	Nickname    string    `json:"nickname,omitempty"`
	IsNewUser   bool      `json:"is_new_user"`
}

// OTPRecord is the provider-side storage shape for a pending code.
type OTPRecord struct {
	CodeHash  string    `json:"code_hash"`
	Phone     string    `json:"phone"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
