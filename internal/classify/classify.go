// Package classify maps raw provider error text to a closed set of
// user-facing error kinds so flow state never depends on a gateway's
// exact wording.
package classify

import (
	"fmt"
	"strings"
)

type Kind string

const (
	KindCardDeclined         Kind = "CARD_DECLINED"
	KindIncompleteCardNumber Kind = "INCOMPLETE_CARD_NUMBER"
	KindIncompleteExpiry     Kind = "INCOMPLETE_EXPIRY"
	KindIncompleteCvc        Kind = "INCOMPLETE_CVC"
	KindIntentInitFailed     Kind = "INTENT_INIT_FAILED"
	KindUnknown              Kind = "UNKNOWN"

	// Kinds below never come out of Classify; they are produced directly
	// by flows for local validation failures and unrecoverable session
	// states.
	KindValidation     Kind = "VALIDATION"
	KindSessionInvalid Kind = "SESSION_INVALID"
)

// Error is a classified flow error. Raw always preserves the original
// provider text; for KindUnknown it is appended to the user message so
// genuinely novel failures stay diagnosable.
type Error struct {
	Kind Kind
	Raw  string
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindCardDeclined:
		return "Your card was declined"
	case KindIncompleteCardNumber:
		return "Your card number is incomplete"
	case KindIncompleteExpiry:
		return "Your card's expiration date is incomplete"
	case KindIncompleteCvc:
		return "Your card's security code is incomplete"
	case KindIntentInitFailed:
		return "Failed to initialize the payment"
	case KindValidation, KindSessionInvalid:
		return e.Raw
	default:
		return fmt.Sprintf("An unexpected error occurred: %s", e.Raw)
	}
}

var phrases = []struct {
	substr string
	kind   Kind
}{
	{"card was declined", KindCardDeclined},
	{"card number is incomplete", KindIncompleteCardNumber},
	{"expiration date is incomplete", KindIncompleteExpiry},
	{"expiry date is incomplete", KindIncompleteExpiry},
	{"security code is incomplete", KindIncompleteCvc},
	{"failed to create payment intent", KindIntentInitFailed},
	{"intent creation failed", KindIntentInitFailed},
}

// Classify matches raw against known provider phrases. Matching is
// substring-based and case-insensitive; anything unmatched is KindUnknown
// with the raw text preserved, never hidden.
func Classify(raw string) *Error {
	lowered := strings.ToLower(raw)
	for _, p := range phrases {
		if strings.Contains(lowered, p.substr) {
			return &Error{Kind: p.kind, Raw: raw}
		}
	}
	return &Error{Kind: KindUnknown, Raw: raw}
}

// Validation wraps a local pre-network validation failure. These never
// reach the network and are recoverable in place.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Raw: msg}
}

// SessionInvalid marks an operation on a flow whose session or user id
// was never established. The flow cannot self-heal; the caller must
// restart from the first step.
func SessionInvalid(msg string) *Error {
	return &Error{Kind: KindSessionInvalid, Raw: msg}
}
