package otpauth

import (
	"fmt"
	"strings"
)

var mobilePrefixes = []string{"090", "080", "070"}

// asciiDigits keeps '0'-'9', folds the full-width digits a Japanese IME
// produces down to ASCII, and drops everything else.
func asciiDigits(raw string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9':
			return r
		case r >= '０' && r <= '９':
			return '0' + (r - '０')
		}
		return -1
	}, raw)
}

// NormalizePhone validates a Japanese mobile number and formats it as
// 3-4-4 with hyphens. Input may already carry hyphens or spaces; they are
// stripped before validation. Landline and short numbers are rejected.
func NormalizePhone(raw string) (string, error) {
	digits := asciiDigits(raw)

	if len(digits) != 11 {
		return "", fmt.Errorf("phone number must be 11 digits, got %d", len(digits))
	}

	valid := false
	for _, prefix := range mobilePrefixes {
		if strings.HasPrefix(digits, prefix) {
			valid = true
			break
		}
	}
	if !valid {
		return "", fmt.Errorf("phone number must start with 090, 080 or 070")
	}

	return digits[:3] + "-" + digits[3:7] + "-" + digits[7:], nil
}

// SanitizeCode strips non-digit characters from a verification code as it
// is typed, folds full-width digits to ASCII, and truncates to six digits,
// so a submit can never carry more.
func SanitizeCode(raw string) string {
	digits := asciiDigits(raw)
	if len(digits) > codeLength {
		digits = digits[:codeLength]
	}
	return digits
}

// isCode reports whether s is exactly codeLength ASCII digits.
func isCode(s string) bool {
	if len(s) != codeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
