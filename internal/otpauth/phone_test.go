package otpauth

import "testing"

func TestNormalizePhone(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "mobile_090", raw: "09012345678", want: "090-1234-5678"},
		{name: "mobile_080", raw: "08098765432", want: "080-9876-5432"},
		{name: "mobile_070", raw: "07011112222", want: "070-1111-2222"},
		{name: "already_hyphenated", raw: "090-1234-5678", want: "090-1234-5678"},
		{name: "with_spaces", raw: "090 1234 5678", want: "090-1234-5678"},
		{name: "full_width_digits", raw: "０９０１２３４５６７８", want: "090-1234-5678"},
		{name: "landline_rejected", raw: "0312345678", wantErr: true},
		{name: "too_short", raw: "0901234567", wantErr: true},
		{name: "too_long", raw: "090123456789", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
		{name: "wrong_prefix", raw: "06012345678", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := NormalizePhone(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NormalizePhone(%q) = %q, want error", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizePhone(%q) error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestSanitizeCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "clean", raw: "123456", want: "123456"},
		{name: "letters_stripped", raw: "12a3456", want: "123456"},
		{name: "truncated_to_six", raw: "1234567890", want: "123456"},
		{name: "spaces_stripped", raw: " 12 34 56 ", want: "123456"},
		{name: "partial_input", raw: "12x", want: "12"},
		{name: "full_width_digits", raw: "１２３４５６", want: "123456"},
		{name: "mixed_width", raw: "１２3４5６", want: "123456"},
		{name: "full_width_truncated", raw: "１２３４５６７８", want: "123456"},
		{name: "empty", raw: "", want: ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := SanitizeCode(tt.raw); got != tt.want {
				t.Errorf("SanitizeCode(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
