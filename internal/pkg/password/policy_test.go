package password

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		password string
		want     error
	}{
		{name: "Empty", password: "", want: ErrEmpty},
		{name: "TooShort", password: "Ab1!", want: ErrTooShort},
		{name: "TooLong", password: "Aa1!" + strings.Repeat("x", 125), want: ErrTooLong},
		{name: "NoUpper", password: "lowercase1!", want: ErrNoUpper},
		{name: "NoLower", password: "UPPERCASE1!", want: ErrNoLower},
		{name: "NoDigit", password: "NoDigits!!", want: ErrNoDigit},
		{name: "NoSpecial", password: "NoSpecial1", want: ErrNoSpecial},
		{name: "Valid", password: "Sup3rSecret!", want: nil},
		{name: "ValidWithBackslash", password: `Sup3rSecret\`, want: nil},
		// 6 characters, 14 bytes: byte length must not satisfy the minimum.
		{name: "TooShortMultibyte", password: "Пароль", want: ErrTooShort},
		// 128 characters that take more than 128 bytes are still acceptable.
		{name: "LongMultibyteWithinLimit", password: "Aa1!" + strings.Repeat("ё", 124), want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(tt.password)
			if !errors.Is(got, tt.want) {
				t.Errorf("Validate(%q) = %v, want %v", tt.password, got, tt.want)
			}
		})
	}
}

func TestValidateOrderShortBeatsMissingClasses(t *testing.T) {
	// A short all-lowercase password violates several rules; length wins.
	if got := Validate("abc"); !errors.Is(got, ErrTooShort) {
		t.Errorf("Validate(short) = %v, want %v", got, ErrTooShort)
	}
}

func TestValidateSpaceIsNotSpecial(t *testing.T) {
	if got := Validate("Password 1"); !errors.Is(got, ErrNoSpecial) {
		t.Errorf("Validate = %v, want %v", got, ErrNoSpecial)
	}
}
