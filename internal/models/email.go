package models

import (
	"fmt"
	"regexp"
	"strings"
)

const maxEmailLength = 254

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Email is a normalized (trimmed, lower-cased) address. It is the natural
// key of an Account.
type Email struct {
	value string
}

// ParseEmail normalizes and validates raw.
func ParseEmail(raw string) (Email, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		return Email{}, fmt.Errorf("%w: email cannot be empty", ErrInvalidArgument)
	}
	if len(normalized) > maxEmailLength {
		return Email{}, fmt.Errorf("%w: email exceeds maximum length", ErrInvalidArgument)
	}
	if !emailPattern.MatchString(normalized) {
		return Email{}, fmt.Errorf("%w: invalid email format: %s", ErrInvalidArgument, raw)
	}
	return Email{value: normalized}, nil
}

// MustParseEmail panics on invalid input. Intended for tests and constants.
func MustParseEmail(raw string) Email {
	e, err := ParseEmail(raw)
	if err != nil {
		panic(err)
	}
	return e
}

func (e Email) String() string { return e.value }

func (e Email) IsZero() bool { return e.value == "" }
