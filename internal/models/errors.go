package models

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrInsufficientCredits  = errors.New("insufficient credits")
	ErrInvalidCreditPackage = errors.New("invalid credit package")
	ErrImageGeneration      = errors.New("image generation failed")
	ErrPaymentProcessing    = errors.New("payment processing failed")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrUnexpected           = errors.New("unexpected error")

	// Store-level conditions.
	ErrAccountExists       = errors.New("account already exists")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrDuplicatePayment    = errors.New("payment reference already recorded")
	ErrDuplicateRefund     = errors.New("usage already refunded")
)

// InsufficientCreditsError carries the amounts behind ErrInsufficientCredits.
type InsufficientCreditsError struct {
	Required  Credits
	Available Credits
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits. Required: %d, Available: %d", e.Required, e.Available)
}

func (e *InsufficientCreditsError) Is(target error) bool {
	return target == ErrInsufficientCredits
}
