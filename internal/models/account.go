package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Account owns a credit balance. Every balance-changing method returns the
// ledger record describing the change; the caller stages it with the unit of
// work that persists the account, so the two are written together.
type Account struct {
	id                uuid.UUID
	email             Email
	balance           Credits
	totalPurchased    Money
	paymentCustomerID string
	createdAt         time.Time
	updatedAt         time.Time
}

// NewAccount returns an unsaved account with a zero balance.
func NewAccount(email Email) *Account {
	now := time.Now().UTC()
	return &Account{
		email:          email,
		totalPurchased: ZeroMoney(DefaultCurrency),
		createdAt:      now,
		updatedAt:      now,
	}
}

// AccountParams mirrors a persisted accounts row.
type AccountParams struct {
	ID                uuid.UUID
	Email             Email
	Balance           Credits
	TotalPurchased    Money
	PaymentCustomerID string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// RestoreAccount rebuilds an account loaded from storage.
func RestoreAccount(p AccountParams) (*Account, error) {
	if p.Balance.IsNegative() {
		return nil, fmt.Errorf("%w: stored balance for %s is negative", ErrUnexpected, p.Email)
	}
	return &Account{
		id:                p.ID,
		email:             p.Email,
		balance:           p.Balance,
		totalPurchased:    p.TotalPurchased,
		paymentCustomerID: p.PaymentCustomerID,
		createdAt:         p.CreatedAt,
		updatedAt:         p.UpdatedAt,
	}, nil
}

func (a *Account) ID() uuid.UUID { return a.id }
func (a *Account) Email() Email { return a.email }
func (a *Account) Balance() Credits { return a.balance }
func (a *Account) TotalPurchased() Money { return a.totalPurchased }
func (a *Account) PaymentCustomerID() string { return a.paymentCustomerID }
func (a *Account) CreatedAt() time.Time { return a.createdAt }
func (a *Account) UpdatedAt() time.Time { return a.updatedAt }

// Params exports the state for persistence.
func (a *Account) Params() AccountParams {
	return AccountParams{
		ID:                a.id,
		Email:             a.email,
		Balance:           a.balance,
		TotalPurchased:    a.totalPurchased,
		PaymentCustomerID: a.paymentCustomerID,
		CreatedAt:         a.createdAt,
		UpdatedAt:         a.updatedAt,
	}
}

func (a *Account) HasSufficientCredits(amount Credits) bool {
	return a.balance >= amount
}

// DeductCredits spends amount. On error the account is unchanged.
func (a *Account) DeductCredits(amount Credits, reason string) (*CreditTransaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: deduction must be positive, got %d", ErrInvalidArgument, amount)
	}
	if !a.HasSufficientCredits(amount) {
		return nil, &InsufficientCreditsError{Required: amount, Available: a.balance}
	}
	rec, err := NewUsageTransaction(a.id, amount, reason)
	if err != nil {
		return nil, err
	}
	a.balance = a.balance.Sub(amount)
	a.touch()
	return rec, nil
}

// AddCredits records a completed purchase. On error the account is unchanged.
func (a *Account) AddCredits(amount Credits, price Money, paymentRef, description string) (*CreditTransaction, error) {
	if amount < 0 {
		return nil, fmt.Errorf("%w: credits to add must not be negative, got %d", ErrInvalidArgument, amount)
	}
	if paymentRef == "" {
		return nil, fmt.Errorf("%w: payment reference is required", ErrInvalidArgument)
	}
	total, err := a.totalPurchased.Add(price)
	if err != nil {
		return nil, err
	}
	rec, err := NewPurchaseTransaction(a.id, amount, price, paymentRef, description)
	if err != nil {
		return nil, err
	}
	a.balance = a.balance.Add(amount)
	a.totalPurchased = total
	a.touch()
	return rec, nil
}

// RefundCredits returns credits unconditionally. It is never limited by the
// current balance; the only rejected input is a zero amount.
func (a *Account) RefundCredits(amount Credits, reason string, relatedUsage uuid.UUID) (*CreditTransaction, error) {
	rec, err := NewRefundTransaction(a.id, amount, reason, relatedUsage)
	if err != nil {
		return nil, err
	}
	a.balance = a.balance.Add(rec.Credits())
	a.touch()
	return rec, nil
}

// SetPaymentCustomerID links the processor-side customer. It does not touch
// the balance.
func (a *Account) SetPaymentCustomerID(id string) {
	a.paymentCustomerID = id
	a.touch()
}

func (a *Account) touch() {
	a.updatedAt = time.Now().UTC()
}
