package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TransactionKind classifies a ledger record.
type TransactionKind string

const (
	KindPurchase TransactionKind = "purchase"
	KindUsage    TransactionKind = "usage"
	KindRefund   TransactionKind = "refund"
)

func (k TransactionKind) Valid() bool {
	switch k {
	case KindPurchase, KindUsage, KindRefund:
		return true
	}
	return false
}

// TransactionParams is the raw material for a CreditTransaction. NewTransaction
// validates it; the store uses it with RestoreTransaction when loading rows.
type TransactionParams struct {
	ID                   uuid.UUID
	AccountID            uuid.UUID
	Kind                 TransactionKind
	Credits              Credits
	Amount               *Money
	PaymentReference     string
	RelatedTransactionID *uuid.UUID
	Description          string
	CreatedAt            time.Time
}

// CreditTransaction is an immutable ledger record. Corrections are new
// records, never edits.
type CreditTransaction struct {
	id                   uuid.UUID
	accountID            uuid.UUID
	kind                 TransactionKind
	credits              Credits
	amount               *Money
	paymentReference     string
	relatedTransactionID *uuid.UUID
	description          string
	createdAt            time.Time
}

// NewTransaction validates p and returns the record. A nil ID or zero
// CreatedAt is filled in.
func NewTransaction(p TransactionParams) (*CreditTransaction, error) {
	if !p.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown transaction kind %q", ErrInvalidArgument, p.Kind)
	}
	switch p.Kind {
	case KindPurchase:
		if p.Credits < 0 {
			return nil, fmt.Errorf("%w: purchase transactions must not have negative credits", ErrInvalidArgument)
		}
		if p.PaymentReference == "" {
			return nil, fmt.Errorf("%w: purchase transactions require a payment reference", ErrInvalidArgument)
		}
		if p.Amount == nil {
			return nil, fmt.Errorf("%w: purchase transactions require an amount", ErrInvalidArgument)
		}
	case KindUsage:
		if p.Credits >= 0 {
			return nil, fmt.Errorf("%w: usage transactions must have negative credits", ErrInvalidArgument)
		}
	case KindRefund:
		if p.Credits < 0 {
			return nil, fmt.Errorf("%w: refund transactions must not have negative credits", ErrInvalidArgument)
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return RestoreTransaction(p), nil
}

// RestoreTransaction rebuilds a persisted record without re-validating it.
func RestoreTransaction(p TransactionParams) *CreditTransaction {
	t := &CreditTransaction{
		id:               p.ID,
		accountID:        p.AccountID,
		kind:             p.Kind,
		credits:          p.Credits,
		paymentReference: p.PaymentReference,
		description:      p.Description,
		createdAt:        p.CreatedAt,
	}
	if p.Amount != nil {
		amount := *p.Amount
		t.amount = &amount
	}
	if p.RelatedTransactionID != nil {
		related := *p.RelatedTransactionID
		t.relatedTransactionID = &related
	}
	return t
}

func NewPurchaseTransaction(accountID uuid.UUID, credits Credits, amount Money, paymentRef, description string) (*CreditTransaction, error) {
	return NewTransaction(TransactionParams{
		AccountID:        accountID,
		Kind:             KindPurchase,
		Credits:          credits,
		Amount:           &amount,
		PaymentReference: paymentRef,
		Description:      description,
	})
}

// NewUsageTransaction records a spend of credits. The stored delta is negative.
func NewUsageTransaction(accountID uuid.UUID, credits Credits, description string) (*CreditTransaction, error) {
	if credits > 0 {
		credits = credits.Neg()
	}
	return NewTransaction(TransactionParams{
		AccountID:   accountID,
		Kind:        KindUsage,
		Credits:     credits,
		Description: description,
	})
}

// NewRefundTransaction returns credits. relatedUsage may be uuid.Nil when the
// refund does not correspond to a recorded usage.
func NewRefundTransaction(accountID uuid.UUID, credits Credits, description string, relatedUsage uuid.UUID) (*CreditTransaction, error) {
	if credits < 0 {
		credits = credits.Neg()
	}
	p := TransactionParams{
		AccountID:   accountID,
		Kind:        KindRefund,
		Credits:     credits,
		Description: description,
	}
	if relatedUsage != uuid.Nil {
		p.RelatedTransactionID = &relatedUsage
	}
	return NewTransaction(p)
}

func (t *CreditTransaction) ID() uuid.UUID { return t.id }
func (t *CreditTransaction) AccountID() uuid.UUID { return t.accountID }
func (t *CreditTransaction) Kind() TransactionKind { return t.kind }
func (t *CreditTransaction) Credits() Credits { return t.credits }
func (t *CreditTransaction) PaymentReference() string { return t.paymentReference }
func (t *CreditTransaction) Description() string { return t.description }
func (t *CreditTransaction) CreatedAt() time.Time { return t.createdAt }

// Amount is the money paid. Only purchases carry one.
func (t *CreditTransaction) Amount() (Money, bool) {
	if t.amount == nil {
		return Money{}, false
	}
	return *t.amount, true
}

// RelatedTransactionID links a refund to the usage it reverses.
func (t *CreditTransaction) RelatedTransactionID() (uuid.UUID, bool) {
	if t.relatedTransactionID == nil {
		return uuid.Nil, false
	}
	return *t.relatedTransactionID, true
}

// TransactionView is the JSON shape of a record for the operator history API.
type TransactionView struct {
	ID                   uuid.UUID  `json:"id"`
	Kind                 string     `json:"kind"`
	Credits              int64      `json:"credits"`
	Amount               string     `json:"amount,omitempty"`
	Currency             string     `json:"currency,omitempty"`
	PaymentReference     string     `json:"payment_reference,omitempty"`
	RelatedTransactionID *uuid.UUID `json:"related_transaction_id,omitempty"`
	Description          string     `json:"description"`
	CreatedAt            time.Time  `json:"created_at"`
}

func (t *CreditTransaction) View() TransactionView {
	v := TransactionView{
		ID:               t.id,
		Kind:             string(t.kind),
		Credits:          t.credits.Int64(),
		PaymentReference: t.paymentReference,
		Description:      t.description,
		CreatedAt:        t.createdAt,
	}
	if m, ok := t.Amount(); ok {
		v.Amount = m.Amount().StringFixed(2)
		v.Currency = m.Currency()
	}
	if id, ok := t.RelatedTransactionID(); ok {
		v.RelatedTransactionID = &id
	}
	return v
}
