package services

import (
	"context"

	"github.com/Bukachka23/image-backend/internal/models"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

type BalanceResponse struct {
	Email   string         `json:"email"`
	Credits models.Credits `json:"credits"`
}

// QueryBalance returns the committed balance, creating an empty account for
// an unknown email.
func (l *Ledger) QueryBalance(ctx context.Context, email models.Email) (*BalanceResponse, error) {
	acc, err := l.findOrCreate(ctx, email)
	if err != nil {
		return nil, err
	}
	return &BalanceResponse{Email: acc.Email().String(), Credits: acc.Balance()}, nil
}

// ListTransactions returns the account's ledger, newest first. It does not
// create accounts.
func (l *Ledger) ListTransactions(ctx context.Context, email models.Email, limit int) (*models.Account, []*models.CreditTransaction, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	acc, err := l.Store.FindAccountByEmail(ctx, email)
	if err != nil {
		return nil, nil, storeError("load account", err)
	}
	recs, err := l.Store.FindTransactionsByAccount(ctx, acc.ID(), limit)
	if err != nil {
		return nil, nil, storeError("load transactions", err)
	}
	return acc, recs, nil
}
