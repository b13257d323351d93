package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Bukachka23/image-backend/internal/models"
)

// UnitOfWork holds one locked account and the ledger records produced by
// operations on it. Commit writes the account and every staged record in the
// same transaction, then clears the staged list.
//
// The in-memory account is only trustworthy after a successful Commit. After
// Rollback or a failed Commit, discard it and load again.
type UnitOfWork struct {
	tx      Tx
	account *models.Account
	pending []*models.CreditTransaction
	closed  bool
}

// BeginForEmail opens a transaction and locks the account with email.
func BeginForEmail(ctx context.Context, store Store, email models.Email) (*UnitOfWork, error) {
	return begin(ctx, store, func(tx Tx) (*models.Account, error) {
		return tx.LockAccountByEmail(ctx, email)
	})
}

// BeginForAccount opens a transaction and locks the account with id.
func BeginForAccount(ctx context.Context, store Store, id uuid.UUID) (*UnitOfWork, error) {
	return begin(ctx, store, func(tx Tx) (*models.Account, error) {
		return tx.LockAccountByID(ctx, id)
	})
}

func begin(ctx context.Context, store Store, lock func(Tx) (*models.Account, error)) (*UnitOfWork, error) {
	tx, err := store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	acc, err := lock(tx)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}
	return &UnitOfWork{tx: tx, account: acc}, nil
}

func (u *UnitOfWork) Account() *models.Account { return u.account }

// Tx exposes the transaction for reads that must see the locked snapshot.
func (u *UnitOfWork) Tx() Tx { return u.tx }

// Stage queues rec for the next Commit.
func (u *UnitOfWork) Stage(rec *models.CreditTransaction) {
	u.pending = append(u.pending, rec)
}

// Pending returns a copy of the staged records.
func (u *UnitOfWork) Pending() []*models.CreditTransaction {
	out := make([]*models.CreditTransaction, len(u.pending))
	copy(out, u.pending)
	return out
}

// Commit persists the account and the staged records. Errors from the store
// are returned unwrapped so callers can match duplicate sentinels.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	if u.closed {
		return fmt.Errorf("%w: unit of work already closed", models.ErrUnexpected)
	}
	defer u.Rollback(ctx)

	if err := u.tx.UpdateAccount(ctx, u.account); err != nil {
		return err
	}
	for _, rec := range u.pending {
		if err := u.tx.SaveTransaction(ctx, rec); err != nil {
			return err
		}
	}
	if err := u.tx.Commit(ctx); err != nil {
		return err
	}
	u.pending = nil
	u.closed = true
	return nil
}

// Rollback abandons the transaction and drops staged records. Safe to call
// more than once and after Commit.
func (u *UnitOfWork) Rollback(ctx context.Context) {
	if u.closed {
		return
	}
	u.closed = true
	u.pending = nil
	_ = u.tx.Rollback(ctx)
}
