// Package repository is the PostgreSQL implementation of ledger.Store.
package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Bukachka23/image-backend/internal/ledger"
	"github.com/Bukachka23/image-backend/internal/models"
)

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const pgUniqueViolation = "23505"

// Index names from the schema, reported as ConstraintName on 23505.
const (
	accountsEmailKey        = "accounts_email_key"
	paymentReferenceKey     = "credit_transactions_payment_reference_key"
	refundOfUsageKey        = "credit_transactions_refund_of_key"
	accountsPaymentCustomer = "accounts_payment_customer_id_key"
)

// mapError turns unique violations into the ledger's duplicate sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case accountsEmailKey:
		return models.ErrAccountExists
	case paymentReferenceKey:
		return models.ErrDuplicatePayment
	case refundOfUsageKey:
		return models.ErrDuplicateRefund
	}
	return err
}

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var _ ledger.Store = (*Store)(nil)

func (s *Store) FindAccountByEmail(ctx context.Context, email models.Email) (*models.Account, error) {
	return getAccount(ctx, s.pool, "email = $1", email.String())
}

func (s *Store) FindAccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return getAccount(ctx, s.pool, "id = $1", id)
}

func (s *Store) ExistsByEmail(ctx context.Context, email models.Email) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE email = $1)`, email.String()).Scan(&exists)
	return exists, err
}

func (s *Store) SaveNewAccount(ctx context.Context, acc *models.Account) (*models.Account, error) {
	return insertAccount(ctx, s.pool, acc)
}

func (s *Store) FindTransactionsByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.CreditTransaction, error) {
	return listTransactionsByAccount(ctx, s.pool, accountID, limit)
}

func (s *Store) FindTransactionByPaymentReference(ctx context.Context, ref string) (*models.CreditTransaction, error) {
	return getTransactionByPaymentReference(ctx, s.pool, ref)
}

func (s *Store) Begin(ctx context.Context) (ledger.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &storeTx{tx: tx}, nil
}

type storeTx struct {
	tx pgx.Tx
}

// LockAccountByEmail takes a row lock held until commit or rollback.
func (t *storeTx) LockAccountByEmail(ctx context.Context, email models.Email) (*models.Account, error) {
	return getAccount(ctx, t.tx, "email = $1 FOR UPDATE", email.String())
}

func (t *storeTx) LockAccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return getAccount(ctx, t.tx, "id = $1 FOR UPDATE", id)
}

func (t *storeTx) UpdateAccount(ctx context.Context, acc *models.Account) error {
	return updateAccount(ctx, t.tx, acc)
}

func (t *storeTx) SaveTransaction(ctx context.Context, rec *models.CreditTransaction) error {
	return insertTransaction(ctx, t.tx, rec)
}

func (t *storeTx) FindTransactionByPaymentReference(ctx context.Context, ref string) (*models.CreditTransaction, error) {
	return getTransactionByPaymentReference(ctx, t.tx, ref)
}

func (t *storeTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *storeTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}
