// Package sqlite is a single-file ledger.Store for local runs and tests.
// The pool is pinned to one connection, so a transaction holds the whole
// database and account locks come for free.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/Bukachka23/image-backend/internal/ledger"
	"github.com/Bukachka23/image-backend/internal/models"
)

// Fixed-width UTC timestamps sort correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ─── Schema ─────────────────────────────────────────────────────────────────

func migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id                    TEXT PRIMARY KEY,
			email                 TEXT NOT NULL UNIQUE,
			credit_balance        INTEGER NOT NULL DEFAULT 0 CHECK (credit_balance >= 0),
			total_purchased_cents INTEGER NOT NULL DEFAULT 0,
			currency              TEXT NOT NULL DEFAULT 'USD',
			payment_customer_id   TEXT UNIQUE,
			created_at            TEXT NOT NULL,
			updated_at            TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS credit_transactions (
			id                     TEXT PRIMARY KEY,
			account_id             TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			kind                   TEXT NOT NULL CHECK (kind IN ('purchase', 'usage', 'refund')),
			credits                INTEGER NOT NULL,
			amount_cents           INTEGER,
			currency               TEXT,
			payment_reference      TEXT,
			related_transaction_id TEXT REFERENCES credit_transactions(id),
			description            TEXT NOT NULL DEFAULT '',
			created_at             TEXT NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_txn_payment_reference
			ON credit_transactions(payment_reference) WHERE payment_reference IS NOT NULL`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_txn_refund_of
			ON credit_transactions(related_transaction_id) WHERE kind = 'refund'`,
		`CREATE INDEX IF NOT EXISTS idx_txn_account_created
			ON credit_transactions(account_id, created_at)`,
	}
}

// ─── Store ──────────────────────────────────────────────────────────────────

type Store struct {
	db *sql.DB
}

var _ ledger.Store = (*Store)(nil)

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := "file:" + strings.TrimPrefix(path, "file:")
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn += sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	for i, stmt := range migrations() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite migration %d: %w", i, err)
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) FindAccountByEmail(ctx context.Context, email models.Email) (*models.Account, error) {
	return getAccount(ctx, s.db, "email = ?", email.String())
}

func (s *Store) FindAccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return getAccount(ctx, s.db, "id = ?", id.String())
}

func (s *Store) ExistsByEmail(ctx context.Context, email models.Email) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM accounts WHERE email = ?`, email.String()).Scan(&n)
	return n > 0, err
}

func (s *Store) SaveNewAccount(ctx context.Context, acc *models.Account) (*models.Account, error) {
	p := acc.Params()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, email, credit_balance, total_purchased_cents, currency, payment_customer_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID.String(), p.Email.String(), p.Balance.Int64(), p.TotalPurchased.Cents(), p.TotalPurchased.Currency(),
		nullString(p.PaymentCustomerID), p.CreatedAt.UTC().Format(timeLayout), p.UpdatedAt.UTC().Format(timeLayout))
	if err != nil {
		return nil, mapError(err)
	}
	return getAccount(ctx, s.db, "id = ?", p.ID.String())
}

func (s *Store) FindTransactionsByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.CreditTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+` FROM credit_transactions
		WHERE account_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, accountID.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*models.CreditTransaction
	for rows.Next() {
		rec, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

func (s *Store) FindTransactionByPaymentReference(ctx context.Context, ref string) (*models.CreditTransaction, error) {
	return getTransactionByPaymentReference(ctx, s.db, ref)
}

func (s *Store) Begin(ctx context.Context) (ledger.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &storeTx{tx: tx}, nil
}

// ─── Transaction ────────────────────────────────────────────────────────────

type storeTx struct {
	tx *sql.Tx
}

// LockAccountByEmail reads the account. The single connection is held by
// this transaction, so no other writer can interleave.
func (t *storeTx) LockAccountByEmail(ctx context.Context, email models.Email) (*models.Account, error) {
	return getAccount(ctx, t.tx, "email = ?", email.String())
}

func (t *storeTx) LockAccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return getAccount(ctx, t.tx, "id = ?", id.String())
}

func (t *storeTx) UpdateAccount(ctx context.Context, acc *models.Account) error {
	p := acc.Params()
	res, err := t.tx.ExecContext(ctx, `
		UPDATE accounts
		SET credit_balance = ?, total_purchased_cents = ?, currency = ?, payment_customer_id = ?, updated_at = ?
		WHERE id = ?`,
		p.Balance.Int64(), p.TotalPurchased.Cents(), p.TotalPurchased.Currency(), nullString(p.PaymentCustomerID),
		p.UpdatedAt.UTC().Format(timeLayout), p.ID.String())
	if err != nil {
		return mapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

func (t *storeTx) SaveTransaction(ctx context.Context, rec *models.CreditTransaction) error {
	var amountCents sql.NullInt64
	var currency sql.NullString
	if m, ok := rec.Amount(); ok {
		amountCents = sql.NullInt64{Int64: m.Cents(), Valid: true}
		currency = sql.NullString{String: m.Currency(), Valid: true}
	}
	var related sql.NullString
	if id, ok := rec.RelatedTransactionID(); ok {
		related = sql.NullString{String: id.String(), Valid: true}
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO credit_transactions (id, account_id, kind, credits, amount_cents, currency, payment_reference, related_transaction_id, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID().String(), rec.AccountID().String(), string(rec.Kind()), rec.Credits().Int64(), amountCents, currency,
		nullString(rec.PaymentReference()), related, rec.Description(), rec.CreatedAt().UTC().Format(timeLayout))
	return mapError(err)
}

func (t *storeTx) FindTransactionByPaymentReference(ctx context.Context, ref string) (*models.CreditTransaction, error) {
	return getTransactionByPaymentReference(ctx, t.tx, ref)
}

func (t *storeTx) Commit(context.Context) error { return t.tx.Commit() }

func (t *storeTx) Rollback(context.Context) error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// ─── Row mapping ────────────────────────────────────────────────────────────

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

const accountColumns = `id, email, credit_balance, total_purchased_cents, currency, payment_customer_id, created_at, updated_at`

const transactionColumns = `id, account_id, kind, credits, amount_cents, currency, payment_reference, related_transaction_id, description, created_at`

func getAccount(ctx context.Context, q queryer, where string, arg any) (*models.Account, error) {
	var (
		id, email, currency, createdAt, updatedAt string
		balance, totalCents                       int64
		customer                                  sql.NullString
	)
	err := q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE `+where, arg).
		Scan(&id, &email, &balance, &totalCents, &currency, &customer, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	p := models.AccountParams{Balance: models.Credits(balance), PaymentCustomerID: customer.String}
	if p.ID, err = uuid.Parse(id); err != nil {
		return nil, corrupt("account id", err)
	}
	if p.Email, err = models.ParseEmail(email); err != nil {
		return nil, corrupt("account email", err)
	}
	if p.TotalPurchased, err = models.MoneyFromCents(totalCents, currency); err != nil {
		return nil, corrupt("account total", err)
	}
	if p.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, corrupt("account created_at", err)
	}
	if p.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, corrupt("account updated_at", err)
	}
	return models.RestoreAccount(p)
}

func getTransactionByPaymentReference(ctx context.Context, q queryer, ref string) (*models.CreditTransaction, error) {
	row := q.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM credit_transactions WHERE payment_reference = ?`, ref)
	rec, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrTransactionNotFound
	}
	return rec, err
}

func scanTransaction(row scanner) (*models.CreditTransaction, error) {
	var (
		id, accountID, kind, description, createdAt string
		credits                                     int64
		amountCents                                 sql.NullInt64
		currency, paymentRef, related               sql.NullString
	)
	if err := row.Scan(&id, &accountID, &kind, &credits, &amountCents, &currency, &paymentRef, &related, &description, &createdAt); err != nil {
		return nil, err
	}

	var err error
	p := models.TransactionParams{
		Kind:             models.TransactionKind(kind),
		Credits:          models.Credits(credits),
		PaymentReference: paymentRef.String,
		Description:      description,
	}
	if p.ID, err = uuid.Parse(id); err != nil {
		return nil, corrupt("transaction id", err)
	}
	if p.AccountID, err = uuid.Parse(accountID); err != nil {
		return nil, corrupt("transaction account_id", err)
	}
	if p.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, corrupt("transaction created_at", err)
	}
	if amountCents.Valid {
		m, err := models.MoneyFromCents(amountCents.Int64, currency.String)
		if err != nil {
			return nil, corrupt("transaction amount", err)
		}
		p.Amount = &m
	}
	if related.Valid {
		relatedID, err := uuid.Parse(related.String)
		if err != nil {
			return nil, corrupt("transaction related id", err)
		}
		p.RelatedTransactionID = &relatedID
	}
	return models.RestoreTransaction(p), nil
}

func corrupt(field string, err error) error {
	return fmt.Errorf("%w: stored %s: %v", models.ErrUnexpected, field, err)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// mapError turns UNIQUE violations into the ledger's duplicate sentinels.
// SQLite names the offending columns in the message.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var se *sqlite.Error
	if !errors.As(err, &se) || se.Code() != sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return err
	}
	msg := se.Error()
	switch {
	case strings.Contains(msg, "accounts.email"):
		return models.ErrAccountExists
	case strings.Contains(msg, "credit_transactions.payment_reference"):
		return models.ErrDuplicatePayment
	case strings.Contains(msg, "credit_transactions.related_transaction_id"):
		return models.ErrDuplicateRefund
	}
	return err
}
