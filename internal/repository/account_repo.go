package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Bukachka23/image-backend/internal/models"
)

const accountColumns = `id, email, credit_balance, total_purchased_cents, currency, payment_customer_id, created_at, updated_at`

type accountRow struct {
	ID                  uuid.UUID
	Email               string
	CreditBalance       int64
	TotalPurchasedCents int64
	Currency            string
	PaymentCustomerID   *string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (r *accountRow) scan(row pgx.Row) error {
	return row.Scan(&r.ID, &r.Email, &r.CreditBalance, &r.TotalPurchasedCents, &r.Currency, &r.PaymentCustomerID, &r.CreatedAt, &r.UpdatedAt)
}

func (r *accountRow) toModel() (*models.Account, error) {
	email, err := models.ParseEmail(r.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: stored email %q: %v", models.ErrUnexpected, r.Email, err)
	}
	total, err := models.MoneyFromCents(r.TotalPurchasedCents, r.Currency)
	if err != nil {
		return nil, fmt.Errorf("%w: stored total for %s: %v", models.ErrUnexpected, r.Email, err)
	}
	p := models.AccountParams{
		ID:             r.ID,
		Email:          email,
		Balance:        models.Credits(r.CreditBalance),
		TotalPurchased: total,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.PaymentCustomerID != nil {
		p.PaymentCustomerID = *r.PaymentCustomerID
	}
	return models.RestoreAccount(p)
}

func getAccount(ctx context.Context, q querier, where string, arg any) (*models.Account, error) {
	var row accountRow
	err := row.scan(q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE `+where, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toModel()
}

func insertAccount(ctx context.Context, q querier, acc *models.Account) (*models.Account, error) {
	p := acc.Params()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	var row accountRow
	err := row.scan(q.QueryRow(ctx, `
		INSERT INTO accounts (id, email, credit_balance, total_purchased_cents, currency, payment_customer_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+accountColumns,
		p.ID, p.Email.String(), p.Balance.Int64(), p.TotalPurchased.Cents(), p.TotalPurchased.Currency(),
		nullString(p.PaymentCustomerID), p.CreatedAt, p.UpdatedAt))
	if err != nil {
		return nil, mapError(err)
	}
	return row.toModel()
}

// updateAccount writes balance, totals and customer link. The row must be
// locked by the caller's transaction.
func updateAccount(ctx context.Context, q querier, acc *models.Account) error {
	p := acc.Params()
	tag, err := q.Exec(ctx, `
		UPDATE accounts
		SET credit_balance = $2, total_purchased_cents = $3, currency = $4, payment_customer_id = $5, updated_at = $6
		WHERE id = $1
	`, p.ID, p.Balance.Int64(), p.TotalPurchased.Cents(), p.TotalPurchased.Currency(), nullString(p.PaymentCustomerID), p.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
