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

const transactionColumns = `id, account_id, kind, credits, amount_cents, currency, payment_reference, related_transaction_id, description, created_at`

type transactionRow struct {
	ID                   uuid.UUID
	AccountID            uuid.UUID
	Kind                 string
	Credits              int64
	AmountCents          *int64
	Currency             *string
	PaymentReference     *string
	RelatedTransactionID *uuid.UUID
	Description          string
	CreatedAt            time.Time
}

func (r *transactionRow) scan(row pgx.Row) error {
	return row.Scan(&r.ID, &r.AccountID, &r.Kind, &r.Credits, &r.AmountCents, &r.Currency, &r.PaymentReference, &r.RelatedTransactionID, &r.Description, &r.CreatedAt)
}

func (r *transactionRow) toModel() (*models.CreditTransaction, error) {
	p := models.TransactionParams{
		ID:                   r.ID,
		AccountID:            r.AccountID,
		Kind:                 models.TransactionKind(r.Kind),
		Credits:              models.Credits(r.Credits),
		RelatedTransactionID: r.RelatedTransactionID,
		Description:          r.Description,
		CreatedAt:            r.CreatedAt,
	}
	if r.AmountCents != nil {
		currency := models.DefaultCurrency
		if r.Currency != nil {
			currency = *r.Currency
		}
		m, err := models.MoneyFromCents(*r.AmountCents, currency)
		if err != nil {
			return nil, fmt.Errorf("%w: stored amount on transaction %s: %v", models.ErrUnexpected, r.ID, err)
		}
		p.Amount = &m
	}
	if r.PaymentReference != nil {
		p.PaymentReference = *r.PaymentReference
	}
	return models.RestoreTransaction(p), nil
}

func insertTransaction(ctx context.Context, q querier, rec *models.CreditTransaction) error {
	var amountCents *int64
	var currency *string
	if m, ok := rec.Amount(); ok {
		cents, cur := m.Cents(), m.Currency()
		amountCents, currency = &cents, &cur
	}
	var related *uuid.UUID
	if id, ok := rec.RelatedTransactionID(); ok {
		related = &id
	}
	_, err := q.Exec(ctx, `
		INSERT INTO credit_transactions (id, account_id, kind, credits, amount_cents, currency, payment_reference, related_transaction_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, rec.ID(), rec.AccountID(), string(rec.Kind()), rec.Credits().Int64(), amountCents, currency,
		nullString(rec.PaymentReference()), related, rec.Description(), rec.CreatedAt())
	return mapError(err)
}

func getTransactionByPaymentReference(ctx context.Context, q querier, ref string) (*models.CreditTransaction, error) {
	var row transactionRow
	err := row.scan(q.QueryRow(ctx, `SELECT `+transactionColumns+` FROM credit_transactions WHERE payment_reference = $1`, ref))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toModel()
}

func listTransactionsByAccount(ctx context.Context, q querier, accountID uuid.UUID, limit int) ([]*models.CreditTransaction, error) {
	rows, err := q.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM credit_transactions
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.CreditTransaction
	for rows.Next() {
		var row transactionRow
		if err := row.scan(rows); err != nil {
			return nil, err
		}
		rec, err := row.toModel()
		if err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}
