package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id UUID PRIMARY KEY,
		email VARCHAR(254) NOT NULL,
		credit_balance BIGINT NOT NULL DEFAULT 0,
		total_purchased_cents BIGINT NOT NULL DEFAULT 0,
		currency CHAR(3) NOT NULL DEFAULT 'USD',
		payment_customer_id VARCHAR(255),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT ` + accountsEmailKey + ` UNIQUE (email),
		CONSTRAINT ` + accountsPaymentCustomer + ` UNIQUE (payment_customer_id),
		CONSTRAINT accounts_credit_balance_check CHECK (credit_balance >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS credit_transactions (
		id UUID PRIMARY KEY,
		account_id UUID NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		kind VARCHAR(16) NOT NULL CHECK (kind IN ('purchase', 'usage', 'refund')),
		credits BIGINT NOT NULL,
		amount_cents BIGINT,
		currency CHAR(3),
		payment_reference VARCHAR(255),
		related_transaction_id UUID REFERENCES credit_transactions(id),
		description VARCHAR(500) NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ` + paymentReferenceKey + `
		ON credit_transactions (payment_reference) WHERE payment_reference IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ` + refundOfUsageKey + `
		ON credit_transactions (related_transaction_id) WHERE kind = 'refund'`,
	`CREATE INDEX IF NOT EXISTS credit_transactions_account_created_idx
		ON credit_transactions (account_id, created_at DESC)`,
}

// Migrate creates the ledger schema. Every statement is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
