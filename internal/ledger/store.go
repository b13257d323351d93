// Package ledger defines the persistence contract for accounts and their
// credit transactions, plus the unit of work that writes an account and its
// new ledger records atomically.
package ledger

import (
	"context"

	"github.com/google/uuid"

	"github.com/Bukachka23/image-backend/internal/models"
)

// Store is implemented by the Postgres and SQLite repositories.
//
// Reads outside a transaction see committed state only. Lookups that find
// nothing return models.ErrUserNotFound or models.ErrTransactionNotFound.
type Store interface {
	FindAccountByEmail(ctx context.Context, email models.Email) (*models.Account, error)
	FindAccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	ExistsByEmail(ctx context.Context, email models.Email) (bool, error)
	// SaveNewAccount inserts acc and returns it with its assigned ID. A
	// concurrent insert for the same email yields models.ErrAccountExists.
	SaveNewAccount(ctx context.Context, acc *models.Account) (*models.Account, error)
	// FindTransactionsByAccount returns newest first.
	FindTransactionsByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.CreditTransaction, error)
	FindTransactionByPaymentReference(ctx context.Context, ref string) (*models.CreditTransaction, error)
	Begin(ctx context.Context) (Tx, error)
}

// Tx is a storage transaction. Lock* methods hold the account row until
// Commit or Rollback, so balance read-modify-write cycles on one account are
// serialized. Rollback after Commit is a no-op.
type Tx interface {
	LockAccountByEmail(ctx context.Context, email models.Email) (*models.Account, error)
	LockAccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	UpdateAccount(ctx context.Context, acc *models.Account) error
	// SaveTransaction fails with models.ErrDuplicatePayment when the payment
	// reference is taken and models.ErrDuplicateRefund when the related usage
	// already has a refund.
	SaveTransaction(ctx context.Context, rec *models.CreditTransaction) error
	FindTransactionByPaymentReference(ctx context.Context, ref string) (*models.CreditTransaction, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
