package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/Bukachka23/image-backend/internal/models"
)

type fakeTx struct {
	account     *models.Account
	updated     *models.Account
	saved       []*models.CreditTransaction
	saveErr     error
	committed   bool
	rolledBack  int
	lockedEmail models.Email
}

func (f *fakeTx) LockAccountByEmail(_ context.Context, email models.Email) (*models.Account, error) {
	f.lockedEmail = email
	if f.account == nil {
		return nil, models.ErrUserNotFound
	}
	return f.account, nil
}

func (f *fakeTx) LockAccountByID(_ context.Context, id uuid.UUID) (*models.Account, error) {
	if f.account == nil || f.account.ID() != id {
		return nil, models.ErrUserNotFound
	}
	return f.account, nil
}

func (f *fakeTx) UpdateAccount(_ context.Context, acc *models.Account) error {
	f.updated = acc
	return nil
}

func (f *fakeTx) SaveTransaction(_ context.Context, rec *models.CreditTransaction) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, rec)
	return nil
}

func (f *fakeTx) FindTransactionByPaymentReference(context.Context, string) (*models.CreditTransaction, error) {
	return nil, models.ErrTransactionNotFound
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolledBack++
	return nil
}

type fakeStore struct {
	Store
	tx *fakeTx
}

func (s *fakeStore) Begin(context.Context) (Tx, error) { return s.tx, nil }

func newAccount(t *testing.T, balance models.Credits) *models.Account {
	t.Helper()
	acc, err := models.RestoreAccount(models.AccountParams{
		ID:             uuid.New(),
		Email:          models.MustParseEmail("uow@example.com"),
		Balance:        balance,
		TotalPurchased: models.ZeroMoney("USD"),
	})
	if err != nil {
		t.Fatal(err)
	}
	return acc
}

func TestUnitOfWork_CommitWritesAccountAndRecords(t *testing.T) {
	ctx := context.Background()
	tx := &fakeTx{account: newAccount(t, 10)}
	uow, err := BeginForEmail(ctx, &fakeStore{tx: tx}, models.MustParseEmail("uow@example.com"))
	if err != nil {
		t.Fatalf("BeginForEmail: %v", err)
	}

	rec, err := uow.Account().DeductCredits(3, "gen")
	if err != nil {
		t.Fatalf("DeductCredits: %v", err)
	}
	uow.Stage(rec)
	if len(uow.Pending()) != 1 {
		t.Fatalf("expected 1 pending record, got %d", len(uow.Pending()))
	}

	if err := uow.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if !tx.committed {
		t.Fatal("expected tx commit")
	}
	if tx.updated == nil || tx.updated.Balance() != 7 {
		t.Fatal("expected account written with balance 7")
	}
	if len(tx.saved) != 1 || tx.saved[0] != rec {
		t.Fatalf("expected staged record saved, got %d", len(tx.saved))
	}
	if len(uow.Pending()) != 0 {
		t.Fatal("pending list not cleared after commit")
	}
	uow.Rollback(ctx)
	if tx.rolledBack != 0 {
		t.Fatal("rollback after commit must be a no-op")
	}
}

func TestUnitOfWork_SaveFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	tx := &fakeTx{account: newAccount(t, 0), saveErr: models.ErrDuplicatePayment}
	uow, err := BeginForAccount(ctx, &fakeStore{tx: tx}, tx.account.ID())
	if err != nil {
		t.Fatalf("BeginForAccount: %v", err)
	}
	rec, err := uow.Account().AddCredits(10, models.MustParseMoney("9.99", "USD"), "cs_dup", "Purchase: Starter Pack")
	if err != nil {
		t.Fatal(err)
	}
	uow.Stage(rec)

	err = uow.Commit(ctx)
	if !errors.Is(err, models.ErrDuplicatePayment) {
		t.Fatalf("expected ErrDuplicatePayment, got %v", err)
	}
	if tx.committed {
		t.Fatal("tx must not commit when a record fails to save")
	}
	if tx.rolledBack != 1 {
		t.Fatalf("expected one rollback, got %d", tx.rolledBack)
	}
	if len(uow.Pending()) != 0 {
		t.Fatal("pending list not cleared after failed commit")
	}
	if err := uow.Commit(ctx); err == nil {
		t.Fatal("expected error committing a closed unit of work")
	}
}

func TestUnitOfWork_LockFailureRollsBack(t *testing.T) {
	tx := &fakeTx{}
	_, err := BeginForEmail(context.Background(), &fakeStore{tx: tx}, models.MustParseEmail("missing@example.com"))
	if !errors.Is(err, models.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if tx.rolledBack != 1 {
		t.Fatal("expected rollback when lock fails")
	}
}
