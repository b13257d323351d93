package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/Bukachka23/image-backend/internal/ledger"
	"github.com/Bukachka23/image-backend/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedAccount(t *testing.T, s *Store, email string) *models.Account {
	t.Helper()
	acc, err := s.SaveNewAccount(context.Background(), models.NewAccount(models.MustParseEmail(email)))
	if err != nil {
		t.Fatalf("SaveNewAccount() error: %v", err)
	}
	return acc
}

// ─── Accounts ───────────────────────────────────────────────────────────────

func TestSaveNewAccount_AssignsID(t *testing.T) {
	s := newTestStore(t)
	acc := seedAccount(t, s, "new@example.com")

	if acc.ID().String() == "00000000-0000-0000-0000-000000000000" {
		t.Fatal("expected an assigned id")
	}
	if acc.Balance() != 0 {
		t.Errorf("balance = %d, want 0", acc.Balance())
	}

	found, err := s.FindAccountByEmail(context.Background(), models.MustParseEmail("NEW@example.com"))
	if err != nil {
		t.Fatalf("FindAccountByEmail() error: %v", err)
	}
	if found.ID() != acc.ID() {
		t.Errorf("found id %s, want %s", found.ID(), acc.ID())
	}
}

func TestSaveNewAccount_DuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	seedAccount(t, s, "dup@example.com")

	_, err := s.SaveNewAccount(context.Background(), models.NewAccount(models.MustParseEmail("dup@example.com")))
	if !errors.Is(err, models.ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
}

func TestFindAccount_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.FindAccountByEmail(ctx, models.MustParseEmail("ghost@example.com")); !errors.Is(err, models.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	exists, err := s.ExistsByEmail(ctx, models.MustParseEmail("ghost@example.com"))
	if err != nil || exists {
		t.Fatalf("ExistsByEmail = %v, %v; want false, nil", exists, err)
	}
}

// ─── Unit of work ───────────────────────────────────────────────────────────

func TestUnitOfWork_PersistsAccountAndRecords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	acc := seedAccount(t, s, "buyer@example.com")

	uow, err := ledger.BeginForAccount(ctx, s, acc.ID())
	if err != nil {
		t.Fatalf("BeginForAccount() error: %v", err)
	}
	purchase, err := uow.Account().AddCredits(10, models.MustParseMoney("9.99", "USD"), "cs_test_1", "Purchase: Starter Pack")
	if err != nil {
		t.Fatal(err)
	}
	uow.Stage(purchase)
	usage, err := uow.Account().DeductCredits(3, "Image generation (3 variations)")
	if err != nil {
		t.Fatal(err)
	}
	uow.Stage(usage)
	uow.Account().SetPaymentCustomerID("cus_1")
	if err := uow.Commit(ctx); err != nil {
		t.Fatalf("Commit() error: %v", err)
	}

	reloaded, err := s.FindAccountByID(ctx, acc.ID())
	if err != nil {
		t.Fatalf("FindAccountByID() error: %v", err)
	}
	if reloaded.Balance() != 7 {
		t.Errorf("balance = %d, want 7", reloaded.Balance())
	}
	if reloaded.TotalPurchased().Cents() != 999 {
		t.Errorf("total cents = %d, want 999", reloaded.TotalPurchased().Cents())
	}
	if reloaded.PaymentCustomerID() != "cus_1" {
		t.Errorf("customer = %q, want cus_1", reloaded.PaymentCustomerID())
	}

	history, err := s.FindTransactionsByAccount(ctx, acc.ID(), 10)
	if err != nil {
		t.Fatalf("FindTransactionsByAccount() error: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history len = %d, want 2", len(history))
	}
	if history[0].Kind() != models.KindUsage || history[1].Kind() != models.KindPurchase {
		t.Errorf("expected newest first, got %s then %s", history[0].Kind(), history[1].Kind())
	}

	found, err := s.FindTransactionByPaymentReference(ctx, "cs_test_1")
	if err != nil {
		t.Fatalf("FindTransactionByPaymentReference() error: %v", err)
	}
	if amount, ok := found.Amount(); !ok || amount.Cents() != 999 {
		t.Errorf("stored amount not round-tripped")
	}
}

func TestUnitOfWork_DuplicatePaymentReference(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	acc := seedAccount(t, s, "twice@example.com")

	credit := func() error {
		uow, err := ledger.BeginForAccount(ctx, s, acc.ID())
		if err != nil {
			return err
		}
		rec, err := uow.Account().AddCredits(10, models.MustParseMoney("9.99", "USD"), "cs_same", "Purchase: Starter Pack")
		if err != nil {
			uow.Rollback(ctx)
			return err
		}
		uow.Stage(rec)
		return uow.Commit(ctx)
	}

	if err := credit(); err != nil {
		t.Fatalf("first credit: %v", err)
	}
	if err := credit(); !errors.Is(err, models.ErrDuplicatePayment) {
		t.Fatalf("expected ErrDuplicatePayment, got %v", err)
	}

	reloaded, _ := s.FindAccountByID(ctx, acc.ID())
	if reloaded.Balance() != 10 {
		t.Errorf("balance = %d, want 10 (rolled back)", reloaded.Balance())
	}
}

func TestUnitOfWork_DuplicateRefund(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	acc := seedAccount(t, s, "refund@example.com")

	uow, _ := ledger.BeginForAccount(ctx, s, acc.ID())
	purchase, _ := uow.Account().AddCredits(10, models.MustParseMoney("9.99", "USD"), "cs_r", "Purchase: Starter Pack")
	uow.Stage(purchase)
	usage, _ := uow.Account().DeductCredits(3, "gen")
	uow.Stage(usage)
	if err := uow.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	refund := func() error {
		uow, err := ledger.BeginForAccount(ctx, s, acc.ID())
		if err != nil {
			return err
		}
		rec, err := uow.Account().RefundCredits(3, "Generation failed - no images produced", usage.ID())
		if err != nil {
			uow.Rollback(ctx)
			return err
		}
		uow.Stage(rec)
		return uow.Commit(ctx)
	}
	if err := refund(); err != nil {
		t.Fatalf("first refund: %v", err)
	}
	if err := refund(); !errors.Is(err, models.ErrDuplicateRefund) {
		t.Fatalf("expected ErrDuplicateRefund, got %v", err)
	}

	reloaded, _ := s.FindAccountByID(ctx, acc.ID())
	if reloaded.Balance() != 10 {
		t.Errorf("balance = %d, want 10", reloaded.Balance())
	}
}

func TestTransactionByPaymentReference_NotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.FindTransactionByPaymentReference(context.Background(), "cs_missing"); !errors.Is(err, models.ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
}
