package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/Bukachka23/image-backend/internal/ledger"
	"github.com/Bukachka23/image-backend/internal/models"
)

// ---------------------------------------------------------------------------
// In-memory ledger.Store. Begin takes writeMu and holds it until Commit or
// Rollback, standing in for the row lock a real database would take.
// ---------------------------------------------------------------------------

type memStore struct {
	writeMu sync.Mutex

	mu       sync.Mutex
	accounts map[uuid.UUID]models.AccountParams
	byEmail  map[string]uuid.UUID
	txns     []*models.CreditTransaction
	// saveHook, when set, can fail SaveTransaction for chosen records.
	saveHook func(*models.CreditTransaction) error
	// blindRefLookup makes the in-transaction payment reference lookup miss,
	// so duplicates are only caught when the record is saved.
	blindRefLookup bool
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[uuid.UUID]models.AccountParams),
		byEmail:  make(map[string]uuid.UUID),
	}
}

func (s *memStore) restore(p models.AccountParams) *models.Account {
	acc, err := models.RestoreAccount(p)
	if err != nil {
		panic(err)
	}
	return acc
}

func (s *memStore) FindAccountByEmail(_ context.Context, email models.Email) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[email.String()]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	return s.restore(s.accounts[id]), nil
}

func (s *memStore) FindAccountByID(_ context.Context, id uuid.UUID) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.accounts[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	return s.restore(p), nil
}

func (s *memStore) ExistsByEmail(_ context.Context, email models.Email) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byEmail[email.String()]
	return ok, nil
}

func (s *memStore) SaveNewAccount(_ context.Context, acc *models.Account) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := acc.Params()
	if _, ok := s.byEmail[p.Email.String()]; ok {
		return nil, models.ErrAccountExists
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	s.accounts[p.ID] = p
	s.byEmail[p.Email.String()] = p.ID
	return s.restore(p), nil
}

func (s *memStore) FindTransactionsByAccount(_ context.Context, accountID uuid.UUID, limit int) ([]*models.CreditTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.CreditTransaction
	for i := len(s.txns) - 1; i >= 0 && len(out) < limit; i-- {
		if s.txns[i].AccountID() == accountID {
			out = append(out, s.txns[i])
		}
	}
	return out, nil
}

func (s *memStore) FindTransactionByPaymentReference(_ context.Context, ref string) (*models.CreditTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return findByRef(s.txns, ref)
}

func (s *memStore) Begin(context.Context) (ledger.Tx, error) {
	s.writeMu.Lock()
	return &memTx{s: s, updates: make(map[uuid.UUID]models.AccountParams)}, nil
}

// seed creates an account with balance, recorded as one purchase so the
// ledger sum matches.
func (s *memStore) seed(t *testing.T, email string, balance models.Credits) *models.Account {
	t.Helper()
	acc, err := s.SaveNewAccount(context.Background(), models.NewAccount(models.MustParseEmail(email)))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if balance == 0 {
		return acc
	}
	rec, err := acc.AddCredits(balance, models.MustParseMoney("1.00", "USD"), "seed_"+uuid.NewString(), "seed")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	s.mu.Lock()
	s.accounts[acc.ID()] = acc.Params()
	s.txns = append(s.txns, rec)
	s.mu.Unlock()
	return acc
}

func (s *memStore) balance(t *testing.T, email string) models.Credits {
	t.Helper()
	acc, err := s.FindAccountByEmail(context.Background(), models.MustParseEmail(email))
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return acc.Balance()
}

func (s *memStore) records(accountID uuid.UUID) []*models.CreditTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.CreditTransaction
	for _, r := range s.txns {
		if r.AccountID() == accountID {
			out = append(out, r)
		}
	}
	return out
}

func (s *memStore) ledgerSum(accountID uuid.UUID) models.Credits {
	var sum models.Credits
	for _, r := range s.records(accountID) {
		sum += r.Credits()
	}
	return sum
}

func findByRef(txns []*models.CreditTransaction, ref string) (*models.CreditTransaction, error) {
	for _, r := range txns {
		if r.PaymentReference() == ref {
			return r, nil
		}
	}
	return nil, models.ErrTransactionNotFound
}

type memTx struct {
	s       *memStore
	updates map[uuid.UUID]models.AccountParams
	staged  []*models.CreditTransaction
	done    bool
}

func (t *memTx) LockAccountByEmail(ctx context.Context, email models.Email) (*models.Account, error) {
	return t.s.FindAccountByEmail(ctx, email)
}

func (t *memTx) LockAccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return t.s.FindAccountByID(ctx, id)
}

func (t *memTx) UpdateAccount(_ context.Context, acc *models.Account) error {
	t.updates[acc.ID()] = acc.Params()
	return nil
}

func (t *memTx) SaveTransaction(_ context.Context, rec *models.CreditTransaction) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.s.saveHook != nil {
		if err := t.s.saveHook(rec); err != nil {
			return err
		}
	}
	all := append(append([]*models.CreditTransaction{}, t.s.txns...), t.staged...)
	if ref := rec.PaymentReference(); ref != "" {
		if _, err := findByRef(all, ref); err == nil {
			return models.ErrDuplicatePayment
		}
	}
	if related, ok := rec.RelatedTransactionID(); ok && rec.Kind() == models.KindRefund {
		for _, r := range all {
			if id, ok := r.RelatedTransactionID(); ok && id == related && r.Kind() == models.KindRefund {
				return models.ErrDuplicateRefund
			}
		}
	}
	t.staged = append(t.staged, rec)
	return nil
}

func (t *memTx) FindTransactionByPaymentReference(_ context.Context, ref string) (*models.CreditTransaction, error) {
	if t.s.blindRefLookup {
		return nil, models.ErrTransactionNotFound
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return findByRef(append(append([]*models.CreditTransaction{}, t.s.txns...), t.staged...), ref)
}

func (t *memTx) Commit(context.Context) error {
	if t.done {
		return errors.New("tx closed")
	}
	t.s.mu.Lock()
	for id, p := range t.updates {
		t.s.accounts[id] = p
	}
	t.s.txns = append(t.s.txns, t.staged...)
	t.s.mu.Unlock()
	t.done = true
	t.s.writeMu.Unlock()
	return nil
}

func (t *memTx) Rollback(context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.s.writeMu.Unlock()
	return nil
}

// ---------------------------------------------------------------------------
// Capability fakes.
// ---------------------------------------------------------------------------

type fakeGenerator struct {
	mu     sync.Mutex
	images []string
	err    error
	calls  int
	prompt string
	before func(ctx context.Context)
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string, _ ReferenceImage, _ int) ([]string, error) {
	g.mu.Lock()
	g.calls++
	g.prompt = prompt
	before := g.before
	g.mu.Unlock()
	if before != nil {
		before(ctx)
	}
	return g.images, g.err
}

type fakePayments struct {
	mu          sync.Mutex
	customerErr error
	checkoutErr error
	customers   int
	checkouts   []CheckoutRequest
}

func (p *fakePayments) CreateCustomer(_ context.Context, email models.Email) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.customerErr != nil {
		return "", p.customerErr
	}
	p.customers++
	return "cus_" + email.String(), nil
}

func (p *fakePayments) CreateCheckoutSession(_ context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.checkoutErr != nil {
		return nil, p.checkoutErr
	}
	p.checkouts = append(p.checkouts, req)
	return &CheckoutSession{ID: "cs_test_1", URL: "https://checkout.example/cs_test_1"}, nil
}

func (p *fakePayments) VerifyAndDecodeEvent([]byte, string) (*PaymentEvent, error) {
	return nil, errors.New("not used")
}

type fakeScheduler struct {
	mu   sync.Mutex
	reqs []RefundRequest
}

func (f *fakeScheduler) ScheduleRefund(_ context.Context, req RefundRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return nil
}

func newTestLedger(store *memStore, gen *fakeGenerator, pay *fakePayments) *Ledger {
	if gen == nil {
		gen = &fakeGenerator{}
	}
	if pay == nil {
		pay = &fakePayments{}
	}
	return NewLedger(store, gen, pay, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func email(s string) models.Email { return models.MustParseEmail(s) }
