package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Bukachka23/image-backend/internal/ledger"
	"github.com/Bukachka23/image-backend/internal/models"
)

const (
	// DefaultGenerationCost is charged per spend-and-generate request.
	DefaultGenerationCost models.Credits = 3
	// GenerationVariants is how many images one request asks for.
	GenerationVariants = 3
	// DefaultGenerationTimeout bounds one generator call after the debit.
	DefaultGenerationTimeout = 2 * time.Minute
)

// Ledger runs the credit workflows. Every balance change goes through a
// ledger.UnitOfWork so the account and its record are written together.
type Ledger struct {
	Store     ledger.Store
	Generator Generator
	Payments  PaymentGateway
	// Refunds is optional. When set, refunds that fail inline are retried
	// through it.
	Refunds           RefundScheduler
	Cost              models.Credits
	GenerationTimeout time.Duration
	Logger            *slog.Logger
}

// NewLedger returns a Ledger with the default cost and timeout.
func NewLedger(store ledger.Store, generator Generator, payments PaymentGateway, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		Store:             store,
		Generator:         generator,
		Payments:          payments,
		Cost:              DefaultGenerationCost,
		GenerationTimeout: DefaultGenerationTimeout,
		Logger:            logger,
	}
}

func (l *Ledger) cost() models.Credits {
	if l.Cost <= 0 {
		return DefaultGenerationCost
	}
	return l.Cost
}

func (l *Ledger) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

// findOrCreate loads the account for email, creating an empty one on first
// sight. A concurrent creator winning the insert is resolved by re-reading.
func (l *Ledger) findOrCreate(ctx context.Context, email models.Email) (*models.Account, error) {
	acc, err := l.Store.FindAccountByEmail(ctx, email)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, models.ErrUserNotFound) {
		return nil, fmt.Errorf("%w: load account: %v", models.ErrUnexpected, err)
	}

	acc, err = l.Store.SaveNewAccount(ctx, models.NewAccount(email))
	if errors.Is(err, models.ErrAccountExists) {
		acc, err = l.Store.FindAccountByEmail(ctx, email)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: create account: %v", models.ErrUnexpected, err)
	}
	l.logger().Info("account created", "email", email.String(), "account_id", acc.ID())
	return acc, nil
}

// commit writes uow and counts the credits each staged record moved.
func commit(ctx context.Context, uow *ledger.UnitOfWork) error {
	staged := uow.Pending()
	if err := uow.Commit(ctx); err != nil {
		return err
	}
	for _, rec := range staged {
		moved := rec.Credits()
		if moved.IsNegative() {
			moved = moved.Neg()
		}
		creditsMovedTotal.WithLabelValues(string(rec.Kind())).Add(float64(moved))
	}
	return nil
}

// storeError keeps domain sentinels and wraps everything else as unexpected.
func storeError(op string, err error) error {
	for _, known := range []error{
		models.ErrUserNotFound,
		models.ErrInsufficientCredits,
		models.ErrInvalidArgument,
		models.ErrDuplicatePayment,
		models.ErrDuplicateRefund,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %s: %v", models.ErrUnexpected, op, err)
}
