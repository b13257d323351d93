package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Bukachka23/image-backend/internal/ledger"
	"github.com/Bukachka23/image-backend/internal/models"
)

// EventCheckoutCompleted is the only webhook event that grants credits.
const EventCheckoutCompleted = "checkout.session.completed"

type CompletePaymentRequest struct {
	Email            models.Email
	PackageKey       string
	Credits          models.Credits
	PaymentReference string
}

type CompletePaymentResponse struct {
	CreditsAdded models.Credits `json:"credits_added"`
	TotalCredits models.Credits `json:"total_credits"`
	// Duplicate is set when the payment reference was already recorded and
	// nothing was credited.
	Duplicate bool `json:"duplicate,omitempty"`
}

// CompletePaymentRequestFromEvent extracts the completion from a verified
// event. ok is false for events that do not grant credits.
func CompletePaymentRequestFromEvent(ev *PaymentEvent) (req CompletePaymentRequest, ok bool, err error) {
	if ev == nil || ev.Type != EventCheckoutCompleted {
		return CompletePaymentRequest{}, false, nil
	}
	email, err := models.ParseEmail(ev.Metadata[MetadataEmail])
	if err != nil {
		return CompletePaymentRequest{}, true, err
	}
	credits, err := strconv.ParseInt(ev.Metadata[MetadataCredits], 10, 64)
	if err != nil || credits <= 0 {
		return CompletePaymentRequest{}, true, fmt.Errorf("%w: bad credits metadata %q", models.ErrInvalidArgument, ev.Metadata[MetadataCredits])
	}
	if ev.SessionID == "" {
		return CompletePaymentRequest{}, true, fmt.Errorf("%w: event has no session id", models.ErrInvalidArgument)
	}
	return CompletePaymentRequest{
		Email:            email,
		PackageKey:       ev.Metadata[MetadataPackage],
		Credits:          models.Credits(credits),
		PaymentReference: ev.SessionID,
	}, true, nil
}

// CompletePayment credits a paid checkout exactly once per payment
// reference. A replay returns Duplicate with the current balance and leaves
// the ledger untouched.
func (l *Ledger) CompletePayment(ctx context.Context, req CompletePaymentRequest) (*CompletePaymentResponse, error) {
	log := l.logger().With("email", req.Email.String(), "payment_reference", req.PaymentReference)
	if req.PaymentReference == "" {
		return nil, fmt.Errorf("%w: payment reference is required", models.ErrInvalidArgument)
	}

	uow, err := ledger.BeginForEmail(ctx, l.Store, req.Email)
	if err != nil {
		return nil, storeError("lock account", err)
	}
	defer uow.Rollback(ctx)
	acc := uow.Account()

	pkg, err := models.LookupPackage(req.PackageKey)
	if err != nil {
		paymentsTotal.WithLabelValues("bad_package").Inc()
		log.Error("paid checkout references unknown package", "package", req.PackageKey)
		return nil, fmt.Errorf("%w: %w", models.ErrUnexpected, err)
	}

	_, err = uow.Tx().FindTransactionByPaymentReference(ctx, req.PaymentReference)
	switch {
	case err == nil:
		paymentsTotal.WithLabelValues("duplicate").Inc()
		log.Info("payment already recorded")
		return &CompletePaymentResponse{TotalCredits: acc.Balance(), Duplicate: true}, nil
	case !errors.Is(err, models.ErrTransactionNotFound):
		return nil, storeError("check payment reference", err)
	}

	if req.Credits != pkg.Credits {
		log.Warn("credit count differs from catalog", "package", pkg.Key, "requested", req.Credits, "catalog", pkg.Credits)
	}

	rec, err := acc.AddCredits(req.Credits, pkg.Price, req.PaymentReference, "Purchase: "+pkg.Name)
	if err != nil {
		return nil, err
	}
	uow.Stage(rec)
	if err := commit(ctx, uow); err != nil {
		if errors.Is(err, models.ErrDuplicatePayment) {
			return l.duplicatePayment(ctx, req, log)
		}
		return nil, storeError("commit payment", err)
	}

	paymentsTotal.WithLabelValues("credited").Inc()
	log.Info("payment credited", "credits", req.Credits, "balance", acc.Balance(), "amount", pkg.Price.String())
	return &CompletePaymentResponse{CreditsAdded: req.Credits, TotalCredits: acc.Balance()}, nil
}

// duplicatePayment answers a replay that lost the race at insert time.
func (l *Ledger) duplicatePayment(ctx context.Context, req CompletePaymentRequest, log *slog.Logger) (*CompletePaymentResponse, error) {
	paymentsTotal.WithLabelValues("duplicate").Inc()
	log.Info("payment already recorded")
	acc, err := l.Store.FindAccountByEmail(ctx, req.Email)
	if err != nil {
		return nil, storeError("reload account", err)
	}
	return &CompletePaymentResponse{TotalCredits: acc.Balance(), Duplicate: true}, nil
}
