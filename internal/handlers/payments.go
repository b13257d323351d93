package handlers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Bukachka23/image-backend/internal/models"
	"github.com/Bukachka23/image-backend/internal/services"
)

// PaymentCompleter is implemented by services.Ledger.
type PaymentCompleter interface {
	CompletePayment(ctx context.Context, req services.CompletePaymentRequest) (*services.CompletePaymentResponse, error)
}

// InlinePayments completes payments synchronously, for deployments without
// a job queue.
type InlinePayments struct {
	Ledger PaymentCompleter
	Logger *slog.Logger
}

// SubmitPayment swallows errors that a webhook retry cannot fix.
func (p *InlinePayments) SubmitPayment(ctx context.Context, req services.CompletePaymentRequest) error {
	resp, err := p.Ledger.CompletePayment(ctx, req)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) ||
			errors.Is(err, models.ErrInvalidArgument) ||
			errors.Is(err, models.ErrInvalidCreditPackage) {
			p.Logger.Error("failed to complete payment", "session_id", req.PaymentReference, "error", err)
			return nil
		}
		return err
	}
	p.Logger.Info("credits added", "email", req.Email.String(), "credits", resp.CreditsAdded.Int64(), "duplicate", resp.Duplicate)
	return nil
}
