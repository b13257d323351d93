package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Bukachka23/image-backend/internal/ledger"
	"github.com/Bukachka23/image-backend/internal/models"
)

const (
	usageDescription      = "Image generation (3 variations)"
	refundNoImagesReason  = "Generation failed - no images produced"
	refundErrorReasonFmt  = "Error during generation: %s"
	maxRefundReasonDetail = 100
)

type GenerateRequest struct {
	Email  models.Email
	Prompt string
	Mode   TransformationMode
	Image  ReferenceImage
}

type GenerateResponse struct {
	Images           []string       `json:"images"`
	CreditsUsed      models.Credits `json:"credits_used"`
	CreditsRemaining models.Credits `json:"credits_remaining"`
}

// SpendAndGenerate debits the generation cost, calls the generator and, if
// no image comes back, refunds the debit with a refund record linked to the
// usage record. Any non-empty result is charged in full.
//
// Once the debit commits, generation runs to completion (or its own timeout)
// even if ctx is cancelled, so the refund path always gets a chance to run.
func (l *Ledger) SpendAndGenerate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	log := l.logger().With("email", req.Email.String())
	cost := l.cost()

	acc, err := l.Store.FindAccountByEmail(ctx, req.Email)
	if err != nil {
		return nil, storeError("load account", err)
	}
	if !acc.HasSufficientCredits(cost) {
		generationsTotal.WithLabelValues("insufficient_credits").Inc()
		return nil, &models.InsufficientCreditsError{Required: cost, Available: acc.Balance()}
	}

	usage, remaining, err := l.debit(ctx, req.Email, cost)
	if err != nil {
		if errors.Is(err, models.ErrInsufficientCredits) {
			generationsTotal.WithLabelValues("insufficient_credits").Inc()
		}
		return nil, err
	}
	log.Info("credits debited", "credits", cost, "balance", remaining, "usage_id", usage.ID())

	genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.generationTimeout())
	defer cancel()

	started := time.Now()
	images, genErr := l.Generator.Generate(genCtx, BuildPrompt(req.Prompt, req.Mode), req.Image, GenerationVariants)
	generationLatency.Observe(time.Since(started).Seconds())

	if genErr == nil && len(images) > 0 {
		generationsTotal.WithLabelValues("success").Inc()
		log.Info("generation succeeded", "images", len(images), "balance", remaining)
		return &GenerateResponse{Images: images, CreditsUsed: cost, CreditsRemaining: remaining}, nil
	}

	reason := refundNoImagesReason
	if genErr != nil {
		reason = fmt.Sprintf(refundErrorReasonFmt, truncate(genErr.Error(), maxRefundReasonDetail))
		log.Error("generation failed", "error", genErr)
	} else {
		log.Warn("generation produced no images")
	}
	generationsTotal.WithLabelValues("refunded").Inc()

	l.compensate(context.WithoutCancel(ctx), RefundRequest{
		AccountID:          usage.AccountID(),
		UsageTransactionID: usage.ID(),
		Credits:            cost,
		Reason:             reason,
	})

	if genErr != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrImageGeneration, genErr)
	}
	return nil, fmt.Errorf("%w: failed to generate any images", models.ErrImageGeneration)
}

// debit locks the account, re-checks the balance and commits the usage record.
func (l *Ledger) debit(ctx context.Context, email models.Email, cost models.Credits) (*models.CreditTransaction, models.Credits, error) {
	uow, err := ledger.BeginForEmail(ctx, l.Store, email)
	if err != nil {
		return nil, 0, storeError("lock account", err)
	}
	defer uow.Rollback(ctx)

	usage, err := uow.Account().DeductCredits(cost, usageDescription)
	if err != nil {
		return nil, 0, err
	}
	uow.Stage(usage)
	if err := commit(ctx, uow); err != nil {
		return nil, 0, storeError("commit debit", err)
	}
	return usage, uow.Account().Balance(), nil
}

// compensate writes the refund inline and hands it to the scheduler when
// that fails. It never returns an error: the caller already has one to report.
func (l *Ledger) compensate(ctx context.Context, req RefundRequest) {
	log := l.logger().With("account_id", req.AccountID, "usage_id", req.UsageTransactionID)
	err := l.RefundUsage(ctx, req)
	if err == nil {
		return
	}
	refundFailuresTotal.Inc()
	log.Error("refund failed", "error", err, "credits", req.Credits)
	if l.Refunds == nil {
		return
	}
	if err := l.Refunds.ScheduleRefund(ctx, req); err != nil {
		log.Error("refund could not be scheduled", "error", err)
		return
	}
	log.Info("refund scheduled for retry")
}

// RefundUsage credits back a usage. A usage that was already refunded is
// left alone and reported as success, so retries are safe.
func (l *Ledger) RefundUsage(ctx context.Context, req RefundRequest) error {
	uow, err := ledger.BeginForAccount(ctx, l.Store, req.AccountID)
	if err != nil {
		return storeError("lock account", err)
	}
	defer uow.Rollback(ctx)

	rec, err := uow.Account().RefundCredits(req.Credits, req.Reason, req.UsageTransactionID)
	if err != nil {
		return err
	}
	uow.Stage(rec)
	if err := commit(ctx, uow); err != nil {
		if errors.Is(err, models.ErrDuplicateRefund) {
			l.logger().Info("usage already refunded", "usage_id", req.UsageTransactionID)
			return nil
		}
		return storeError("commit refund", err)
	}
	l.logger().Info("credits refunded",
		"account_id", req.AccountID,
		"usage_id", req.UsageTransactionID,
		"credits", rec.Credits(),
		"balance", uow.Account().Balance(),
		"reason", req.Reason,
	)
	return nil
}

func (l *Ledger) generationTimeout() time.Duration {
	if l.GenerationTimeout <= 0 {
		return DefaultGenerationTimeout
	}
	return l.GenerationTimeout
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
