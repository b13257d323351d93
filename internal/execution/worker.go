package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/Bukachka23/image-backend/internal/models"
	"github.com/Bukachka23/image-backend/internal/services"
)

const maxAttempts = 10

type CompletePaymentArgs struct {
	Email            string `json:"email"`
	PackageKey       string `json:"package"`
	Credits          int64  `json:"credits"`
	PaymentReference string `json:"payment_reference"`
}

func (CompletePaymentArgs) Kind() string { return "complete_payment" }

// InsertOpts dedupes webhook retries that arrive while a job is still queued.
func (CompletePaymentArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: maxAttempts, UniqueOpts: river.UniqueOpts{ByArgs: true}}
}

type RefundUsageArgs struct {
	AccountID          uuid.UUID `json:"account_id"`
	UsageTransactionID uuid.UUID `json:"usage_transaction_id"`
	Credits            int64     `json:"credits"`
	Reason             string    `json:"reason"`
}

func (RefundUsageArgs) Kind() string { return "refund_usage" }

func (RefundUsageArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: maxAttempts, UniqueOpts: river.UniqueOpts{ByArgs: true}}
}

// PaymentService is what the payment worker needs from the ledger.
type PaymentService interface {
	CompletePayment(ctx context.Context, req services.CompletePaymentRequest) (*services.CompletePaymentResponse, error)
}

// RefundService is what the refund worker needs from the ledger.
type RefundService interface {
	RefundUsage(ctx context.Context, req services.RefundRequest) error
}

type CompletePaymentWorker struct {
	river.WorkerDefaults[CompletePaymentArgs]
	payments PaymentService
	logger   *slog.Logger
}

func NewCompletePaymentWorker(ps PaymentService, logger *slog.Logger) *CompletePaymentWorker {
	return &CompletePaymentWorker{payments: ps, logger: logger}
}

func (w *CompletePaymentWorker) Work(ctx context.Context, job *river.Job[CompletePaymentArgs]) error {
	args := job.Args
	email, err := models.ParseEmail(args.Email)
	if err != nil {
		return river.JobCancel(err)
	}

	resp, err := w.payments.CompletePayment(ctx, services.CompletePaymentRequest{
		Email:            email,
		PackageKey:       args.PackageKey,
		Credits:          models.Credits(args.Credits),
		PaymentReference: args.PaymentReference,
	})
	if err != nil {
		if permanent(err) {
			w.logger.Error("payment completion cancelled", "payment_reference", args.PaymentReference, "error", err)
			return river.JobCancel(err)
		}
		return fmt.Errorf("complete payment %s: %w", args.PaymentReference, err)
	}
	w.logger.Info("payment completed",
		"payment_reference", args.PaymentReference,
		"credits_added", resp.CreditsAdded.Int64(),
		"duplicate", resp.Duplicate,
	)
	return nil
}

type RefundUsageWorker struct {
	river.WorkerDefaults[RefundUsageArgs]
	refunds RefundService
	logger  *slog.Logger
}

func NewRefundUsageWorker(rs RefundService, logger *slog.Logger) *RefundUsageWorker {
	return &RefundUsageWorker{refunds: rs, logger: logger}
}

func (w *RefundUsageWorker) Work(ctx context.Context, job *river.Job[RefundUsageArgs]) error {
	args := job.Args
	err := w.refunds.RefundUsage(ctx, services.RefundRequest{
		AccountID:          args.AccountID,
		UsageTransactionID: args.UsageTransactionID,
		Credits:            models.Credits(args.Credits),
		Reason:             args.Reason,
	})
	if err != nil {
		if permanent(err) {
			w.logger.Error("refund cancelled", "usage_transaction_id", args.UsageTransactionID, "error", err)
			return river.JobCancel(err)
		}
		return fmt.Errorf("refund usage %s: %w", args.UsageTransactionID, err)
	}
	w.logger.Info("refund applied by worker", "usage_transaction_id", args.UsageTransactionID, "credits", args.Credits)
	return nil
}

// permanent reports errors that will not go away on retry.
func permanent(err error) bool {
	return errors.Is(err, models.ErrUserNotFound) ||
		errors.Is(err, models.ErrInvalidArgument) ||
		errors.Is(err, models.ErrInvalidCreditPackage)
}

type inserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// Queue enqueues ledger work on River. It implements services.RefundScheduler.
type Queue struct {
	client inserter
}

var _ services.RefundScheduler = (*Queue)(nil)

func NewQueue(client *river.Client[pgx.Tx]) *Queue {
	return &Queue{client: client}
}

func (q *Queue) ScheduleRefund(ctx context.Context, req services.RefundRequest) error {
	_, err := q.client.Insert(ctx, RefundUsageArgs{
		AccountID:          req.AccountID,
		UsageTransactionID: req.UsageTransactionID,
		Credits:            req.Credits.Int64(),
		Reason:             req.Reason,
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueue refund: %w", err)
	}
	return nil
}

// SubmitPayment enqueues a payment completion.
func (q *Queue) SubmitPayment(ctx context.Context, req services.CompletePaymentRequest) error {
	_, err := q.client.Insert(ctx, CompletePaymentArgs{
		Email:            req.Email.String(),
		PackageKey:       req.PackageKey,
		Credits:          req.Credits.Int64(),
		PaymentReference: req.PaymentReference,
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueue payment completion: %w", err)
	}
	return nil
}
