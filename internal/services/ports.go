package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/Bukachka23/image-backend/internal/models"
)

// ReferenceImage is the user's uploaded photo.
type ReferenceImage struct {
	Data     []byte
	MIMEType string
}

// Generator produces up to variants images for prompt. Each image is returned
// as a data URI. An empty slice with a nil error means the backend answered
// but produced nothing.
type Generator interface {
	Generate(ctx context.Context, prompt string, ref ReferenceImage, variants int) ([]string, error)
}

// CheckoutRequest describes a hosted checkout page for one package.
type CheckoutRequest struct {
	CustomerID  string
	Price       models.Money
	Name        string
	Description string
	SuccessURL  string
	CancelURL   string
	Metadata    map[string]string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// PaymentEvent is a verified webhook notification.
type PaymentEvent struct {
	Type      string
	SessionID string
	Metadata  map[string]string
}

// PaymentGateway is the payment processor.
type PaymentGateway interface {
	CreateCustomer(ctx context.Context, email models.Email) (string, error)
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	// VerifyAndDecodeEvent rejects payloads whose signature does not match.
	VerifyAndDecodeEvent(payload []byte, signature string) (*PaymentEvent, error)
}

// RefundRequest identifies a usage to reverse.
type RefundRequest struct {
	AccountID          uuid.UUID
	UsageTransactionID uuid.UUID
	Credits            models.Credits
	Reason             string
}

// RefundScheduler retries a refund that could not be written inline.
type RefundScheduler interface {
	ScheduleRefund(ctx context.Context, req RefundRequest) error
}
