package services

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Bukachka23/image-backend/internal/ledger"
	"github.com/Bukachka23/image-backend/internal/models"
)

// Metadata keys attached to the checkout session and read back from the
// completion webhook.
const (
	MetadataEmail   = "user_email"
	MetadataPackage = "package"
	MetadataCredits = "credits"
)

type PurchaseRequest struct {
	Email      models.Email
	PackageKey string
	SuccessURL string
	CancelURL  string
}

type PurchaseResponse struct {
	CheckoutURL string `json:"checkout_url"`
	SessionID   string `json:"session_id"`
}

// InitiatePurchase opens a hosted checkout for a catalog package. It never
// changes the balance; credits arrive through CompletePayment.
func (l *Ledger) InitiatePurchase(ctx context.Context, req PurchaseRequest) (*PurchaseResponse, error) {
	pkg, err := models.LookupPackage(req.PackageKey)
	if err != nil {
		checkoutsTotal.WithLabelValues("bad_package").Inc()
		return nil, err
	}

	acc, err := l.findOrCreate(ctx, req.Email)
	if err != nil {
		checkoutsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	customerID := acc.PaymentCustomerID()
	if customerID == "" {
		customerID, err = l.linkCustomer(ctx, req.Email)
		if err != nil {
			checkoutsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
	}

	session, err := l.Payments.CreateCheckoutSession(ctx, CheckoutRequest{
		CustomerID:  customerID,
		Price:       pkg.Price,
		Name:        pkg.Name,
		Description: pkg.Description(),
		SuccessURL:  req.SuccessURL,
		CancelURL:   req.CancelURL,
		Metadata: map[string]string{
			MetadataEmail:   req.Email.String(),
			MetadataPackage: pkg.Key,
			MetadataCredits: strconv.FormatInt(pkg.Credits.Int64(), 10),
		},
	})
	if err != nil {
		checkoutsTotal.WithLabelValues("error").Inc()
		l.logger().Error("checkout session failed", "email", req.Email.String(), "package", pkg.Key, "error", err)
		return nil, fmt.Errorf("%w: %v", models.ErrPaymentProcessing, err)
	}

	checkoutsTotal.WithLabelValues("created").Inc()
	l.logger().Info("checkout session created", "email", req.Email.String(), "package", pkg.Key, "session_id", session.ID)
	return &PurchaseResponse{CheckoutURL: session.URL, SessionID: session.ID}, nil
}

// linkCustomer creates the processor customer and stores its id on the
// account. The processor call happens before the row lock is taken; if a
// concurrent request linked a customer first, that one is kept.
func (l *Ledger) linkCustomer(ctx context.Context, email models.Email) (string, error) {
	created, err := l.Payments.CreateCustomer(ctx, email)
	if err != nil {
		l.logger().Error("create customer failed", "email", email.String(), "error", err)
		return "", fmt.Errorf("%w: %v", models.ErrPaymentProcessing, err)
	}

	uow, err := ledger.BeginForEmail(ctx, l.Store, email)
	if err != nil {
		return "", storeError("lock account", err)
	}
	defer uow.Rollback(ctx)

	if existing := uow.Account().PaymentCustomerID(); existing != "" {
		l.logger().Warn("payment customer already linked", "email", email.String(), "kept", existing, "discarded", created)
		return existing, nil
	}
	uow.Account().SetPaymentCustomerID(created)
	if err := uow.Commit(ctx); err != nil {
		return "", storeError("link customer", err)
	}
	return created, nil
}
