// Package payment adapts Stripe Checkout to services.PaymentGateway.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/Bukachka23/image-backend/internal/models"
	"github.com/Bukachka23/image-backend/internal/services"
)

// ErrInvalidSignature is returned for webhook payloads that fail verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

type customerCreator interface {
	New(params *stripe.CustomerParams) (*stripe.Customer, error)
}

type sessionCreator interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type Stripe struct {
	customers     customerCreator
	sessions      sessionCreator
	webhookSecret string
}

var _ services.PaymentGateway = (*Stripe)(nil)

func NewStripe(secretKey, webhookSecret string) (*Stripe, error) {
	if secretKey == "" {
		return nil, errors.New("stripe secret key is required")
	}
	sc := client.New(secretKey, nil)
	return &Stripe{
		customers:     sc.Customers,
		sessions:      sc.CheckoutSessions,
		webhookSecret: webhookSecret,
	}, nil
}

func (s *Stripe) CreateCustomer(ctx context.Context, email models.Email) (string, error) {
	params := &stripe.CustomerParams{Email: stripe.String(email.String())}
	params.Context = ctx
	params.AddMetadata("source", "image-backend")

	cust, err := s.customers.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: create customer: %v", models.ErrPaymentProcessing, err)
	}
	return cust.ID, nil
}

func (s *Stripe) CreateCheckoutSession(ctx context.Context, req services.CheckoutRequest) (*services.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(strings.ToLower(req.Price.Currency())),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(req.Name),
					Description: stripe.String(req.Description),
				},
				UnitAmount: stripe.Int64(req.Price.Cents()),
			},
			Quantity: stripe.Int64(1),
		}},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	sess, err := s.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: create checkout session: %v", models.ErrPaymentProcessing, err)
	}
	return &services.CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// sessionObject is the part of a checkout session carried in webhook events.
type sessionObject struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
}

func (s *Stripe) VerifyAndDecodeEvent(payload []byte, signature string) (*services.PaymentEvent, error) {
	if s.webhookSecret == "" {
		return nil, errors.New("webhook secret is not configured")
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &services.PaymentEvent{Type: string(ev.Type)}
	if !strings.HasPrefix(out.Type, "checkout.session.") || ev.Data == nil {
		return out, nil
	}
	var obj sessionObject
	if err := json.Unmarshal(ev.Data.Raw, &obj); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	out.SessionID = obj.ID
	out.Metadata = obj.Metadata
	return out, nil
}
