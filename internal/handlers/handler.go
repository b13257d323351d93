package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/Bukachka23/image-backend/internal/models"
	"github.com/Bukachka23/image-backend/internal/services"
)

// DefaultMaxUploadBytes caps the reference image when MaxUploadBytes is unset.
const DefaultMaxUploadBytes = 10 << 20

const (
	maxJSONBodyBytes    = 64 << 10
	maxWebhookBodyBytes = 1 << 20
)

// LedgerService is the subset of services.Ledger the HTTP surface needs.
type LedgerService interface {
	QueryBalance(ctx context.Context, email models.Email) (*services.BalanceResponse, error)
	InitiatePurchase(ctx context.Context, req services.PurchaseRequest) (*services.PurchaseResponse, error)
	SpendAndGenerate(ctx context.Context, req services.GenerateRequest) (*services.GenerateResponse, error)
	SubmitFeedback(ctx context.Context, req services.FeedbackRequest) error
	ListTransactions(ctx context.Context, email models.Email, limit int) (*models.Account, []*models.CreditTransaction, error)
}

// EventVerifier checks webhook signatures.
type EventVerifier interface {
	VerifyAndDecodeEvent(payload []byte, signature string) (*services.PaymentEvent, error)
}

// PaymentSubmitter hands a verified payment to the ledger, either inline or
// through the job queue.
type PaymentSubmitter interface {
	SubmitPayment(ctx context.Context, req services.CompletePaymentRequest) error
}

// BodyValidator validates JSON bodies against a named schema.
type BodyValidator interface {
	Validate(name string, body []byte) error
}

// Handler serves the /api endpoints.
type Handler struct {
	Ledger         LedgerService
	Events         EventVerifier
	Payments       PaymentSubmitter
	Validator      BodyValidator
	FrontendURL    string
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// --- GET /api/health ---

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "AI Photo Generation"})
}

// --- GET /api/credits/{email} ---

func (h *Handler) GetCredits(w http.ResponseWriter, r *http.Request) {
	email, err := models.ParseEmail(r.PathValue("email"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	resp, err := h.Ledger.QueryBalance(r.Context(), email)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- GET /api/packages ---

type packageView struct {
	Key      string         `json:"key"`
	Name     string         `json:"name"`
	Credits  models.Credits `json:"credits"`
	Price    string         `json:"price"`
	Currency string         `json:"currency"`
}

func (h *Handler) Packages(w http.ResponseWriter, _ *http.Request) {
	catalog := models.CreditPackages()
	views := make([]packageView, 0, len(catalog))
	for _, p := range catalog {
		views = append(views, packageView{
			Key:      p.Key,
			Name:     p.Name,
			Credits:  p.Credits,
			Price:    p.Price.Amount().StringFixed(2),
			Currency: p.Price.Currency(),
		})
	}
	writeJSON(w, http.StatusOK, map[string][]packageView{"packages": views})
}

// --- POST /api/checkout ---

type checkoutRequest struct {
	Email   string `json:"email"`
	Package string `json:"package"`
}

type checkoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
	SessionID   string `json:"session_id"`
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if !h.decodeValidated(w, r, services.SchemaCheckout, &req) {
		return
	}
	email, err := models.ParseEmail(req.Email)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp, err := h.Ledger.InitiatePurchase(r.Context(), services.PurchaseRequest{
		Email:      email,
		PackageKey: req.Package,
		SuccessURL: h.FrontendURL + "?payment=success&session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  h.FrontendURL + "?payment=cancelled",
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, checkoutResponse{CheckoutURL: resp.CheckoutURL, SessionID: resp.SessionID})
}

// --- POST /api/webhooks/stripe ---

// StripeWebhook acknowledges every verified event. Only completed checkouts
// with full metadata are submitted; a submission failure answers 500 so the
// processor retries.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		http.Error(w, `{"error":"failed to read body"}`, http.StatusBadRequest)
		return
	}

	ev, err := h.Events.VerifyAndDecodeEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.Logger.Warn("webhook rejected", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid webhook signature"})
		return
	}

	req, ok, err := services.CompletePaymentRequestFromEvent(ev)
	switch {
	case !ok:
		h.Logger.Debug("webhook ignored", "type", ev.Type)
	case err != nil:
		h.Logger.Warn("checkout event with incomplete metadata", "session_id", ev.SessionID, "error", err)
	default:
		if err := h.Payments.SubmitPayment(r.Context(), req); err != nil {
			h.Logger.Error("submit payment", "session_id", req.PaymentReference, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to record payment"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// --- POST /api/generate ---

type generateResponse struct {
	Images           []string       `json:"images"`
	CreditsRemaining models.Credits `json:"credits_remaining"`
}

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	limit := h.MaxUploadBytes
	if limit <= 0 {
		limit = DefaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}

	prompt := strings.TrimSpace(r.FormValue("prompt"))
	if prompt == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "prompt is required"})
		return
	}
	email, err := models.ParseEmail(r.FormValue("user_email"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "image is required"})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read image"})
		return
	}
	mimeType := imageType(header.Header.Get("Content-Type"), data)
	if mimeType == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid file type. Please upload an image."})
		return
	}

	resp, err := h.Ledger.SpendAndGenerate(r.Context(), services.GenerateRequest{
		Email:  email,
		Prompt: prompt,
		Mode:   services.ParseTransformationMode(r.FormValue("transformation_mode")),
		Image:  services.ReferenceImage{Data: data, MIMEType: mimeType},
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{Images: resp.Images, CreditsRemaining: resp.CreditsRemaining})
}

// imageType accepts the upload when either the declared or the sniffed type
// is an image, preferring the sniffed one.
func imageType(declared string, data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sniffed := http.DetectContentType(data)
	if strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	if strings.HasPrefix(declared, "image/") {
		return declared
	}
	return ""
}

// --- POST /api/feedback ---

type feedbackRequest struct {
	Message string  `json:"message"`
	Email   *string `json:"email"`
}

func (h *Handler) Feedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if !h.decodeValidated(w, r, services.SchemaFeedback, &req) {
		return
	}
	fr := services.FeedbackRequest{Message: req.Message}
	if req.Email != nil && strings.TrimSpace(*req.Email) != "" {
		email, err := models.ParseEmail(*req.Email)
		if err != nil {
			h.writeError(w, err)
			return
		}
		fr.Email = email
	}
	if err := h.Ledger.SubmitFeedback(r.Context(), fr); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// --- GET /api/admin/credits/{email}/transactions ---

type transactionsResponse struct {
	Email          string                   `json:"email"`
	Credits        models.Credits           `json:"credits"`
	TotalPurchased string                   `json:"total_purchased"`
	Transactions   []models.TransactionView `json:"transactions"`
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	email, err := models.ParseEmail(r.PathValue("email"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
	}

	acc, recs, err := h.Ledger.ListTransactions(r.Context(), email, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	views := make([]models.TransactionView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, rec.View())
	}
	writeJSON(w, http.StatusOK, transactionsResponse{
		Email:          acc.Email().String(),
		Credits:        acc.Balance(),
		TotalPurchased: acc.TotalPurchased().String(),
		Transactions:   views,
	})
}

// --- helpers ---

func (h *Handler) decodeValidated(w http.ResponseWriter, r *http.Request, schema string, dst any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read body"})
		return false
	}
	if err := h.Validator.Validate(schema, body); err != nil {
		if errors.Is(err, services.ErrValidation) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return false
		}
		h.Logger.Error("validate body", "schema", schema, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return false
	}
	return true
}

// writeError maps the error taxonomy onto HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status, msg := http.StatusInternalServerError, "An unexpected error occurred"
	switch {
	case errors.Is(err, models.ErrInsufficientCredits):
		status, msg = http.StatusPaymentRequired, err.Error()
	case errors.Is(err, models.ErrUserNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, models.ErrInvalidArgument), errors.Is(err, models.ErrInvalidCreditPackage):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, models.ErrImageGeneration):
		msg = "Image generation failed: " + err.Error()
	case errors.Is(err, models.ErrPaymentProcessing):
		msg = "Payment processing failed: " + err.Error()
	}
	if status >= http.StatusInternalServerError {
		h.Logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
