package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Bukachka23/image-backend/internal/models"
)

const MaxFeedbackLength = 5000

type FeedbackRequest struct {
	Message string
	// Email is optional; the zero value means anonymous.
	Email models.Email
}

// SubmitFeedback records user feedback in the structured log.
func (l *Ledger) SubmitFeedback(_ context.Context, req FeedbackRequest) error {
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return fmt.Errorf("%w: feedback message is required", models.ErrInvalidArgument)
	}
	if utf8.RuneCountInString(msg) > MaxFeedbackLength {
		return fmt.Errorf("%w: feedback exceeds %d characters", models.ErrInvalidArgument, MaxFeedbackLength)
	}
	from := "anonymous"
	if !req.Email.IsZero() {
		from = req.Email.String()
	}
	l.logger().Info("feedback received", "from", from, "message", msg)
	return nil
}
