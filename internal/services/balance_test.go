package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Bukachka23/image-backend/internal/models"
)

func TestQueryBalance_ProvisionsUnknownEmail(t *testing.T) {
	store := newMemStore()
	l := newTestLedger(store, nil, nil)
	ctx := context.Background()

	resp, err := l.QueryBalance(ctx, email("First@Example.com"))
	if err != nil {
		t.Fatalf("QueryBalance: %v", err)
	}
	if resp.Email != "first@example.com" || resp.Credits != 0 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if exists, _ := store.ExistsByEmail(ctx, email("first@example.com")); !exists {
		t.Fatal("account should be created")
	}

	again, err := l.QueryBalance(ctx, email("first@example.com"))
	if err != nil || again.Credits != 0 {
		t.Fatalf("second query: %+v %v", again, err)
	}
	if len(store.accounts) != 1 {
		t.Fatalf("accounts = %d, want 1", len(store.accounts))
	}
}

func TestQueryBalance_ExistingAccount(t *testing.T) {
	store := newMemStore()
	store.seed(t, "rich@example.com", 150)
	l := newTestLedger(store, nil, nil)

	resp, err := l.QueryBalance(context.Background(), email("rich@example.com"))
	if err != nil || resp.Credits != 150 {
		t.Fatalf("unexpected: %+v %v", resp, err)
	}
}

func TestListTransactions(t *testing.T) {
	store := newMemStore()
	store.seed(t, "hist@example.com", 10)
	l := newTestLedger(store, &fakeGenerator{images: []string{"img"}}, nil)
	ctx := context.Background()

	if _, err := l.SpendAndGenerate(ctx, GenerateRequest{Email: email("hist@example.com"), Prompt: "x"}); err != nil {
		t.Fatal(err)
	}
	acc, recs, err := l.ListTransactions(ctx, email("hist@example.com"), 0)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if acc.Balance() != 7 || len(recs) != 2 || recs[0].Kind() != models.KindUsage {
		t.Fatalf("unexpected history: balance=%d len=%d", acc.Balance(), len(recs))
	}

	if _, _, err := l.ListTransactions(ctx, email("ghost@example.com"), 10); !errors.Is(err, models.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestSubmitFeedback(t *testing.T) {
	l := newTestLedger(newMemStore(), nil, nil)
	ctx := context.Background()

	if err := l.SubmitFeedback(ctx, FeedbackRequest{Message: "Love it"}); err != nil {
		t.Fatalf("anonymous feedback: %v", err)
	}
	if err := l.SubmitFeedback(ctx, FeedbackRequest{Message: "Nice", Email: email("fan@example.com")}); err != nil {
		t.Fatalf("feedback with email: %v", err)
	}
	if err := l.SubmitFeedback(ctx, FeedbackRequest{Message: "   "}); !errors.Is(err, models.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty message, got %v", err)
	}
	if err := l.SubmitFeedback(ctx, FeedbackRequest{Message: strings.Repeat("a", MaxFeedbackLength+1)}); !errors.Is(err, models.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for long message, got %v", err)
	}
}
