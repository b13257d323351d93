package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Bukachka23/image-backend/internal/auth"
)

type contextKey string

const ctxOperatorKey contextKey = "operator"

// TokenValidator is the interface used by operator auth middleware.
type TokenValidator interface {
	ValidateToken(token string) (operator string, role string, err error)
}

// OperatorAuth requires a Bearer token carrying the operator role. On
// success the operator name is set into request context.
func OperatorAuth(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractBearer(r)
			if raw == "" {
				http.Error(w, `{"error":"missing or malformed Authorization header"}`, http.StatusUnauthorized)
				return
			}

			operator, role, err := tokens.ValidateToken(raw)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}
			if role != auth.RoleOperator {
				http.Error(w, `{"error":"operator role required"}`, http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithOperator(r.Context(), operator)))
		})
	}
}

// OperatorFromCtx returns the authenticated operator or "".
func OperatorFromCtx(ctx context.Context) string {
	op, _ := ctx.Value(ctxOperatorKey).(string)
	return op
}

// WithOperator returns a context carrying the given operator.
func WithOperator(ctx context.Context, operator string) context.Context {
	return context.WithValue(ctx, ctxOperatorKey, operator)
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
