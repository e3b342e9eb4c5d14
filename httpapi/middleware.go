package httpapi

import (
	"context"
	"net/http"
	"strings"

	"commissionflow/identity"
)

type contextKey string

const operatorKey contextKey = "operator"

// requireOperator rejects requests without a valid Bearer token and stashes
// the verified operator on the request context.
func (h *Handler) requireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		op, err := h.gate.VerifyToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), operatorKey, op)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func operatorFrom(ctx context.Context) identity.Operator {
	op, _ := ctx.Value(operatorKey).(identity.Operator)
	return op
}
