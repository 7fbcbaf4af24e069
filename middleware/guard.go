package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/goRelay/jwt"
	"github.com/MrEthical07/goRelay/permission"
)

type tokenContextKey struct{}

// TokenFromContext returns the token stored by [Guard].
func TokenFromContext(ctx context.Context) (*jwt.Token, bool) {
	tok, ok := ctx.Value(tokenContextKey{}).(*jwt.Token)
	return tok, ok
}

// Guard rejects requests without a valid "Authorization: Bearer" credential.
func Guard(verifier *jwt.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			raw, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			tok, err := verifier.Verify(raw)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), tokenContextKey{}, tok)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission must run after [Guard]. It answers 403 when the token
// does not satisfy set under m.
func RequirePermission(m permission.Matcher, set permission.Set) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := TokenFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if !m.Matches(set, tok.UserID, tok.GroupIDs) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
