package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	goSecure "github.com/MrEthical07/goSecure"
)

// Authenticator is satisfied by *goSecure.Engine.
type Authenticator interface {
	Authenticate(ctx context.Context, bearer string) (*goSecure.AuthResult, error)
}

type authResultContextKey struct{}
type bearerContextKey struct{}

// AuthResultFromContext returns the result stored by Guard.
func AuthResultFromContext(ctx context.Context) (*goSecure.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*goSecure.AuthResult)
	return res, ok
}

// BearerFromContext returns the raw bearer accepted by Guard. Session
// operations use it to tell the caller's own session apart.
func BearerFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(bearerContextKey{}).(string)
	return token, ok
}

// Guard rejects requests without a live bearer. Storage failures answer 503
// so clients do not discard a token that is still valid.
func Guard(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				writeError(w, http.StatusUnauthorized, goSecure.ErrUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeError(w, http.StatusUnauthorized, goSecure.ErrMissingToken)
				return
			}

			res, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				if goSecure.KindOf(err) == goSecure.KindUnavailable {
					writeError(w, http.StatusServiceUnavailable, goSecure.ErrUnavailable)
					return
				}
				writeError(w, http.StatusUnauthorized, goSecure.ErrUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			ctx = context.WithValue(ctx, bearerContextKey{}, token)
			next.ServeHTTP(w, r.WithContext(ctx))
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

func writeError(w http.ResponseWriter, status int, err *goSecure.Error) {
	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="goSecure"`)
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": err.Message,
		"kind":  err.Kind.String(),
	})
}
