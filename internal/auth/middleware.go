package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/Shivanand-hulikatti/eventhub/internal/model"
)

type ctxKey int

const identityKey ctxKey = 1

// IdentityFromContext returns the identity attached by Middleware.
func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(identityKey).(model.Identity)
	return id, ok
}

func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// Middleware attaches the bearer token's identity to the request context.
// Requests without a valid token are passed to onFail.
func Middleware(j JWT, onFail func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := bearerToken(r.Header.Get("Authorization"))
			if tok == "" {
				onFail(w, r, ErrUnauthenticated)
				return
			}
			id, err := j.Verify(tok)
			if err != nil {
				onFail(w, r, ErrUnauthenticated)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func bearerToken(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	parts := strings.SplitN(v, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
