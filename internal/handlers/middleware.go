package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/cedarstore/api/internal/platform/httpx"
	"github.com/cedarstore/api/internal/platform/requestctx"
)

const buyerEmailHeader = "X-Buyer-Email"

// BuyerIdentity resolves the caller identity set by the upstream gateway and
// stores it on the request context. Requests without the header pass through
// anonymously; RequireBuyer gates the endpoints that need an identity.
func BuyerIdentity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email := strings.ToLower(strings.TrimSpace(r.Header.Get(buyerEmailHeader)))
			if email != "" {
				ctx := requestctx.WithPrincipal(r.Context(), requestctx.Principal{BuyerEmail: email})
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireBuyer rejects requests that carry no resolved buyer identity.
func RequireBuyer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := requestctx.PrincipalFromContext(r.Context())
			if !ok || strings.TrimSpace(principal.BuyerEmail) == "" {
				httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "buyer identity required", http.StatusUnauthorized))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdminToken guards admin routes with the shared operator token.
// An empty configured token disables the admin surface entirely.
func RequireAdminToken(token string) func(http.Handler) http.Handler {
	token = strings.TrimSpace(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				httpx.WriteError(r.Context(), w, httpx.NewError("admin_disabled", "admin API is not configured", http.StatusForbidden))
				return
			}
			presented := bearerToken(r)
			if presented == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				httpx.WriteError(r.Context(), w, httpx.NewError("forbidden", "invalid admin token", http.StatusForbidden))
				return
			}
			ctx := requestctx.WithPrincipal(r.Context(), requestctx.Principal{Admin: true})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
