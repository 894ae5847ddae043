package handlers

import (
	"net/http"
	"strings"

	"github.com/easyorder/quickorder/internal/platform/observability"
	"github.com/easyorder/quickorder/internal/platform/requestctx"
)

// StoreHeader carries the store code the request is scoped to.
const StoreHeader = "X-Store-Code"

// StoreScopeMiddleware resolves the store scope from StoreHeader, falling back to defaultStore.
func StoreScopeMiddleware(defaultStore string) func(http.Handler) http.Handler {
	defaultStore = strings.TrimSpace(defaultStore)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			store := normalizeStoreCode(r.Header.Get(StoreHeader))
			if store == "" {
				store = defaultStore
			}
			next.ServeHTTP(w, r.WithContext(requestctx.WithStore(r.Context(), store)))
		})
	}
}

func normalizeStoreCode(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(observability.SanitizeStore(raw)))
	for _, r := range raw {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' || r == '-') {
			return ""
		}
	}
	return raw
}
