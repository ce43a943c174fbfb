package middleware

import (
	"context"
	"net/http"
)

// identityBinder attaches the cart identity of the in-flight request to its context.
type identityBinder interface {
	Bind(ctx context.Context, w http.ResponseWriter, r *http.Request) context.Context
}

// CartIdentity binds the cart cookie of each request so the engine can read
// and rewrite it.
func CartIdentity(binder identityBinder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if binder == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := binder.Bind(r.Context(), w, r)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
