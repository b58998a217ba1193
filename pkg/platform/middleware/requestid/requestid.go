// Package requestid assigns each request a correlation ID, honoring one the
// caller already set.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"presence/pkg/requestcontext"
)

const Header = "X-Request-Id"

// Middleware ensures a request ID is present in the context and echoed on the
// response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(Header, id)
		ctx := requestcontext.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
