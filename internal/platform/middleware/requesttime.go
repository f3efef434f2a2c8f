package middleware

import (
	"net/http"
	"time"

	"ruminster/pkg/requestcontext"
)

// RequestTime captures the current time at the start of the request so every
// operation within it shares one "now". Entity timestamps and their log rows
// stay consistent because of this.
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
