package middleware

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"github.com/utafrali/shopcatalog/pkg/logger"
)

// SessionIDHeader names the browsing session a request belongs to.
const SessionIDHeader = "X-Session-ID"

var validSessionID = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,128}$`)

// Session resolves the browsing session: a well-formed X-Session-ID header
// wins, then the authenticated user, then a fresh UUID. The chosen ID is
// stored in the context and echoed on the response so clients can reuse
// it. Mount after OptionalAuth.
func Session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(SessionIDHeader)
		if !validSessionID.MatchString(id) {
			id = ""
		}
		if id == "" {
			if c := ClaimsFromContext(r.Context()); c != nil {
				id = "user:" + c.UserID
			}
		}
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(SessionIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.WithSessionID(r.Context(), id)))
	})
}
