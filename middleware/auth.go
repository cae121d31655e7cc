package middleware

import (
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/soratv/vod-api/errors"
)

// IsAuthorized gates an endpoint behind the shared API token. User identity
// is carried separately in the X-User-Id header, set by the auth gateway in
// front of this service.
func IsAuthorized(apiToken string, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if apiToken == "" {
			// Token auth disabled (local development).
			next(w, r, ps)
			return
		}
		authHeader := r.Header.Get("Authorization")

		if authHeader == "" {
			errors.WriteHTTPUnauthorized(w, "No authorization header", nil)
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")

		if token != apiToken {
			errors.WriteHTTPUnauthorized(w, "Invalid Token", nil)
			return
		}

		next(w, r, ps)
	}
}
