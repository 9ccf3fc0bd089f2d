package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-chi/render"

	"github.com/buildbeaver/autopin/common/gerror"
	"github.com/buildbeaver/autopin/common/logger"
	"github.com/buildbeaver/autopin/server/api/rest/documents"
)

// SharedSecretHeader carries the shared secret on webhook requests.
const SharedSecretHeader = "X-Autopin-Token"

// SharedSecret is the secret webhook callers must present. Empty disables authentication.
type SharedSecret string

// MakeSharedSecretAuthenticator makes a middleware that rejects requests that don't carry the shared secret
// in the X-Autopin-Token header (or as a bearer token). If no secret is configured this is a no-op.
func MakeSharedSecretAuthenticator(log logger.Log, secret SharedSecret) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			log.Warnf("No shared secret configured; webhook requests will not be authenticated")
			return next
		}
		fn := func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(SharedSecretHeader)
			if token == "" {
				token = bearerToken(r)
			}
			if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				log.Warnf("Rejected request from %s with missing or invalid shared secret", r.RemoteAddr)
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, documents.NewErrorDocument(gerror.NewErrUnauthorized("Invalid shared secret")))
				return
			}
			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return ""
}
