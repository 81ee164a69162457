package middleware

import (
	"net/http"
	"strings"

	deepblue "github.com/Grara/deepblue-backend"
)

// Authenticator is the engine surface the filter depends on.
type Authenticator interface {
	Authenticate(token string) (deepblue.Principal, bool)
}

// Authenticate attaches the Principal of a valid access token to the
// request context. Missing, malformed, expired, forged and refresh-use
// tokens all leave the request anonymous; the filter never writes a
// response itself.
func Authenticate(engine Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				next.ServeHTTP(w, r)
				return
			}

			token, _ := BearerToken(r.Header.Get("Authorization"))
			p, ok := engine.Authenticate(token)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(deepblue.WithPrincipal(r.Context(), p)))
		})
	}
}

// RequirePrincipal responds 401 unless Authenticate attached a Principal.
func RequirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := deepblue.PrincipalFromContext(r.Context()); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// BearerToken extracts the token from an Authorization header value. The
// scheme must be exactly "Bearer " with one space.
func BearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
