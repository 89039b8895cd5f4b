// Package auth guards the HTTP transport with basic or API key credentials.
package auth

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sha1n/policy-search-server/internal/config"
)

const (
	// APIKeyHeader carries an API key
	APIKeyHeader = "X-API-Key"

	bearerPrefix = "Bearer "
	realm        = `Basic realm="policy-search"`
)

// publicPaths bypass authentication
var publicPaths = map[string]bool{
	"/health": true,
}

// isPublicPath checks if the request path should bypass authentication
func isPublicPath(path string) bool {
	return publicPaths[path]
}

// NewMiddleware creates a new authentication middleware based on settings
func NewMiddleware(settings config.AuthSettings) (func(http.Handler) http.Handler, error) {
	switch settings.Type {
	case config.AuthTypeNone, "":
		return func(next http.Handler) http.Handler {
			return next
		}, nil
	case config.AuthTypeBasic:
		if settings.Basic.Username == "" || settings.Basic.Password == "" {
			return nil, fmt.Errorf("basic auth requires non-empty username and password")
		}
		return guard(basicCredentials(settings.Basic), realm), nil
	case config.AuthTypeAPIKey:
		if len(settings.APIKeys) == 0 {
			return nil, fmt.Errorf("apikey auth requires at least one API key")
		}
		return guard(apiKeyCredentials(settings.APIKeys), ""), nil
	default:
		return nil, fmt.Errorf("unknown auth type: %s", settings.Type)
	}
}

// authenticator reports whether a request carries valid credentials. The
// string names the rejection reason when it does not.
type authenticator func(r *http.Request) (bool, string)

// guard rejects unauthenticated requests to every non-public path
func guard(authenticate authenticator, challenge string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			if ok, reason := authenticate(r); !ok {
				slog.Warn("Rejected unauthenticated request", "path", r.URL.Path, "remote", r.RemoteAddr, "reason", reason)
				if challenge != "" {
					w.Header().Set("WWW-Authenticate", challenge)
				}
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func basicCredentials(settings config.BasicAuthSettings) authenticator {
	return func(r *http.Request) (bool, string) {
		user, pass, ok := r.BasicAuth()
		if !ok {
			return false, "missing basic credentials"
		}
		userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(settings.Username)) == 1
		passMatch := subtle.ConstantTimeCompare([]byte(pass), []byte(settings.Password)) == 1
		if !userMatch || !passMatch {
			return false, "invalid basic credentials"
		}
		return true, ""
	}
}

func apiKeyCredentials(apiKeys []string) authenticator {
	return func(r *http.Request) (bool, string) {
		key := requestAPIKey(r)
		if key == "" {
			return false, "missing API key"
		}
		for _, validKey := range apiKeys {
			if subtle.ConstantTimeCompare([]byte(key), []byte(validKey)) == 1 {
				return true, ""
			}
		}
		return false, "invalid API key"
	}
}

// requestAPIKey reads the API key header, falling back to a bearer token
func requestAPIKey(r *http.Request) string {
	if key := r.Header.Get(APIKeyHeader); key != "" {
		return key
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(h, bearerPrefix))
	}
	return ""
}
