// Package admin is the operator surface: key lifecycle, schema setup,
// and the audit trail. Every route requires the shared admin secret.
package admin

import (
	"crypto/subtle"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/albumforge/albumforge/internal/api"
	"github.com/albumforge/albumforge/internal/config"
)

// RequireSecret authenticates requests via the X-Admin-Secret header.
// When a bcrypt hash is configured the plaintext secret never has to
// live in the environment; otherwise the comparison is constant-time.
func RequireSecret(cfg config.AdminConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get("X-Admin-Secret")
			if presented == "" || !secretMatches(cfg, presented) {
				api.HandleError(w, api.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func secretMatches(cfg config.AdminConfig, presented string) bool {
	if cfg.SecretHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(cfg.SecretHash), []byte(presented)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(cfg.Secret), []byte(presented)) == 1
}
