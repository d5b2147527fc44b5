// Package auth guards the trigger surface with shared x-api-key secrets.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// HeaderAPIKey carries the caller's secret.
const HeaderAPIKey = "X-API-Key"

var (
	// ErrMisconfigured means neither secret is configured.
	ErrMisconfigured = errors.New("server misconfigured: no authentication keys available")
	// ErrMissingKey means the request had no x-api-key header.
	ErrMissingKey = errors.New("missing x-api-key header")
	// ErrInvalidKey means the key matched no configured secret.
	ErrInvalidKey = errors.New("invalid x-api-key")
)

// Gate accepts either the legacy scraper key or the service role key.
type Gate struct {
	keys   [][]byte
	logger *zap.Logger
}

// NewGate builds a Gate. Empty secrets are ignored.
func NewGate(scraperKey, serviceRoleKey string, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gate{logger: logger}
	for _, k := range []string{scraperKey, serviceRoleKey} {
		if k = strings.TrimSpace(k); k != "" {
			g.keys = append(g.keys, []byte(k))
		}
	}
	return g
}

// Check validates a presented key.
func (g *Gate) Check(presented string) error {
	if presented == "" {
		return ErrMissingKey
	}
	if len(g.keys) == 0 {
		return ErrMisconfigured
	}
	matched := 0
	for _, k := range g.keys {
		matched |= subtle.ConstantTimeCompare([]byte(presented), k)
	}
	if matched != 1 {
		return ErrInvalidKey
	}
	return nil
}

// Middleware rejects requests that fail Check.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := g.Check(r.Header.Get(HeaderAPIKey))
		if err == nil {
			next.ServeHTTP(w, r)
			return
		}
		status := http.StatusUnauthorized
		if errors.Is(err, ErrMisconfigured) {
			status = http.StatusInternalServerError
			g.logger.Error("no api keys configured")
		} else {
			g.logger.Warn("rejected request", zap.String("path", r.URL.Path), zap.Error(err))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
	})
}
