package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/kbukum/changefeed/errors"
)

// AuthConfig configures bearer token authentication.
type AuthConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Secret  string `yaml:"secret" mapstructure:"secret"`
	Issuer  string `yaml:"issuer" mapstructure:"issuer"`
	// SkipPaths are exact paths that bypass authentication.
	SkipPaths []string `yaml:"skip_paths" mapstructure:"skip_paths"`
}

type claimsKey struct{}

// Auth validates HS256 bearer tokens signed with cfg.Secret. Valid claims
// are stored in the request context. It is a no-op when disabled.
func Auth(cfg AuthConfig) Middleware {
	parser := jwt.NewParser(authParserOptions(cfg)...)
	keyFunc := func(*jwt.Token) (any, error) { return []byte(cfg.Secret), nil }

	return func(next http.Handler) http.Handler {
		if !cfg.Enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, skip := range cfg.SkipPaths {
				if r.URL.Path == skip {
					next.ServeHTTP(w, r)
					return
				}
			}

			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				deny(w, apperrors.Unauthorized("Authorization header required."))
				return
			}

			claims := jwt.RegisteredClaims{}
			if _, err := parser.ParseWithClaims(raw, &claims, keyFunc); err != nil {
				deny(w, apperrors.InvalidToken())
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, &claims)))
		})
	}
}

func authParserOptions(cfg AuthConfig) []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return opts
}

// ClaimsFrom returns the validated token claims, if any.
func ClaimsFrom(ctx context.Context) (*jwt.RegisteredClaims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*jwt.RegisteredClaims)
	return c, ok
}

func deny(w http.ResponseWriter, err *apperrors.AppError) {
	body, _ := json.Marshal(err.ToResponse())
	w.Header().Set("WWW-Authenticate", `Bearer realm="changefeed"`)
	writeError(w, err.HTTPStatus, body)
}
