// Package auth authenticates API callers from bearer tokens and places the
// caller's ledger address on the request context.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	dErrors "sto-gateway/pkg/domain-errors"
	"sto-gateway/pkg/platform/httputil"
	"sto-gateway/pkg/requestcontext"
)

// Claims carries the caller identity inside the signed token. Subject is the
// caller's ledger address.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenRevocationChecker reports whether a token ID has been revoked.
type TokenRevocationChecker interface {
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// Validator validates HMAC-signed bearer tokens.
type Validator struct {
	secret []byte
	issuer string
}

func NewValidator(secret []byte, issuer string) (*Validator, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("signing secret is required")
	}
	return &Validator{secret: secret, issuer: issuer}, nil
}

// Issue signs a token for an address. Used by tests and operator tooling.
func (v *Validator) Issue(address string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   address,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// ValidateToken parses and verifies a bearer token string.
func (v *Validator) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	return claims, nil
}

// RequireAuth rejects requests without a valid bearer token and stores the
// authenticated caller address on the context. The revocation checker is
// optional.
func RequireAuth(validator *Validator, revocation TokenRevocationChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const bearerPrefix = "Bearer "
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, bearerPrefix) {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
				return
			}

			claims, err := validator.ValidateToken(strings.TrimPrefix(header, bearerPrefix))
			if err != nil {
				logger.WarnContext(r.Context(), "token validation failed", "error", err)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
				return
			}

			if revocation != nil && claims.ID != "" {
				revoked, err := revocation.IsTokenRevoked(r.Context(), claims.ID)
				if err != nil {
					logger.ErrorContext(r.Context(), "revocation check failed", "error", err)
					httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "revocation check failed"))
					return
				}
				if revoked {
					httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "token revoked"))
					return
				}
			}

			ctx := requestcontext.WithCallerAddress(r.Context(), claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
