package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tenderplan/internal/domain"
	"tenderplan/internal/domain/models"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// SupabaseJWTVerifier implements JWTVerifier using JWKS from Supabase.
type SupabaseJWTVerifier struct {
	keyfunc jwt.Keyfunc
	logger  *slog.Logger
}

// NewJWTVerifier creates a verifier that fetches public keys from Supabase's
// JWKS endpoint. keyfunc caches the keys and refreshes them per HTTP cache headers.
func NewJWTVerifier(ctx context.Context, jwksURL string, logger *slog.Logger) (JWTVerifier, error) {
	if jwksURL == "" {
		return nil, errors.New("JWKS URL cannot be empty")
	}

	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS client: %w", err)
	}

	logger.Info("JWT verifier initialized", "jwks_url", jwksURL)
	return NewKeyfuncVerifier(jwks.Keyfunc, logger), nil
}

// NewKeyfuncVerifier wraps an existing key lookup.
func NewKeyfuncVerifier(kf jwt.Keyfunc, logger *slog.Logger) *SupabaseJWTVerifier {
	return &SupabaseJWTVerifier{keyfunc: kf, logger: logger}
}

// clockSkew tolerates small clock differences with the auth server.
const clockSkew = 30 * time.Second

// VerifyToken accepts RS256/ES256 tokens of signed-in users. Every failure is
// reported as domain.ErrUnauthorized; the cause is only logged.
func (v *SupabaseJWTVerifier) VerifyToken(tokenString string) (*models.SupabaseClaims, error) {
	claims := &models.SupabaseClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, v.keyfunc,
		jwt.WithValidMethods([]string{"RS256", "ES256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)
	if err != nil {
		v.logger.Debug("token rejected", "error", err)
		return nil, domain.ErrUnauthorized
	}
	if err := checkClaims(claims); err != nil {
		v.logger.Warn("token rejected", "reason", err, "user_id", claims.Subject)
		return nil, domain.ErrUnauthorized
	}
	return claims, nil
}

// checkClaims rejects anonymous sessions; outlines belong to real accounts.
func checkClaims(c *models.SupabaseClaims) error {
	switch {
	case c.Subject == "":
		return errors.New("missing subject")
	case c.IsAnonymous || c.Role != "authenticated":
		return fmt.Errorf("role %q is not allowed", c.Role)
	}
	return nil
}

// Close is a no-op; keyfunc v3 manages its own refresh goroutine through ctx.
func (v *SupabaseJWTVerifier) Close() error {
	v.logger.Info("JWT verifier closed")
	return nil
}
