package auth

import "tenderplan/internal/domain/models"

// JWTVerifier turns a bearer token into Supabase claims. The auth middleware
// depends on this alone.
type JWTVerifier interface {
	// VerifyToken returns domain.ErrUnauthorized for any token that is not a
	// valid, unexpired session of a signed-in user.
	VerifyToken(tokenString string) (*models.SupabaseClaims, error)

	Close() error
}
