package identity

import (
	"ruminster/internal/platform/middleware"
)

// TokenServiceAdapter bridges the TokenService to the auth middleware's
// validator interface.
type TokenServiceAdapter struct {
	service *TokenService
}

// NewTokenServiceAdapter wraps a TokenService for the middleware.
func NewTokenServiceAdapter(service *TokenService) *TokenServiceAdapter {
	return &TokenServiceAdapter{service: service}
}

// ValidateToken implements middleware.JWTValidator.
func (a *TokenServiceAdapter) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.JWTClaims{
		UserID: claims.UserID,
		Roles:  claims.Roles,
		JTI:    claims.ID,
	}, nil
}
