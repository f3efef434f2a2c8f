package identity

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "ruminster/pkg/domain-errors"
)

var tokenService = NewTokenService(
	"test-signing-key",
	"test-issuer",
	"test-audience",
)
var userID = uuid.New()
var roles = []string{"user"}
var expiresIn = time.Hour

func Test_GenerateAccessToken(t *testing.T) {
	token, err := tokenService.GenerateAccessToken(userID, roles, expiresIn)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := tokenService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, roles, claims.Roles)
	assert.NotEmpty(t, claims.ID, "tokens carry a jti for revocation")
	assert.WithinDuration(t, time.Now().Add(expiresIn), claims.ExpiresAt.Time, time.Minute)
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := tokenService.ValidateToken("invalid-token-string")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	token, err := tokenService.GenerateAccessToken(userID, roles, -time.Hour)
	require.NoError(t, err)

	_, err = tokenService.ValidateToken(token)
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "token has expired"))
}

func Test_ValidateToken_WrongKey(t *testing.T) {
	other := NewTokenService("different-key", "test-issuer", "test-audience")
	token, err := other.GenerateAccessToken(userID, roles, expiresIn)
	require.NoError(t, err)

	_, err = tokenService.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_Adapter_MapsClaims(t *testing.T) {
	token, err := tokenService.GenerateAccessToken(userID, roles, expiresIn)
	require.NoError(t, err)

	adapter := NewTokenServiceAdapter(tokenService)
	claims, err := adapter.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, roles, claims.Roles)
	assert.NotEmpty(t, claims.JTI)
}
