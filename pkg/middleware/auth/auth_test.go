package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyglotlab/sosr/pkg/common/code"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := SignToken("user-1", "analysis.ipynb", time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "analysis.ipynb", claims.Notebook)
	assert.Equal(t, "sosr", claims.Issuer)
}

func TestParseExpiredToken(t *testing.T) {
	token, err := SignToken("user-1", "nb", -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, code.TokenExpired)
}

func TestParseGarbage(t *testing.T) {
	_, err := ParseToken("not.a.token")
	assert.Error(t, err)
}
