package jwt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_RoundTrip(t *testing.T) {
	m := NewManager("secret", 60)
	token, err := m.GenerateToken("0xabc")
	require.NoError(t, err)

	claims, err := m.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", claims.GetAddress())
}

func TestManager_Expired(t *testing.T) {
	m := NewManager("secret", -60)
	token, err := m.GenerateToken("0xabc")
	require.NoError(t, err)

	_, err = m.VerifyToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestManager_WrongSecret(t *testing.T) {
	token, err := NewManager("a", 60).GenerateToken("0xabc")
	require.NoError(t, err)

	_, err = NewManager("b", 60).VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewManager("b", 60).VerifyToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
