package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomCodeGenerator_Width(t *testing.T) {
	g := NewRandomCodeGenerator(6)
	for i := 0; i < 200; i++ {
		code, err := g.Generate()
		require.NoError(t, err)
		assert.Len(t, code, 6)
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9', code)
		}
	}
}

func TestHMACCodeHasher(t *testing.T) {
	h := NewHMACCodeHasher("pepper")

	hash, err := h.Hash("account:1", "123456")
	require.NoError(t, err)
	assert.NotContains(t, hash, "123456")

	assert.True(t, h.Matches("account:1", "123456", hash))
	assert.False(t, h.Matches("account:1", "123457", hash))
	assert.False(t, h.Matches("account:2", "123456", hash))
	assert.False(t, NewHMACCodeHasher("other").Matches("account:1", "123456", hash))
	assert.False(t, h.Matches("account:1", "123456", "not-hex"))
}

func TestBcryptCodeHasher(t *testing.T) {
	h := NewBcryptCodeHasher(4)

	hash, err := h.Hash("account:1", "123456")
	require.NoError(t, err)
	assert.True(t, h.Matches("account:1", "123456", hash))
	assert.False(t, h.Matches("account:1", "654321", hash))
}

func TestNewCodeHasher(t *testing.T) {
	h, err := NewCodeHasher("hmac", "pepper")
	require.NoError(t, err)
	assert.IsType(t, &HMACCodeHasher{}, h)

	h, err = NewCodeHasher("bcrypt", "")
	require.NoError(t, err)
	assert.IsType(t, &BcryptCodeHasher{}, h)

	_, err = NewCodeHasher("md5", "")
	assert.Error(t, err)
}
