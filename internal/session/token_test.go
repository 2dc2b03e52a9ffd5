package session

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(token, TokenPrefix))
	assert.Len(t, token, len(TokenPrefix)+22)
	assert.True(t, TokenRegex.MatchString(token))
	assert.NoError(t, ValidateTokenFormat(token))
}

func TestGenerateTokenUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := GenerateToken()
		require.NoError(t, err)
		assert.False(t, seen[token], "duplicate token generated")
		seen[token] = true
	}
}

func TestValidateTokenFormat(t *testing.T) {
	tests := []struct {
		name  string
		token string
		valid bool
	}{
		{"empty", "", false},
		{"wrong prefix", "sk-AZaz09_-AZaz09_-AZaz09", false},
		{"too short", "st-abc", false},
		{"too long", "st-AZaz09_-AZaz09_-AZaz09_-extra", false},
		{"invalid charset", "st-AZaz09_-AZaz09_-AZaz0!", false},
		{"no prefix", "AZaz09_-AZaz09_-AZaz09_-ab", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTokenFormat(tt.token)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestDecodeTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken()
	require.NoError(t, err)

	id, err := DecodeToken(token)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())

	_, err = DecodeToken("nope-AZaz09_-AZaz09_-AZaz0")
	assert.ErrorIs(t, err, ErrInvalidTokenFormat)
}
