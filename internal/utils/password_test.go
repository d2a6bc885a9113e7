package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	t.Parallel()
	hash, err := HashPassword("Str0ng!Pass", 4) // min cost keeps the test fast
	require.NoError(t, err)

	ok, err := VerifyPassword(hash, "Str0ng!Pass")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword(hash, "wrong-password")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyPasswordUnusableDigest(t *testing.T) {
	t.Parallel()
	// A digest that is not bcrypt output at all must surface as an
	// error, never as a plain mismatch.
	ok, err := VerifyPassword("not-a-bcrypt-digest", "Str0ng!Pass")
	assert.Error(t, err)
	assert.False(t, ok)

	ok, err = VerifyPassword("", "Str0ng!Pass")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestValidatePasswordStrength(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name     string
		password string
		reasons  int
	}{
		{"acceptable", "Str0ng!Pass", 0},
		{"too short but otherwise fine", "S7r!ng", 1},
		{"missing symbol", "Str0ngPass", 1},
		{"missing digit and symbol", "StrongPass", 2},
		{"all lowercase short", "abc", 4},
		{"empty", "", 5},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidatePasswordStrength(tt.password)
			assert.Len(t, got, tt.reasons)
		})
	}
}
