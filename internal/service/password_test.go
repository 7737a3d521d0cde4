package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotbook/slotbook/internal/util"
)

func testPasswordService() *PasswordService {
	// Deliberately light parameters so the suite stays fast.
	return NewPasswordService(&util.PasswordConfig{
		MemoryKiB:   8 * 1024,
		Iterations:  1,
		Parallelism: 1,
	})
}

func TestPasswordService_RoundTrip(t *testing.T) {
	p := testPasswordService()

	hash, err := p.HashPassword("Abc12345!")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))

	assert.True(t, p.VerifyPassword(hash, "Abc12345!"))
	assert.False(t, p.VerifyPassword(hash, "wrong"))
}

func TestPasswordService_HashIsSalted(t *testing.T) {
	p := testPasswordService()

	first, err := p.HashPassword("Abc12345!")
	require.NoError(t, err)
	second, err := p.HashPassword("Abc12345!")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestPasswordService_VerifyMalformedHash(t *testing.T) {
	p := testPasswordService()

	tests := []struct {
		name string
		hash string
	}{
		{name: "empty", hash: ""},
		{name: "not a phc string", hash: "plainly-not-a-hash"},
		{name: "wrong algorithm", hash: "$bcrypt$v=19$m=8192,t=1,p=1$c2FsdA$aGFzaA"},
		{name: "wrong version", hash: "$argon2id$v=18$m=8192,t=1,p=1$c2FsdA$aGFzaA"},
		{name: "bad salt encoding", hash: "$argon2id$v=19$m=8192,t=1,p=1$!!!$aGFzaA"},
		{name: "zero cost", hash: "$argon2id$v=19$m=0,t=0,p=0$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, p.VerifyPassword(tt.hash, "Abc12345!"))
		})
	}
}

func TestPasswordService_NeedsRehash(t *testing.T) {
	p := testPasswordService()

	hash, err := p.HashPassword("Abc12345!")
	require.NoError(t, err)
	assert.False(t, p.NeedsRehash(hash))

	stronger := NewPasswordService(&util.PasswordConfig{
		MemoryKiB:   16 * 1024,
		Iterations:  2,
		Parallelism: 1,
	})
	assert.True(t, stronger.NeedsRehash(hash))

	// A hash from the stronger config still verifies with the weaker service,
	// which is what makes online cost upgrades possible.
	strongerHash, err := stronger.HashPassword("Abc12345!")
	require.NoError(t, err)
	assert.True(t, p.VerifyPassword(strongerHash, "Abc12345!"))
	assert.True(t, p.NeedsRehash(strongerHash))

	assert.True(t, p.NeedsRehash("garbage"))
}

func TestPasswordService_ValidateStrength(t *testing.T) {
	p := testPasswordService()

	tests := []struct {
		name       string
		password   string
		violations int
	}{
		{name: "valid", password: "Abc12345!", violations: 0},
		{name: "too short but otherwise fine", password: "Ab1!", violations: 1},
		{name: "missing symbol", password: "Abc12345", violations: 1},
		{name: "missing upper and digit", password: "abcdefgh!", violations: 2},
		{name: "everything wrong", password: "aaa", violations: 4},
		{name: "too long", password: strings.Repeat("Ab1!", 40), violations: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := p.ValidateStrength(tt.password)
			assert.Len(t, violations, tt.violations)
		})
	}
}

func TestSecureCompare(t *testing.T) {
	assert.True(t, SecureCompare("abcdef", "abcdef"))
	assert.False(t, SecureCompare("abcdef", "abcdeg"))
	// Length mismatch must return false, never panic or error.
	assert.False(t, SecureCompare("abc", "abcdef"))
	assert.False(t, SecureCompare("", "abc"))
	assert.True(t, SecureCompare("", ""))
}
