package service

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/argon2"

	"github.com/slotbook/slotbook/internal/util"
)

const (
	argon2Version = 19 // argon2.Version (0x13)

	argonSaltLength = 16
	argonKeyLength  = 32

	passwordMinLength = 8
	passwordMaxLength = 128
)

// PasswordService hashes and verifies passwords with Argon2id, encoded in the
// PHC string format:
// $argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<hash_b64>
type PasswordService struct {
	memoryKiB   uint32
	iterations  uint32
	parallelism uint8
}

func NewPasswordService(cfg *util.PasswordConfig) *PasswordService {
	return &PasswordService{
		memoryKiB:   cfg.MemoryKiB,
		iterations:  cfg.Iterations,
		parallelism: cfg.Parallelism,
	}
}

func (p *PasswordService) HashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("%w: salt: %w", ErrHashingFailure, err)
	}

	key := argon2.IDKey([]byte(password), salt, p.iterations, p.memoryKiB, p.parallelism, argonKeyLength)

	b64 := base64.RawStdEncoding
	encoded := fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Version,
		p.memoryKiB,
		p.iterations,
		p.parallelism,
		b64.EncodeToString(salt),
		b64.EncodeToString(key),
	)

	return encoded, nil
}

// VerifyPassword returns false for mismatches and for malformed hashes alike;
// a caller can not distinguish the failure modes.
func (p *PasswordService) VerifyPassword(encodedHash, password string) bool {
	params, salt, expected, err := decodePasswordHash(encodedHash)
	if err != nil {
		return false
	}

	key := argon2.IDKey(
		[]byte(password),
		salt,
		params.iterations,
		params.memoryKiB,
		params.parallelism,
		uint32(len(expected)),
	)

	return subtle.ConstantTimeCompare(key, expected) == 1
}

// NeedsRehash reports whether the stored hash was produced with cost
// parameters different from the currently configured ones. Malformed hashes
// report true so they get replaced on the next successful sign-in.
func (p *PasswordService) NeedsRehash(encodedHash string) bool {
	params, _, _, err := decodePasswordHash(encodedHash)
	if err != nil {
		return true
	}
	return params.memoryKiB != p.memoryKiB ||
		params.iterations != p.iterations ||
		params.parallelism != p.parallelism
}

// ValidateStrength collects every violated rule instead of failing fast.
func (p *PasswordService) ValidateStrength(password string) []string {
	var violations []string

	if len(password) < passwordMinLength {
		violations = append(violations, fmt.Sprintf("must be at least %d characters", passwordMinLength))
	}
	if len(password) > passwordMaxLength {
		violations = append(violations, fmt.Sprintf("must be at most %d characters", passwordMaxLength))
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	if !hasUpper {
		violations = append(violations, "must contain an uppercase letter")
	}
	if !hasLower {
		violations = append(violations, "must contain a lowercase letter")
	}
	if !hasDigit {
		violations = append(violations, "must contain a digit")
	}
	if !hasSymbol {
		violations = append(violations, "must contain a symbol")
	}

	return violations
}

type argonParams struct {
	memoryKiB   uint32
	iterations  uint32
	parallelism uint8
}

func decodePasswordHash(encoded string) (argonParams, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return argonParams{}, nil, nil, fmt.Errorf("invalid argon2id hash format")
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2Version) {
		return argonParams{}, nil, nil, fmt.Errorf("unsupported argon2 version")
	}

	var mem, iter, par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iter, &par); err != nil {
		return argonParams{}, nil, nil, fmt.Errorf("invalid argon2 parameters: %w", err)
	}
	if mem == 0 || iter == 0 || par == 0 || par > 255 {
		return argonParams{}, nil, nil, fmt.Errorf("argon2 parameters out of range")
	}

	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return argonParams{}, nil, nil, fmt.Errorf("invalid salt encoding: %w", err)
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil {
		return argonParams{}, nil, nil, fmt.Errorf("invalid key encoding: %w", err)
	}
	if len(salt) < 8 || len(key) < 16 {
		return argonParams{}, nil, nil, fmt.Errorf("salt or key too short")
	}

	return argonParams{memoryKiB: mem, iterations: iter, parallelism: uint8(par)}, salt, key, nil
}
