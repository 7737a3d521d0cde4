package service

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/slotbook/slotbook/internal/models"
	"github.com/slotbook/slotbook/internal/util"
)

const (
	TokenTypeAccess = "access"
	TokenTypeReset  = "password_reset"

	bearerPrefix = "Bearer "
)

var (
	ErrTokenInvalid         = errors.New("token invalid")
	ErrInvalidSigningMethod = errors.New("invalid signing method")
)

type TokenClaims struct {
	UserID    string   `json:"user_id"`
	CompanyID string   `json:"company_id"`
	Email     string   `json:"email"`
	Roles     []string `json:"roles"`
	TokenType string   `json:"type"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies JWTs with an RS256 key pair. The codec is
// type-agnostic beyond the `type` discriminator it stamps: access tokens and
// password-reset tokens share the same signing path.
type TokenService struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	issuer     string
	audience   string
	accessTTL  time.Duration
	resetTTL   time.Duration
}

// NewTokenService loads both key files once. An unreadable or unparsable key
// is a construction error; main treats it as fatal so the process never runs
// without a verifying key.
func NewTokenService(cfg *util.TokenConfig) (*TokenService, error) {
	privPEM, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(privPEM)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	pubPEM, err := os.ReadFile(cfg.PublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(pubPEM)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return &TokenService{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		accessTTL:  cfg.AccessTTL,
		resetTTL:   cfg.ResetTTL,
	}, nil
}

func (ts *TokenService) CreateAccessToken(user *models.User) (string, error) {
	return ts.createToken(user, TokenTypeAccess, ts.accessTTL)
}

func (ts *TokenService) CreateResetToken(user *models.User) (string, error) {
	return ts.createToken(user, TokenTypeReset, ts.resetTTL)
}

func (ts *TokenService) createToken(user *models.User, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := &TokenClaims{
		UserID:    user.ID,
		CompanyID: user.CompanyID,
		Email:     user.Email,
		Roles:     user.Roles,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			Issuer:    ts.issuer,
			Audience:  jwt.ClaimStrings{ts.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signedToken, err := token.SignedString(ts.privateKey)
	if err != nil {
		return "", fmt.Errorf("signed string: %w", err)
	}

	return signedToken, nil
}

// VerifyAccessToken rejects anything that is not a live, correctly signed
// access token: wrong signature, wrong issuer/audience, expired, wrong type.
func (ts *TokenService) VerifyAccessToken(token string) (*TokenClaims, error) {
	return ts.verifyToken(token, TokenTypeAccess)
}

func (ts *TokenService) VerifyResetToken(token string) (*TokenClaims, error) {
	return ts.verifyToken(token, TokenTypeReset)
}

func (ts *TokenService) verifyToken(token, wantType string) (*TokenClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(ts.issuer),
		jwt.WithAudience(ts.audience),
		jwt.WithLeeway(util.JWTLeeWay),
		jwt.WithExpirationRequired(),
	}

	parsedToken, err := jwt.ParseWithClaims(
		token,
		&TokenClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodRS256.Alg() {
				return nil, ErrInvalidSigningMethod
			}
			return ts.publicKey, nil
		},
		opts...,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	if parsedToken == nil || !parsedToken.Valid {
		return nil, ErrTokenInvalid
	}

	claims, ok := parsedToken.Claims.(*TokenClaims)
	if !ok || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}
	if claims.TokenType != wantType {
		return nil, fmt.Errorf("%w: unexpected token type", ErrTokenInvalid)
	}

	return claims, nil
}

// DecodeUnverified parses claims without checking the signature. Debugging
// aid only; never an input to an authorization decision.
func (ts *TokenService) DecodeUnverified(token string) (*TokenClaims, error) {
	parsedToken, _, err := new(jwt.Parser).ParseUnverified(token, &TokenClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := parsedToken.Claims.(*TokenClaims)
	if !ok {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// ExtractBearerToken pulls the token out of an Authorization header value.
// Returns "" when the header is absent or not a Bearer scheme.
func ExtractBearerToken(headerValue string) string {
	if !strings.HasPrefix(headerValue, bearerPrefix) {
		return ""
	}
	token := strings.TrimSpace(strings.TrimPrefix(headerValue, bearerPrefix))
	return token
}
