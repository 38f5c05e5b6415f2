// Package auth issues and verifies caller tokens: EdDSA-signed JWTs whose
// subject is the caller's account address.
package auth

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "github.com/louisbranch/soulbound/internal/platform/errors"
	"github.com/louisbranch/soulbound/internal/services/registry/ledger"
)

const (
	// EnvCallerIssuer names the expected token issuer.
	EnvCallerIssuer = "SOULBOUND_CALLER_ISSUER"
	// EnvCallerAudience names the expected token audience.
	EnvCallerAudience = "SOULBOUND_CALLER_AUDIENCE"
	// EnvCallerPublicKey holds the base64 ed25519 verification key.
	EnvCallerPublicKey = "SOULBOUND_CALLER_PUBLIC_KEY"
	// EnvCallerPrivateKey holds the base64 ed25519 signing key.
	EnvCallerPrivateKey = "SOULBOUND_CALLER_PRIVATE_KEY"
)

// verifierEnv holds raw env values before post-parse validation.
type verifierEnv struct {
	Issuer    string `env:"SOULBOUND_CALLER_ISSUER"`
	Audience  string `env:"SOULBOUND_CALLER_AUDIENCE"`
	PublicKey string `env:"SOULBOUND_CALLER_PUBLIC_KEY"`
}

// issuerEnv holds raw env values before post-parse validation.
type issuerEnv struct {
	Issuer     string        `env:"SOULBOUND_CALLER_ISSUER"`
	Audience   string        `env:"SOULBOUND_CALLER_AUDIENCE"`
	PrivateKey string        `env:"SOULBOUND_CALLER_PRIVATE_KEY"`
	TTL        time.Duration `env:"SOULBOUND_CALLER_TOKEN_TTL"   envDefault:"24h"`
}

// VerifierConfig defines how caller tokens are verified.
type VerifierConfig struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// IssuerConfig defines how caller tokens are signed.
type IssuerConfig struct {
	Issuer   string
	Audience string
	Key      ed25519.PrivateKey
	TTL      time.Duration
	Now      func() time.Time
}

// Claims captures validated caller token claims.
type Claims struct {
	Caller    common.Address
	Issuer    string
	Audience  []string
	ExpiresAt time.Time
	IssuedAt  time.Time
	JWTID     string
}

// LoadVerifierConfigFromEnv reads caller token verification configuration.
func LoadVerifierConfigFromEnv(now func() time.Time) (VerifierConfig, error) {
	var raw verifierEnv
	if err := env.Parse(&raw); err != nil {
		return VerifierConfig{}, fmt.Errorf("parse caller token env: %w", err)
	}
	issuer, audience, err := requireIssuerAudience(raw.Issuer, raw.Audience)
	if err != nil {
		return VerifierConfig{}, err
	}
	key, err := DecodePublicKey(raw.PublicKey)
	if err != nil {
		return VerifierConfig{}, err
	}
	if now == nil {
		now = time.Now
	}
	return VerifierConfig{Issuer: issuer, Audience: audience, Key: key, Now: now}, nil
}

// LoadIssuerConfigFromEnv reads caller token signing configuration.
func LoadIssuerConfigFromEnv(now func() time.Time) (IssuerConfig, error) {
	var raw issuerEnv
	if err := env.Parse(&raw); err != nil {
		return IssuerConfig{}, fmt.Errorf("parse caller token env: %w", err)
	}
	issuer, audience, err := requireIssuerAudience(raw.Issuer, raw.Audience)
	if err != nil {
		return IssuerConfig{}, err
	}
	privateKey := strings.TrimSpace(raw.PrivateKey)
	if privateKey == "" {
		return IssuerConfig{}, fmt.Errorf("%s is required", EnvCallerPrivateKey)
	}
	keyBytes, err := decodeBase64(privateKey)
	if err != nil {
		return IssuerConfig{}, fmt.Errorf("decode caller private key: %w", err)
	}
	if len(keyBytes) != ed25519.PrivateKeySize {
		return IssuerConfig{}, fmt.Errorf("caller private key must be %d bytes", ed25519.PrivateKeySize)
	}
	if raw.TTL <= 0 {
		return IssuerConfig{}, fmt.Errorf("caller token ttl must be positive")
	}
	if now == nil {
		now = time.Now
	}
	return IssuerConfig{
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PrivateKey(keyBytes),
		TTL:      raw.TTL,
		Now:      now,
	}, nil
}

// DecodePublicKey decodes a base64 ed25519 public key.
func DecodePublicKey(value string) (ed25519.PublicKey, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("%s is required", EnvCallerPublicKey)
	}
	keyBytes, err := decodeBase64(value)
	if err != nil {
		return nil, fmt.Errorf("decode caller public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("caller public key must be %d bytes", ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(keyBytes), nil
}

func requireIssuerAudience(issuer, audience string) (string, string, error) {
	issuer = strings.TrimSpace(issuer)
	audience = strings.TrimSpace(audience)
	if issuer == "" {
		return "", "", fmt.Errorf("%s is required", EnvCallerIssuer)
	}
	if audience == "" {
		return "", "", fmt.Errorf("%s is required", EnvCallerAudience)
	}
	return issuer, audience, nil
}

// Issue signs a caller token for caller.
func Issue(cfg IssuerConfig, caller common.Address) (string, error) {
	if cfg.Issuer == "" || cfg.Audience == "" || len(cfg.Key) != ed25519.PrivateKeySize {
		return "", errors.New("caller token signer is not configured")
	}
	if caller == (common.Address{}) {
		return "", apperrors.New(apperrors.CodeInvalidAddress, "caller token subject is the zero address")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.TTL <= 0 {
		return "", errors.New("caller token ttl must be positive")
	}
	now := cfg.Now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    cfg.Issuer,
		Subject:   caller.Hex(),
		Audience:  jwt.ClaimStrings{cfg.Audience},
		ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TTL)),
		IssuedAt:  jwt.NewNumericDate(now),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(cfg.Key)
	if err != nil {
		return "", fmt.Errorf("sign caller token: %w", err)
	}
	return signed, nil
}

// Verify checks a caller token and returns its claims. Failures carry
// UNAUTHENTICATED, or CALLER_TOKEN_EXPIRED for a well-formed expired token.
func Verify(token string, cfg VerifierConfig) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, apperrors.New(apperrors.CodeUnauthenticated, "caller token is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Issuer == "" || cfg.Audience == "" || len(cfg.Key) != ed25519.PublicKeySize {
		return Claims{}, errors.New("caller token verifier is not configured")
	}

	var parsed jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return cfg.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != cfg.Issuer {
		return Claims{}, mismatch("issuer")
	}
	if !audienceContains(parsed.Audience, cfg.Audience) {
		return Claims{}, mismatch("audience")
	}
	if parsed.ID == "" {
		return Claims{}, apperrors.New(apperrors.CodeUnauthenticated, "caller token jti is required")
	}
	if parsed.ExpiresAt == nil {
		return Claims{}, apperrors.New(apperrors.CodeUnauthenticated, "caller token exp is required")
	}
	now := cfg.Now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return Claims{}, apperrors.New(apperrors.CodeCallerTokenExpired, "caller token is expired")
	}
	if parsed.NotBefore != nil && now.Before(parsed.NotBefore.Time.UTC()) {
		return Claims{}, apperrors.New(apperrors.CodeUnauthenticated, "caller token not active yet")
	}

	caller, err := ledger.ParseAddress(parsed.Subject)
	if err != nil || caller == (common.Address{}) {
		return Claims{}, mismatch("subject")
	}

	claims := Claims{
		Caller:    caller,
		Issuer:    parsed.Issuer,
		Audience:  []string(parsed.Audience),
		ExpiresAt: exp,
		JWTID:     parsed.ID,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

// Verifier binds a VerifierConfig for repeated use.
type Verifier struct {
	cfg VerifierConfig
}

// NewVerifier returns a Verifier for cfg.
func NewVerifier(cfg VerifierConfig) *Verifier {
	return &Verifier{cfg: cfg}
}

// Caller verifies token and returns the caller address.
func (v *Verifier) Caller(token string) (common.Address, error) {
	claims, err := Verify(token, v.cfg)
	if err != nil {
		return common.Address{}, err
	}
	return claims.Caller, nil
}

func mismatch(field string) error {
	return apperrors.WithMetadata(apperrors.CodeUnauthenticated, "caller token "+field+" mismatch", map[string]string{
		"Field": field,
	})
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.Wrap(apperrors.CodeUnauthenticated, "caller token signature is invalid", err)
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.Wrap(apperrors.CodeUnauthenticated, "caller token alg is invalid", err)
	}
	return apperrors.Wrap(apperrors.CodeUnauthenticated, "caller token is invalid", err)
}

func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
