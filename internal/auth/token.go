package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"lumen_backend/internal/config"
)

var (
	// ErrTokenExpired means the token was structurally valid but past its
	// expiry. Callers translate both errors into Unauthorized but may log
	// them differently.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid means the token failed signature or claim checks.
	ErrTokenInvalid = errors.New("token invalid")
)

// AccessTokenPayload is the claim set carried by access tokens.
type AccessTokenPayload struct {
	Sub       string `json:"sub"`
	Email     string `json:"email"`
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
}

// RefreshTokenPayload is the claim set carried by refresh tokens.
type RefreshTokenPayload struct {
	Sub       string `json:"sub"`
	SessionID string `json:"sessionId"`
}

// RefreshToken bundles a signed refresh token with its expiry and session id
// so cookie-setting code does not need to re-decode the token.
type RefreshToken struct {
	Token     string
	ExpiresAt time.Time
	SessionID string
}

// TokenCodec mints and verifies the two signed token kinds with distinct
// secrets, and produces opaque one-shot tokens. It is stateless; a single
// instance is constructed at process start and shared.
type TokenCodec struct {
	accessSecret  []byte
	refreshSecret []byte
	audience      string // app origin
	issuer        string // API base URL
}

func NewTokenCodec(cfg *config.Config) *TokenCodec {
	return &TokenCodec{
		accessSecret:  []byte(cfg.Tokens.AccessSecret),
		refreshSecret: []byte(cfg.Tokens.RefreshSecret),
		audience:      cfg.App.Origin,
		issuer:        cfg.App.BaseURL,
	}
}

type accessClaims struct {
	Email     string `json:"email"`
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	jwt.RegisteredClaims
}

type refreshClaims struct {
	SessionID string `json:"sessionId"`
	jwt.RegisteredClaims
}

// GenerateAccessToken signs a 30-minute HS256 access token with audience and
// issuer pinned to the deployment.
func (c *TokenCodec) GenerateAccessToken(payload AccessTokenPayload) (string, error) {
	now := time.Now()
	claims := accessClaims{
		Email:     payload.Email,
		UserID:    payload.UserID,
		SessionID: payload.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   payload.Sub,
			Audience:  jwt.ClaimStrings{c.audience},
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(config.AccessTokenTTL)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.accessSecret)
}

// VerifyAccessToken validates signature, expiry, audience and issuer.
func (c *TokenCodec) VerifyAccessToken(token string) (*AccessTokenPayload, error) {
	var claims accessClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, c.keyFunc(c.accessSecret),
		jwt.WithAudience(c.audience),
		jwt.WithIssuer(c.issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, classifyJWTError(err)
	}
	if !parsed.Valid {
		return nil, ErrTokenInvalid
	}

	return &AccessTokenPayload{
		Sub:       claims.Subject,
		Email:     claims.Email,
		UserID:    claims.UserID,
		SessionID: claims.SessionID,
	}, nil
}

// GenerateRefreshToken mints a fresh session id and signs a 7-day refresh
// token carrying {sub, sessionId}.
func (c *TokenCodec) GenerateRefreshToken(userID string) (RefreshToken, error) {
	sessionID := uuid.NewString()
	now := time.Now()
	expiresAt := now.Add(config.RefreshTokenTTL)

	claims := refreshClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.refreshSecret)
	if err != nil {
		return RefreshToken{}, err
	}

	return RefreshToken{
		Token:     token,
		ExpiresAt: expiresAt,
		SessionID: sessionID,
	}, nil
}

// VerifyRefreshToken validates signature and expiry of a refresh token.
func (c *TokenCodec) VerifyRefreshToken(token string) (*RefreshTokenPayload, error) {
	var claims refreshClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, c.keyFunc(c.refreshSecret),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, classifyJWTError(err)
	}
	if !parsed.Valid {
		return nil, ErrTokenInvalid
	}

	return &RefreshTokenPayload{
		Sub:       claims.Subject,
		SessionID: claims.SessionID,
	}, nil
}

func (c *TokenCodec) keyFunc(secret []byte) jwt.Keyfunc {
	return func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}
}

func classifyJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	}
	return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
}

// GenerateOpaqueToken returns a cryptographically random, URL-safe string
// trimmed to exactly length characters. Used for email-verification and
// password-reset tokens.
func GenerateOpaqueToken(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("token length must be positive")
	}

	// base64 expands 3 bytes into 4 chars; over-provision and trim.
	buf := make([]byte, (length*3+3)/4+3)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	token := base64.RawURLEncoding.EncodeToString(buf)
	return token[:length], nil
}

// HashToken computes a keyed HMAC-SHA512 of the token, hex-encoded. Used
// wherever a token must be compared without keeping the raw value around.
func HashToken(token, secret string) (string, error) {
	if token == "" {
		return "", errors.New("token is required")
	}

	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// CompareTokens hashes both sides and compares in constant time. It returns
// false, never an error, on any malformed input.
func CompareTokens(a, b, secret string) bool {
	if a == "" || b == "" {
		return false
	}

	hashA, err := HashToken(a, secret)
	if err != nil {
		return false
	}
	hashB, err := HashToken(b, secret)
	if err != nil {
		return false
	}

	rawA, err := hex.DecodeString(hashA)
	if err != nil {
		return false
	}
	rawB, err := hex.DecodeString(hashB)
	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare(rawA, rawB) == 1
}
