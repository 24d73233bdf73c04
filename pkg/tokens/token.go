package tokens

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/librariashqip/libraria-backend/pkg/config"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// MintAccessToken issues a signed JWT bound to a single rental. A nil
// expiresAt mints a token without an exp claim; unlimited tiers rely on the
// rental row's state rather than the token expiry.
func MintAccessToken(cfg config.AccessTokenConfig, now time.Time, expiresAt *time.Time, payload AccessTokenPayload) (string, error) {
	if cfg.Secret == "" {
		return "", fmt.Errorf("access token secret is required")
	}
	if cfg.Issuer == "" {
		return "", fmt.Errorf("access token issuer is required")
	}
	if !payload.Mode.IsValid() {
		return "", fmt.Errorf("invalid delivery mode %q", payload.Mode)
	}
	if payload.BuyerID == uuid.Nil || payload.RentalID == uuid.Nil {
		return "", fmt.Errorf("buyer and rental ids are required")
	}

	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}

	registered := jwt.RegisteredClaims{
		Issuer:   cfg.Issuer,
		IssuedAt: jwt.NewNumericDate(now),
		ID:       jti,
	}
	if expiresAt != nil {
		registered.ExpiresAt = jwt.NewNumericDate(*expiresAt)
	}

	claims := AccessTokenClaims{
		BuyerID:          payload.BuyerID,
		RentalID:         payload.RentalID,
		ContentID:        payload.ContentID,
		Mode:             payload.Mode,
		RegisteredClaims: registered,
	}

	token := jwt.NewWithClaims(jwtSigningMethod, claims)
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseAccessToken validates the JWT string and returns typed claims.
func ParseAccessToken(cfg config.AccessTokenConfig, tokenString string) (*AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("access token secret is required")
	}

	claims := &AccessTokenClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(cfg.Secret), nil
		},
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
	)
	if err != nil {
		return nil, err
	}

	return claims, nil
}

// Fingerprint returns the hex sha256 of a token string. Rentals store the
// fingerprint instead of the token itself so a database dump cannot be
// replayed as a bearer credential.
func Fingerprint(tokenString string) string {
	sum := sha256.Sum256([]byte(tokenString))
	return hex.EncodeToString(sum[:])
}

// FingerprintMatches compares a presented token against a stored fingerprint.
func FingerprintMatches(tokenString, stored string) bool {
	if stored == "" {
		return false
	}
	return Fingerprint(tokenString) == stored
}
