package tokens

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/librariashqip/libraria-backend/pkg/config"
	"github.com/librariashqip/libraria-backend/pkg/enums"
)

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := config.AccessTokenConfig{
		Secret: "secret",
		Issuer: "libraria-rentals",
	}
	now := time.Now().UTC()
	expiry := now.Add(14 * 24 * time.Hour)
	buyerID := uuid.New()
	rentalID := uuid.New()
	contentID := uuid.New()

	payload := AccessTokenPayload{
		BuyerID:   buyerID,
		RentalID:  rentalID,
		ContentID: contentID,
		Mode:      enums.DeliveryModeEbook,
	}

	token, err := MintAccessToken(cfg, now, &expiry, payload)
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}

	if claims.BuyerID != buyerID {
		t.Fatalf("expected buyer_id %s, got %s", buyerID, claims.BuyerID)
	}
	if claims.RentalID != rentalID {
		t.Fatalf("expected rental_id %s, got %s", rentalID, claims.RentalID)
	}
	if claims.ContentID != contentID {
		t.Fatalf("content id not preserved")
	}
	if claims.Mode != enums.DeliveryModeEbook {
		t.Fatalf("unexpected mode %s", claims.Mode)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("expected issuer %s, got %s", cfg.Issuer, claims.Issuer)
	}

	diff := claims.ExpiresAt.Sub(expiry)
	if diff < 0 {
		diff = -diff
	}
	if diff >= time.Second {
		t.Fatalf("expected exp roughly %v, got %v (diff %v)", expiry, claims.ExpiresAt.UTC(), diff)
	}
}

func TestMintAccessTokenWithoutExpiry(t *testing.T) {
	cfg := config.AccessTokenConfig{Secret: "secret", Issuer: "libraria-rentals"}

	token, err := MintAccessToken(cfg, time.Now(), nil, AccessTokenPayload{
		BuyerID:   uuid.New(),
		RentalID:  uuid.New(),
		ContentID: uuid.New(),
		Mode:      enums.DeliveryModeAudio,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.ExpiresAt != nil {
		t.Fatalf("expected no exp claim, got %v", claims.ExpiresAt)
	}
}

func TestParseAccessTokenInvalidSignature(t *testing.T) {
	cfg := config.AccessTokenConfig{Secret: "secret", Issuer: "libraria-rentals"}
	expiry := time.Now().Add(time.Hour)

	token, err := MintAccessToken(cfg, time.Now(), &expiry, AccessTokenPayload{
		BuyerID:   uuid.New(),
		RentalID:  uuid.New(),
		ContentID: uuid.New(),
		Mode:      enums.DeliveryModeEbook,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	other := config.AccessTokenConfig{Secret: "different", Issuer: "libraria-rentals"}
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatal("expected signature validation failure")
	}
}

func TestParseAccessTokenWrongIssuer(t *testing.T) {
	cfg := config.AccessTokenConfig{Secret: "secret", Issuer: "libraria-rentals"}
	expiry := time.Now().Add(time.Hour)

	token, err := MintAccessToken(cfg, time.Now(), &expiry, AccessTokenPayload{
		BuyerID:   uuid.New(),
		RentalID:  uuid.New(),
		ContentID: uuid.New(),
		Mode:      enums.DeliveryModeEbook,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	other := config.AccessTokenConfig{Secret: "secret", Issuer: "someone-else"}
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatal("expected issuer validation failure")
	}
}

func TestMintAccessTokenValidation(t *testing.T) {
	cfg := config.AccessTokenConfig{Secret: "secret", Issuer: "libraria-rentals"}

	if _, err := MintAccessToken(config.AccessTokenConfig{Issuer: "x"}, time.Now(), nil, AccessTokenPayload{}); err == nil {
		t.Fatal("expected error without secret")
	}
	if _, err := MintAccessToken(cfg, time.Now(), nil, AccessTokenPayload{
		BuyerID:  uuid.New(),
		RentalID: uuid.New(),
		Mode:     enums.DeliveryMode("carrier_pigeon"),
	}); err == nil || !strings.Contains(err.Error(), "delivery mode") {
		t.Fatalf("expected delivery mode error, got %v", err)
	}
	if _, err := MintAccessToken(cfg, time.Now(), nil, AccessTokenPayload{
		Mode: enums.DeliveryModeEbook,
	}); err == nil {
		t.Fatal("expected error for missing ids")
	}
}

func TestFingerprint(t *testing.T) {
	fp := Fingerprint("token-a")
	if len(fp) != 64 {
		t.Fatalf("expected hex sha256, got %q", fp)
	}
	if !FingerprintMatches("token-a", fp) {
		t.Fatal("fingerprint should match its source token")
	}
	if FingerprintMatches("token-b", fp) {
		t.Fatal("fingerprint should not match a different token")
	}
	if FingerprintMatches("token-a", "") {
		t.Fatal("empty stored fingerprint must never match")
	}
}
