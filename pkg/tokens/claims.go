package tokens

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/librariashqip/libraria-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a rental token.
type AccessTokenPayload struct {
	BuyerID   uuid.UUID
	RentalID  uuid.UUID
	ContentID uuid.UUID
	Mode      enums.DeliveryMode
	JTI       string
}

// AccessTokenClaims represents the typed JWT issued per rental.
type AccessTokenClaims struct {
	BuyerID   uuid.UUID          `json:"buyer_id"`
	RentalID  uuid.UUID          `json:"rental_id"`
	ContentID uuid.UUID          `json:"content_id"`
	Mode      enums.DeliveryMode `json:"mode"`
	jwt.RegisteredClaims
}
