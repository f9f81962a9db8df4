package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tech4loop/marketplace-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	ProfileID uuid.UUID
	Role      enums.Role
	JTI       string
}

// AccessTokenClaims is the JWT shape issued by the identity provider. The
// subject is the profile id.
type AccessTokenClaims struct {
	Role enums.Role `json:"role"`
	jwt.RegisteredClaims
}

// ProfileID parses the subject claim.
func (c *AccessTokenClaims) ProfileID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}
