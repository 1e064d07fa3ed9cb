package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Identity is the user record carried inside a signed credential. The
// issuing web application signs it; this server only verifies and then
// trusts the claims for the lifetime of the connection. In particular
// NetworkingAvailable is read once at connect time and never re-checked
// against the source of truth.
type Identity struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Email               string   `json:"email"`
	Image               string   `json:"image,omitempty"`
	Bio                 string   `json:"bio,omitempty"`
	Industry            string   `json:"industry,omitempty"`
	Skills              []string `json:"skills,omitempty"`
	NetworkingAvailable bool     `json:"networkingAvailable"`
}

// Claims embeds the registered claim set plus the user identity payload.
type Claims struct {
	jwt.RegisteredClaims
	User Identity `json:"user"`
}

// GenerateToken signs an identity with HS256. The web tier is the normal
// issuer; this is used by tooling and tests.
func GenerateToken(ident Identity, secretKey []byte, validity time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validity)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		User: ident,
	})
	return token.SignedString(secretKey)
}

// VerifyToken checks signature and expiry and returns the embedded
// identity. Only HS256 is accepted.
func VerifyToken(tokenString string, secretKey []byte) (Identity, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, err
	}

	if !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	if claims.User.ID == "" {
		return Identity{}, ErrInvalidToken
	}

	return claims.User, nil
}
