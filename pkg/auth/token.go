// Package auth verifies the bearer tokens market operators present to the
// peek/dequeue API. Tokens are minted by the hub's identity service; this
// package only validates them and extracts the actor identity.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gridpoint-energy/postoffice-backend/pkg/actor"
	"github.com/gridpoint-energy/postoffice-backend/pkg/config"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// ActorClaims is the typed JWT presented by a market operator. The actor
// field carries either a GUID actor id or a legacy GLN.
type ActorClaims struct {
	Actor string `json:"actor"`
	jwt.RegisteredClaims
}

// ActorID parses the claim's identity field.
func (c *ActorClaims) ActorID() (actor.ID, error) {
	return actor.Parse(c.Actor)
}

// MintActorToken issues a signed JWT for the given actor. Production tokens
// come from the identity service; this exists for tooling and tests.
func MintActorToken(cfg config.JWTConfig, now time.Time, id actor.ID, ttl time.Duration) (string, error) {
	if cfg.Secret == "" {
		return "", fmt.Errorf("jwt secret is required")
	}
	if cfg.Issuer == "" {
		return "", fmt.Errorf("jwt issuer is required")
	}
	if id.IsZero() {
		return "", fmt.Errorf("actor id is required")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("token ttl must be positive")
	}

	claims := ActorClaims{
		Actor: id.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwtSigningMethod, claims)
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseActorToken validates the JWT string and returns typed claims.
func ParseActorToken(cfg config.JWTConfig, tokenString string) (*ActorClaims, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	claims := &ActorClaims{}
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
