package crypto

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/vaultpass/consumer-secrets/internal/model"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
)

// TokenConfig holds the signing secret and the registered claims every token must carry.
type TokenConfig struct {
	Secret   string
	Issuer   string
	Audience string
	Expiry   time.Duration
}

// Claims carries the actor context. The subject is the actor ID.
type Claims struct {
	jwt.RegisteredClaims
	Actor      model.ActorKind  `json:"actor"`
	OrgID      string           `json:"org_id"`
	AuthMethod model.AuthMethod `json:"auth_method"`
}

// ActorContext converts validated claims into the per-request actor.
func (c *Claims) ActorContext() model.Actor {
	kind := c.Actor
	if kind == "" {
		kind = model.ActorUser
	}
	return model.Actor{
		Kind:       kind,
		ID:         c.Subject,
		OrgID:      c.OrgID,
		AuthMethod: c.AuthMethod,
	}
}

// GenerateToken creates a signed HS256 token for the given actor.
func GenerateToken(actor model.Actor, cfg TokenConfig) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.Expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Actor:      actor.Kind,
		OrgID:      actor.OrgID,
		AuthMethod: actor.AuthMethod,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.Secret))
}

// ValidateToken parses and validates a token string, returning the claims if valid.
// Tokens without a subject or organization are rejected.
func ValidateToken(tokenString string, cfg TokenConfig) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(cfg.Secret), nil
	}, jwt.WithIssuer(cfg.Issuer), jwt.WithAudience(cfg.Audience), jwt.WithExpirationRequired())
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.OrgID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
