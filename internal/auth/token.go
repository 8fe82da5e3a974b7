// Package auth issues and verifies the signed bearer tokens carried by
// authenticated requests.
package auth

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopdesk/apiserver/internal/apperr"
	"github.com/shopdesk/apiserver/types"
	str2duration "github.com/xhit/go-str2duration/v2"
)

const (
	DefaultLifetime = "30d"
	DefaultIssuer   = "express-api"
	DefaultAudience = "api-users"
)

const (
	msgMalformedToken = "Invalid token format."
	msgExpiredToken   = "Token has expired."
)

// Claims is the identity embedded in a token.
type Claims struct {
	UserID string     `json:"id"`
	Email  string     `json:"email"`
	Role   types.Role `json:"role"`
	jwt.RegisteredClaims
}

type CodecConfig struct {
	Secret   string
	Lifetime time.Duration
	Issuer   string
	Audience string
}

// Codec signs and verifies HS256 tokens. It is safe for concurrent use.
type Codec struct {
	secret   []byte
	lifetime time.Duration
	issuer   string
	audience string
	now      func() time.Time
}

// NewCodec constructs a Codec. An empty secret is a configuration error.
func NewCodec(cfg CodecConfig) (*Codec, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, apperr.New(apperr.KindConfiguration, "JWT secret is not configured")
	}
	lifetime := cfg.Lifetime
	if lifetime <= 0 {
		lifetime, _ = ParseLifetime(DefaultLifetime)
	}
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = DefaultIssuer
	}
	audience := cfg.Audience
	if audience == "" {
		audience = DefaultAudience
	}
	return &Codec{
		secret:   []byte(secret),
		lifetime: lifetime,
		issuer:   issuer,
		audience: audience,
		now:      time.Now,
	}, nil
}

// WithClock returns a copy of the codec that reads time from now.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	clone := *c
	clone.now = now
	return &clone
}

// Lifetime reports how long issued tokens stay valid.
func (c *Codec) Lifetime() time.Duration {
	return c.lifetime
}

// Issue signs a token for the given subject.
func (c *Codec) Issue(subjectID, email string, role types.Role) (string, error) {
	if c == nil || len(c.secret) == 0 {
		return "", apperr.New(apperr.KindConfiguration, "JWT secret is not configured")
	}
	now := c.now()
	claims := Claims{
		UserID: subjectID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.lifetime)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", apperr.Wrap(err, apperr.KindInternal, "failed to sign token")
	}
	return signed, nil
}

// Verify parses the token and checks its signature, issuer, audience and expiry.
func (c *Codec) Verify(tokenString string) (Claims, error) {
	claims := Claims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, apperr.Wrap(err, apperr.KindExpiredToken, msgExpiredToken)
		}
		return Claims{}, apperr.Wrap(err, apperr.KindMalformedToken, msgMalformedToken)
	}
	if !token.Valid {
		return Claims{}, apperr.New(apperr.KindMalformedToken, msgMalformedToken)
	}
	if strings.TrimSpace(claims.UserID) == "" {
		claims.UserID = claims.Subject
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return Claims{}, apperr.New(apperr.KindMalformedToken, msgMalformedToken)
	}
	return claims, nil
}

// ParseLifetime accepts Go durations, day and week units ("30d", "1w")
// and bare seconds.
func ParseLifetime(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = DefaultLifetime
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if secs <= 0 {
			return 0, errors.New("token lifetime must be positive")
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := str2duration.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errors.New("token lifetime must be positive")
	}
	return d, nil
}
