package auth

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for malformed, expired or foreign tokens.
var ErrInvalidToken = errors.New("invalid token")

type claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies HS256 bearer tokens of the authentication
// service. The subject is the user id.
type Tokens struct {
	secret []byte
	now    func() time.Time
}

// NewTokens creates Tokens for the shared HMAC secret.
func NewTokens(secret []byte) *Tokens {
	return &Tokens{secret: secret, now: time.Now}
}

// Sign issues a token for p valid for ttl.
func (t *Tokens) Sign(p Principal, ttl time.Duration) (string, error) {
	now := t.now()
	c := claims{
		Role: p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(t.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return s, nil
}

// Parse verifies raw and returns its principal. Tokens without a role claim
// are ordinary users.
func (t *Tokens) Parse(raw string) (*Principal, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidToken, err.Error())
	}
	if c.Subject == "" {
		return nil, errors.Wrap(ErrInvalidToken, "missing subject")
	}

	role := c.Role
	if role != RoleAdmin {
		role = RoleUser
	}
	return &Principal{UserID: c.Subject, Role: role}, nil
}
