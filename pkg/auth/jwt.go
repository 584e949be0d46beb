package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"tracesim/pkg/faults"
	"tracesim/pkg/model"
)

var ErrInvalid = errors.New("invalid token")

type Claims struct {
	UserID   uint   `json:"uid"`
	Username string `json:"username"`
	Admin    bool   `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 session tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if secret == "" {
		secret = "change-me-secret"
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (i *Issuer) Generate(u model.User) (string, error) {
	now := i.now()
	claims := Claims{
		UserID:   u.ID,
		Username: u.Username,
		Admin:    u.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

func (i *Issuer) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, ErrInvalid
	}
	if claims, ok := token.Claims.(*Claims); ok && claims.Username != "" {
		return claims, nil
	}
	return nil, ErrInvalid
}

// Identify turns a token into the caller identity, or an AuthFailure.
func (i *Issuer) Identify(tokenStr string) (model.Identity, error) {
	if tokenStr == "" {
		return model.Identity{}, faults.AuthFailure("missing token")
	}
	claims, err := i.Parse(tokenStr)
	if err != nil {
		return model.Identity{}, faults.AuthFailure("invalid or expired token")
	}
	return model.NewIdentity(claims.Username, claims.Admin), nil
}
