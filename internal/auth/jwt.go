// Package auth verifies driver bearer tokens. Tokens are issued elsewhere;
// they are HS256-signed and carry the driver id in the driverId claim.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt"
)

const driverClaim = "driverId"

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify checks the signature and expiry of tokenString and returns the
// driver id it was issued for.
func (v *Verifier) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	driverID, ok := claims[driverClaim].(string)
	if !ok || driverID == "" {
		return "", fmt.Errorf("%w: %s claim missing", ErrInvalidToken, driverClaim)
	}
	return driverID, nil
}

// FromRequest verifies the Authorization: Bearer header of r.
func (v *Verifier) FromRequest(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", ErrMissingToken
	}
	tok := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	if tok == "" || tok == h {
		return "", ErrMissingToken
	}
	return v.Verify(tok)
}

// Sign issues a token for driverID. It exists for local tooling and tests.
func (v *Verifier) Sign(driverID string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{driverClaim: driverID, "iat": time.Now().Unix()}
	if ttl > 0 {
		claims["exp"] = time.Now().Add(ttl).Unix()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

type ctxKey struct{}

func WithDriver(ctx context.Context, driverID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, driverID)
}

// DriverFrom returns the authenticated driver id stored by WithDriver.
func DriverFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}
