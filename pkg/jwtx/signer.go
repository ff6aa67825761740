package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Signer signs claims into a compact JWT.
type Signer interface {
	Sign(Claims) (string, error)
}

// MinSecretLength is the shortest HMAC secret accepted, in bytes.
const MinSecretLength = 32

var ErrWeakSecret = errors.New("jwtx: secret too short")

// HMAC signs and verifies HS256 tokens with a single shared secret. Access
// and refresh tokens each get their own HMAC so one can never be accepted
// as the other.
type HMAC struct {
	secret []byte
	leeway time.Duration
}

// NewHMAC returns an HS256 signer/verifier. leeway is the clock skew
// tolerated on exp/iat.
func NewHMAC(secret string, leeway time.Duration) (*HMAC, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrWeakSecret, MinSecretLength, len(secret))
	}
	return &HMAC{secret: []byte(secret), leeway: leeway}, nil
}

func (h *HMAC) Sign(c Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(h.secret)
}
