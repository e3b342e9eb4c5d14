package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrAccessDenied signals a failed operator credential check.
	ErrAccessDenied = errors.New("identity: access denied")
	// ErrInvalidToken signals a malformed or expired operator session token.
	ErrInvalidToken = errors.New("identity: invalid session token")
)

// Operator identifies the artist managing a namespace of commissions.
type Operator struct {
	OwnerID string
	Name    string
}

// CredentialCheck validates an operator access phrase. Implementations decide
// what a credential means; the gate only cares whether it passes.
type CredentialCheck func(phrase string) error

// SharedSecret returns a check that compares the phrase against a bcrypt hash
// of the configured access phrase. This is a convenience gate for a
// single-operator deployment, not a security boundary.
func SharedSecret(phraseHash string) CredentialCheck {
	return func(phrase string) error {
		if err := bcrypt.CompareHashAndPassword([]byte(phraseHash), []byte(phrase)); err != nil {
			return ErrAccessDenied
		}
		return nil
	}
}

// HashPhrase produces a bcrypt hash suitable for SharedSecret configuration.
func HashPhrase(phrase string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(phrase), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("identity: hash phrase: %w", err)
	}
	return string(h), nil
}

// Gate admits callers into the operator role. On a passing credential check it
// assigns the fixed operator identity and issues a signed session token.
type Gate struct {
	check     CredentialCheck
	operator  Operator
	jwtSecret []byte
	tokenTTL  time.Duration
	now       func() time.Time
}

// NewGate builds a gate around a credential check and the operator identity it
// admits.
func NewGate(check CredentialCheck, op Operator, jwtSecret string) *Gate {
	return &Gate{
		check:     check,
		operator:  op,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  24 * time.Hour,
		now:       time.Now,
	}
}

// WithClock overrides the gate's time source for tests.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Login validates the access phrase and returns the operator identity with a
// session token.
func (g *Gate) Login(phrase string) (Operator, string, error) {
	if err := g.check(phrase); err != nil {
		return Operator{}, "", err
	}

	claims := jwt.MapClaims{
		"owner_id":   g.operator.OwnerID,
		"owner_name": g.operator.Name,
		"exp":        g.now().Add(g.tokenTTL).Unix(),
		"iat":        g.now().Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.jwtSecret)
	if err != nil {
		return Operator{}, "", fmt.Errorf("identity: sign session token: %w", err)
	}

	return g.operator, token, nil
}

// VerifyToken validates a session token and recovers the operator it was
// issued to.
func (g *Gate) VerifyToken(tokenString string) (Operator, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return g.jwtSecret, nil
	}, jwt.WithTimeFunc(func() time.Time { return g.now() }))
	if err != nil || !token.Valid {
		return Operator{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Operator{}, ErrInvalidToken
	}
	ownerID, ok := claims["owner_id"].(string)
	if !ok || ownerID == "" {
		return Operator{}, ErrInvalidToken
	}
	ownerName, _ := claims["owner_name"].(string)

	return Operator{OwnerID: ownerID, Name: ownerName}, nil
}
