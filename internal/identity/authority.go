// Package identity verifies the identity tokens presented by staff and portal
// sessions and checks request forgery tokens derived from the same secret.
package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

// Kind identifies which login surface issued a token.
type Kind string

const (
	KindStaff  Kind = "staff"
	KindPortal Kind = "portal"
)

const (
	issuerName = "telehealth-host"
	csrfInfo   = "telehealth csrf v1"
)

var (
	// ErrMissingSecret is returned when the authority is built without a secret.
	ErrMissingSecret = errors.New("identity: secret is not configured")
	// ErrInvalidToken is returned for any token that fails verification.
	ErrInvalidToken = errors.New("identity: invalid token")
	// ErrInvalidSubject is returned when minting for an empty subject or unknown kind.
	ErrInvalidSubject = errors.New("identity: invalid subject")
)

// Subject is a verified caller.
type Subject struct {
	Kind Kind
	// ID is the staff username for KindStaff and the patient id for KindPortal.
	ID string
}

type claims struct {
	Kind Kind `json:"kind"`
	jwt.RegisteredClaims
}

// Authority mints and verifies identity tokens and forgery tokens.
type Authority struct {
	secret  []byte
	csrfKey []byte
	now     func() time.Time
}

// NewAuthority derives the forgery-token key from secret with HKDF-SHA256.
func NewAuthority(secret string, now func() time.Time) (*Authority, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}
	if now == nil {
		now = time.Now
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(csrfInfo)), key); err != nil {
		return nil, fmt.Errorf("identity: derive csrf key: %w", err)
	}

	return &Authority{secret: []byte(secret), csrfKey: key, now: now}, nil
}

// Mint issues an identity token. Hosts normally do this at login; the
// service exposes it for operators and tests.
func (a *Authority) Mint(subject Subject, ttl time.Duration) (string, error) {
	id := strings.TrimSpace(subject.ID)
	if id == "" || (subject.Kind != KindStaff && subject.Kind != KindPortal) {
		return "", ErrInvalidSubject
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	issuedAt := a.now()
	c := claims{
		Kind: subject.Kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuerName,
			Subject:   id,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(a.secret)
}

// Verify validates raw and returns the subject it names.
func (a *Authority) Verify(raw string) (Subject, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Subject{}, ErrInvalidToken
	}

	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuerName),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return Subject{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.Subject == "" || (c.Kind != KindStaff && c.Kind != KindPortal) {
		return Subject{}, ErrInvalidToken
	}
	return Subject{Kind: c.Kind, ID: c.Subject}, nil
}

// CSRFToken returns the forgery token bound to subject.
func (a *Authority) CSRFToken(subject Subject) string {
	mac := hmac.New(sha256.New, a.csrfKey)
	mac.Write([]byte(string(subject.Kind) + ":" + subject.ID))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyCSRF reports whether token was issued for subject.
func (a *Authority) VerifyCSRF(subject Subject, token string) bool {
	token = strings.TrimSpace(token)
	if a == nil || token == "" {
		return false
	}
	return hmac.Equal([]byte(token), []byte(a.CSRFToken(subject)))
}
