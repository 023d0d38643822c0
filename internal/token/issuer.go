// Package token issues the signed room credentials accepted by Jitsi Meet.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultTTL is the credential lifetime used when none is configured.
	DefaultTTL = 2 * time.Hour

	audience = "jitsi"
	subject  = "*"
)

var (
	// ErrMissingSecret is returned when an issuer is built without a signing secret.
	ErrMissingSecret = errors.New("token: signing secret is not configured")
	// ErrMissingAppID is returned when an issuer is built without an application id.
	ErrMissingAppID = errors.New("token: application id is not configured")
	// ErrMissingRoom is returned when a grant does not name a room.
	ErrMissingRoom = errors.New("token: room is required")
)

// Grant describes who the credential is for.
type Grant struct {
	Room        string
	DisplayName string
	Email       string
	Moderator   bool
}

// UserContext is the context.user block understood by the conferencing server.
type UserContext struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Moderator   string `json:"moderator"`
	Affiliation string `json:"affiliation"`
}

// Features is the context.features block. Values are the strings "true" or "false".
type Features struct {
	Recording     string `json:"recording"`
	Livestreaming string `json:"livestreaming"`
	ScreenSharing string `json:"screen-sharing"`
}

// Context groups the user and features blocks.
type Context struct {
	User     UserContext `json:"user"`
	Features Features    `json:"features"`
}

// Claims is the payload of a room credential. The audience is serialised as a
// plain string, which is what the conferencing server expects.
type Claims struct {
	Issuer    string           `json:"iss"`
	Subject   string           `json:"sub"`
	Audience  string           `json:"aud"`
	IssuedAt  *jwt.NumericDate `json:"iat"`
	NotBefore *jwt.NumericDate `json:"nbf"`
	ExpiresAt *jwt.NumericDate `json:"exp"`
	Room      string           `json:"room"`
	Context   Context          `json:"context"`
}

func (c Claims) GetExpirationTime() (*jwt.NumericDate, error) { return c.ExpiresAt, nil }
func (c Claims) GetIssuedAt() (*jwt.NumericDate, error)       { return c.IssuedAt, nil }
func (c Claims) GetNotBefore() (*jwt.NumericDate, error)      { return c.NotBefore, nil }
func (c Claims) GetIssuer() (string, error)                   { return c.Issuer, nil }
func (c Claims) GetSubject() (string, error)                  { return c.Subject, nil }
func (c Claims) GetAudience() (jwt.ClaimStrings, error) {
	if c.Audience == "" {
		return nil, nil
	}
	return jwt.ClaimStrings{c.Audience}, nil
}

// Issuer signs room credentials with HS256.
type Issuer struct {
	appID  string
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option customises an Issuer.
type Option func(*Issuer)

// WithTTL overrides the credential lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(i *Issuer) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

// NewIssuer validates the signing configuration up front so that a
// misconfigured deployment fails before any credential is requested.
func NewIssuer(appID, secret string, opts ...Option) (*Issuer, error) {
	appID = strings.TrimSpace(appID)
	if appID == "" {
		return nil, ErrMissingAppID
	}
	if secret == "" {
		return nil, ErrMissingSecret
	}

	issuer := &Issuer{
		appID:  appID,
		secret: []byte(secret),
		ttl:    DefaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(issuer)
	}
	return issuer, nil
}

// Issue returns a compact HS256 token for grant. Identical grants issued at
// the same instant produce identical tokens.
func (i *Issuer) Issue(grant Grant) (string, error) {
	if i == nil {
		return "", ErrMissingSecret
	}
	room := strings.TrimSpace(grant.Room)
	if room == "" {
		return "", ErrMissingRoom
	}

	claims := i.claimsFor(grant, room)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

func (i *Issuer) claimsFor(grant Grant, room string) Claims {
	issuedAt := i.now().Truncate(time.Second)

	affiliation := "member"
	if grant.Moderator {
		affiliation = "owner"
	}

	return Claims{
		Issuer:    i.appID,
		Subject:   subject,
		Audience:  audience,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		NotBefore: jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(i.ttl)),
		Room:      room,
		Context: Context{
			User: UserContext{
				Name:        grant.DisplayName,
				Email:       grant.Email,
				Moderator:   boolString(grant.Moderator),
				Affiliation: affiliation,
			},
			Features: Features{
				Recording:     boolString(grant.Moderator),
				Livestreaming: boolString(false),
				ScreenSharing: boolString(grant.Moderator),
			},
		},
	}
}

// Verify parses and validates a credential signed by this issuer.
func (i *Issuer) Verify(raw string) (Claims, error) {
	if i == nil {
		return Claims{}, ErrMissingSecret
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithIssuer(i.appID),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("token: verify: %w", err)
	}
	return claims, nil
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
