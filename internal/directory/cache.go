// Package directory caches staff and patient lookups for the short span of a
// conferencing session, when the same identities are resolved on every launch.
package directory

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/example/telehealth-gateway/internal/persistence"
)

const (
	DefaultSize = 256
	DefaultTTL  = 30 * time.Second
)

// UserSource is the uncached staff lookup.
type UserSource interface {
	GetUserByUsername(ctx context.Context, username string) (persistence.User, error)
}

// PatientSource is the uncached patient lookup.
type PatientSource interface {
	GetPatient(ctx context.Context, id string) (persistence.Patient, error)
}

// Users caches successful staff lookups. Misses and errors are never cached,
// so a newly created account becomes visible immediately.
type Users struct {
	source UserSource
	cache  *expirable.LRU[string, persistence.User]
}

// NewUsers wraps source with a cache of at most size entries living for ttl.
func NewUsers(source UserSource, size int, ttl time.Duration) *Users {
	size, ttl = normalize(size, ttl)
	return &Users{source: source, cache: expirable.NewLRU[string, persistence.User](size, nil, ttl)}
}

// GetUserByUsername returns the user, consulting the cache first.
func (u *Users) GetUserByUsername(ctx context.Context, username string) (persistence.User, error) {
	key := strings.TrimSpace(username)
	if user, ok := u.cache.Get(key); ok {
		return user, nil
	}
	user, err := u.source.GetUserByUsername(ctx, key)
	if err != nil {
		return persistence.User{}, err
	}
	u.cache.Add(key, user)
	return user, nil
}

// Patients caches successful patient lookups.
type Patients struct {
	source PatientSource
	cache  *expirable.LRU[string, persistence.Patient]
}

// NewPatients wraps source with a cache of at most size entries living for ttl.
func NewPatients(source PatientSource, size int, ttl time.Duration) *Patients {
	size, ttl = normalize(size, ttl)
	return &Patients{source: source, cache: expirable.NewLRU[string, persistence.Patient](size, nil, ttl)}
}

// GetPatient returns the patient, consulting the cache first.
func (p *Patients) GetPatient(ctx context.Context, id string) (persistence.Patient, error) {
	key := strings.TrimSpace(id)
	if patient, ok := p.cache.Get(key); ok {
		return patient, nil
	}
	patient, err := p.source.GetPatient(ctx, key)
	if err != nil {
		return persistence.Patient{}, err
	}
	p.cache.Add(key, patient)
	return patient, nil
}

func normalize(size int, ttl time.Duration) (int, time.Duration) {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return size, ttl
}
