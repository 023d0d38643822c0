package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/telehealth-gateway/internal/persistence"
)

type countingUsers struct {
	calls int
	users map[string]persistence.User
	err   error
}

func (c *countingUsers) GetUserByUsername(ctx context.Context, username string) (persistence.User, error) {
	c.calls++
	if c.err != nil {
		return persistence.User{}, c.err
	}
	user, ok := c.users[username]
	if !ok {
		return persistence.User{}, persistence.ErrNotFound
	}
	return user, nil
}

type countingPatients struct {
	calls    int
	patients map[string]persistence.Patient
}

func (c *countingPatients) GetPatient(ctx context.Context, id string) (persistence.Patient, error) {
	c.calls++
	patient, ok := c.patients[id]
	if !ok {
		return persistence.Patient{}, persistence.ErrNotFound
	}
	return patient, nil
}

func TestUsers_CachesHits(t *testing.T) {
	t.Parallel()

	source := &countingUsers{users: map[string]persistence.User{"drsmith": {ID: "7", Username: "drsmith"}}}
	users := NewUsers(source, 4, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		user, err := users.GetUserByUsername(ctx, " drsmith ")
		require.NoError(t, err)
		assert.Equal(t, "7", user.ID)
	}
	assert.Equal(t, 1, source.calls)
}

func TestUsers_DoesNotCacheMisses(t *testing.T) {
	t.Parallel()

	source := &countingUsers{users: map[string]persistence.User{}}
	users := NewUsers(source, 0, 0)
	ctx := context.Background()

	_, err := users.GetUserByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	source.users["ghost"] = persistence.User{ID: "9", Username: "ghost"}
	user, err := users.GetUserByUsername(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, "9", user.ID)

	source.err = errors.New("down")
	_, err = users.GetUserByUsername(ctx, "drsmith")
	assert.Error(t, err)
	source.err = nil
	_, err = users.GetUserByUsername(ctx, "drsmith")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
	assert.Equal(t, 4, source.calls)
}

func TestUsers_EntriesExpire(t *testing.T) {
	t.Parallel()

	source := &countingUsers{users: map[string]persistence.User{"drsmith": {ID: "7"}}}
	users := NewUsers(source, 4, 20*time.Millisecond)
	ctx := context.Background()

	_, err := users.GetUserByUsername(ctx, "drsmith")
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)

	_, err = users.GetUserByUsername(ctx, "drsmith")
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
}

func TestPatients_CachesHits(t *testing.T) {
	t.Parallel()

	source := &countingPatients{patients: map[string]persistence.Patient{"5": {ID: "5", FirstName: "Luis"}}}
	patients := NewPatients(source, 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		patient, err := patients.GetPatient(ctx, "5")
		require.NoError(t, err)
		assert.Equal(t, "Luis", patient.FirstName)
	}
	assert.Equal(t, 1, source.calls)

	_, err := patients.GetPatient(ctx, "404")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}
