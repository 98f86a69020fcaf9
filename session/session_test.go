package session

import (
	"context"
	"testing"
	"time"

	"attendance-server-go/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextMidnight(t *testing.T) {
	loc := time.FixedZone("PHT", 8*3600)
	now := time.Date(2026, 3, 2, 23, 59, 0, 0, loc)

	assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, loc), NextMidnight(now, loc))

	exact := time.Date(2026, 3, 3, 0, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 3, 4, 0, 0, 0, 0, loc), NextMidnight(exact, loc))

	// 2026-03-02 20:00 UTC is already 04:00 on the 3rd in PHT.
	utc := time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 4, 0, 0, 0, 0, loc), NextMidnight(utc, loc))
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	loc := time.UTC
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, loc)

	s := NewHostSession(models.Host{ID: "H1", Name: "Room 101"}, now, loc)
	require.NoError(t, store.SaveSession(ctx, s))

	got, err := Resolve(ctx, store, s.Token, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "H1", got.CurrentHost().ID)

	_, err = Resolve(ctx, store, s.Token, now.Add(15*time.Hour))
	assert.ErrorIs(t, err, ErrSessionExpired)

	_, err = Resolve(ctx, store, "nope", now)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = Resolve(ctx, store, "", now)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, store.DeleteSession(ctx, s.Token))
	_, err = Resolve(ctx, store, s.Token, now)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
