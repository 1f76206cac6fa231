package redisclient

import (
	"context"
	"os"
	"testing"
	"time"

	"scooter-shop/internal/auth"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	client, err := NewClient(addr, "", 0)
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	sessions := client.Sessions("test:session:" + uuid.NewString() + ":")

	session := &auth.Session{
		Token:         uuid.NewString(),
		Authenticated: true,
		ExpiresAt:     time.Now().Add(time.Minute).UTC().Truncate(time.Second),
	}
	require.NoError(t, sessions.Save(ctx, session))

	got, err := sessions.Get(ctx, session.Token)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Authenticated)
	assert.True(t, session.ExpiresAt.Equal(got.ExpiresAt))

	ttl, err := client.GetClient().TTL(ctx, sessions.key(session.Token)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, sessions.Delete(ctx, session.Token))
	got, err = sessions.Get(ctx, session.Token)
	require.NoError(t, err)
	assert.Nil(t, got)
}
