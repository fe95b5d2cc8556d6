package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyport/keyport/internal/model"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewFromClient(client), mr
}

func testCeremony(id string) *model.Ceremony {
	return &model.Ceremony{
		ID:          id,
		Kind:        model.CeremonyRegistration,
		Email:       "ada@example.com",
		Challenge:   "Y2hhbGxlbmdl",
		SessionData: json.RawMessage(`{"challenge":"Y2hhbGxlbmdl"}`),
	}
}

func TestCeremony_PutTake(t *testing.T) {
	t.Parallel()

	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.PutCeremony(ctx, testCeremony("01HZX"), time.Minute))
	assert.True(t, mr.Exists("keyport:ceremony:01HZX"))
	assert.Equal(t, time.Minute, mr.TTL("keyport:ceremony:01HZX"))

	got, err := c.TakeCeremony(ctx, "01HZX")
	require.NoError(t, err)
	assert.Equal(t, model.CeremonyRegistration, got.Kind)
	assert.Equal(t, "ada@example.com", got.Email)
	assert.JSONEq(t, `{"challenge":"Y2hhbGxlbmdl"}`, string(got.SessionData))

	_, err = c.TakeCeremony(ctx, "01HZX")
	assert.ErrorIs(t, err, ErrCeremonyNotFound, "a ceremony can only be taken once")
}

func TestCeremony_Expires(t *testing.T) {
	t.Parallel()

	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.PutCeremony(ctx, testCeremony("01HZY"), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := c.TakeCeremony(ctx, "01HZY")
	assert.ErrorIs(t, err, ErrCeremonyNotFound)
}

func TestCeremony_ExpiredDeadline(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t)
	ctx := context.Background()

	ceremony := testCeremony("01HZZ")
	ceremony.ExpiresAt = time.Now().Add(-time.Second)
	require.NoError(t, c.PutCeremony(ctx, ceremony, time.Minute))

	_, err := c.TakeCeremony(ctx, "01HZZ")
	assert.ErrorIs(t, err, ErrCeremonyNotFound)
}

func TestCeremony_DuplicateID(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.PutCeremony(ctx, testCeremony("dup"), time.Minute))
	assert.Error(t, c.PutCeremony(ctx, testCeremony("dup"), time.Minute))
	assert.Error(t, c.PutCeremony(ctx, &model.Ceremony{}, time.Minute))
}

func TestCeremony_Corrupted(t *testing.T) {
	t.Parallel()

	c, mr := newTestCache(t)
	require.NoError(t, mr.Set("keyport:ceremony:bad", "{not json"))

	_, err := c.TakeCeremony(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrCeremonyNotFound)
}

func TestAccounts(t *testing.T) {
	t.Parallel()

	c, mr := newTestCache(t)
	ctx := context.Background()

	got, err := c.GetAccounts(ctx, "org-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, c.SetAccounts(ctx, "org-1", []string{"0xabc", "0xdef"}))
	assert.Equal(t, AccountsCacheTTL, mr.TTL("keyport:accounts:org-1"))

	got, err = c.GetAccounts(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"0xabc", "0xdef"}, got)

	mr.FastForward(AccountsCacheTTL)
	got, _ = c.GetAccounts(ctx, "org-1")
	assert.Nil(t, got, "entries expire")
}

func TestAllow_Burst(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t)
	ctx := context.Background()
	fixed := time.UnixMilli(1700000000000)
	c.now = func() time.Time { return fixed }
	limit := PerSecond(1, 3)

	for i := 0; i < 3; i++ {
		res, err := c.Allow(ctx, LimitScopeAuth, "203.0.113.7", limit)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d should be allowed", i)
		assert.Equal(t, int64(2-i), res.Remaining)
	}

	res, err := c.Allow(ctx, LimitScopeAuth, "203.0.113.7", limit)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, time.Second, res.RetryAfter)

	other, err := c.Allow(ctx, LimitScopeAuth, "203.0.113.8", limit)
	require.NoError(t, err)
	assert.True(t, other.Allowed, "limits are per IP")
}

func TestAllow_Refills(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t)
	ctx := context.Background()
	now := time.UnixMilli(1700000000000)
	c.now = func() time.Time { return now }
	limit := PerMinute(60, 1)

	res, err := c.Allow(ctx, LimitScopeRPC, "user-1", limit)
	require.NoError(t, err)
	require.True(t, res.Allowed)
	assert.Equal(t, now.Add(time.Second), res.ResetAt)

	res, err = c.Allow(ctx, LimitScopeRPC, "user-1", limit)
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	now = now.Add(time.Second)
	res, err = c.Allow(ctx, LimitScopeRPC, "user-1", limit)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "one interval later the slot is back")
}

func TestAllow_ScopesAreIndependent(t *testing.T) {
	t.Parallel()

	c, mr := newTestCache(t)
	ctx := context.Background()
	limit := PerSecond(1, 1)

	res, err := c.Allow(ctx, LimitScopeAuth, "same", limit)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = c.Allow(ctx, LimitScopeRPC, "same", limit)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	keys := mr.Keys()
	assert.Len(t, keys, 2)
	for _, k := range keys {
		assert.NotContains(t, k, "same", "subjects are stored hashed")
	}
}

func TestAllow_Unlimited(t *testing.T) {
	t.Parallel()

	c, mr := newTestCache(t)
	res, err := c.Allow(context.Background(), LimitScopeRPC, "user-1", PerMinute(0, 10))
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Empty(t, mr.Keys())
}

func TestAllow_RedisDown(t *testing.T) {
	t.Parallel()

	c, mr := newTestCache(t)
	mr.Close()

	_, err := c.Allow(context.Background(), LimitScopeRPC, "user-1", PerMinute(60, 1))
	assert.Error(t, err)
}
