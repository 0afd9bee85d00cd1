package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zgpcy/azure-resource-explorer/internal/clock"
)

type server struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

func TestMemory_ExpiresWithClock(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC))
	c := NewMemory(clk)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))

	clk.Advance(time.Minute)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemory_SweepsExpiredWhenFull(t *testing.T) {
	clk := clock.NewManual(time.Now())
	c := NewMemory(clk)
	ctx := context.Background()

	for i := 0; i < MaxMemoryEntries; i++ {
		require.NoError(t, c.Set(ctx, Key("old", string(rune('a'+i%26)), time.Duration(i).String()), []byte("x"), time.Second))
	}
	clk.Advance(2 * time.Second)
	require.NoError(t, c.Set(ctx, "fresh", []byte("y"), time.Minute))

	assert.Equal(t, 1, c.Len())
}

func TestJSONHelpers_RoundTripAndMiss(t *testing.T) {
	c := NewMemory(nil)
	ctx := context.Background()

	var out []server
	hit, err := GetJSON(ctx, c, "servers", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	in := []server{{Name: "sql-prod", Location: "westeurope"}}
	require.NoError(t, SetJSON(ctx, c, "servers", in, time.Minute))

	hit, err = GetJSON(ctx, c, "servers", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, in, out)
}

func TestGetJSON_CorruptValue(t *testing.T) {
	c := NewMemory(nil)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "bad", []byte("{not json"), time.Minute))

	var out []server
	hit, err := GetJSON(ctx, c, "bad", &out)
	assert.Error(t, err)
	assert.False(t, hit)
}

func TestNop_AlwaysMisses(t *testing.T) {
	var c Cache = Nop{}
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "databaseServer:A1:S1", Key("databaseServer", "A1", "S1"))
	assert.Equal(t, "", Key())
}

func TestRedis_GetSetExpire(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	c, err := NewRedis(ctx, mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	_, err = c.Get(ctx, "servers")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, SetJSON(ctx, c, "servers", []server{{Name: "sql-prod"}}, time.Minute))
	assert.True(t, mr.Exists(DefaultRedisPrefix+"servers"), "keys are namespaced")

	var out []server
	hit, err := GetJSON(ctx, c, "servers", &out)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, "sql-prod", out[0].Name)

	mr.FastForward(2 * time.Minute)
	_, err = c.Get(ctx, "servers")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestNewRedis_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = NewRedis(ctx, addr, "", 0)
	assert.Error(t, err)
}
