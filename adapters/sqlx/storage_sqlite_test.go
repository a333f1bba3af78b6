package sqlx_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storage "ratekit/adapters/sqlx"
	"ratekit/core"
	"ratekit/engine"
)

func newSQLiteStore(t *testing.T) *storage.Store {
	t.Helper()
	cfg := storage.DefaultConfig(storage.DriverSQLite)
	cfg.DSN = "file:" + t.Name() + "?mode=memory&cache=shared"
	s, err := storage.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLite_RoundTrip(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.Commit(ctx, core.NewBatch().PutInt64("a", 7).PutBool("b", true)))
	require.NoError(t, s.Commit(ctx, core.NewBatch().PutInt64("a", 8)))

	v, ok, err := s.GetInt64(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(8), v)

	b, ok, err := s.GetBool(ctx, "b")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, b)

	require.NoError(t, s.Commit(ctx, core.NewBatch().Remove("a")))
	_, ok, err = s.GetInt64(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLite_EngineSessions(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	bus := engine.NewEventBus(engine.DispatchSync)
	defer bus.Close()
	e := engine.NewEngine(s, bus, engine.Options{Now: func() time.Time { return now }})

	for i := 0; i < 3; i++ {
		e.OnSessionStart(ctx)
	}
	st := e.State()
	assert.Equal(t, int64(3), st.LaunchCount)
	assert.True(t, now.Equal(st.InstallDate))

	e.Decline(ctx)
	reloaded := engine.NewEngine(s, bus, engine.Options{})
	assert.True(t, reloaded.Load(ctx).OptedOut)
	assert.False(t, reloaded.ShouldPrompt())
}
