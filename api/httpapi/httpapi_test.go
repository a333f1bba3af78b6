package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mem "ratekit/adapters/memory"
	"ratekit/analytics"
	"ratekit/core"
	"ratekit/engine"
	"ratekit/integrations/storelink"
)

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	reg     *engine.Registry
	funnel  *analytics.Funnel
	handler http.Handler
	now     time.Time
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	env := &testEnv{now: t0, funnel: analytics.NewFunnel()}
	bus := engine.NewEventBus(engine.DispatchSync)
	t.Cleanup(bus.Close)
	bus.SubscribeAll(func(_ context.Context, e core.Event) { env.funnel.OnEvent(e) })
	cfg := core.DefaultPromptConfig()
	cfg.MinInstallDays, cfg.MinLaunches = 7, 3
	env.reg = engine.NewRegistry(mem.New(), bus, engine.Options{
		AppID:  "com.example.notes",
		Config: &cfg,
		Now:    func() time.Time { return env.now },
	})
	if opts.PathPrefix == "" {
		opts.PathPrefix = "/api"
	}
	opts.AppID = "com.example.notes"
	opts.Store = storelink.GooglePlay
	opts.Funnel = env.funnel
	env.handler = NewMux(env.reg, nil, opts)
	return env
}

func (env *testEnv) do(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestCreateInstall(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodPost, "/api/installs")
	require.Equal(t, http.StatusCreated, rec.Code)
	st := decode[InstallState](t, rec)
	assert.Len(t, string(st.InstallID), 36)
	assert.Equal(t, "/api/installs/"+string(st.InstallID), rec.Header().Get("Location"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, 1, env.reg.Len())

	rec = env.do(t, http.MethodGet, "/api/installs")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSessionsAccrueUntilPrompt(t *testing.T) {
	env := newTestEnv(t, Options{})

	for i := 1; i <= 3; i++ {
		rec := env.do(t, http.MethodPost, "/api/installs/dev-1/sessions")
		require.Equal(t, http.StatusOK, rec.Code)
		st := decode[InstallState](t, rec)
		assert.Equal(t, int64(i), st.LaunchCount)
		assert.Equal(t, i == 3, st.ShouldPrompt)
		require.NotNil(t, st.InstallDate)
		assert.True(t, t0.Equal(*st.InstallDate))
	}

	rec := env.do(t, http.MethodPost, "/api/installs/dev-1/prompt")
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[PromptResponse](t, rec)
	assert.True(t, p.Shown)
	require.NotNil(t, p.Dialog)
	assert.Equal(t, core.DefaultRateButton, p.Dialog.RateButton)
	assert.Equal(t, int64(1), env.funnel.Snapshot().Totals.Shown)
}

func TestPromptNotDue(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.do(t, http.MethodPost, "/api/installs/dev-1/sessions")

	p := decode[PromptResponse](t, env.do(t, http.MethodPost, "/api/installs/dev-1/prompt"))
	assert.False(t, p.Shown)
	assert.Nil(t, p.Dialog)

	p = decode[PromptResponse](t, env.do(t, http.MethodPost, "/api/installs/dev-1/prompt?force=true"))
	assert.True(t, p.Shown)
}

func TestDayCriterion(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.do(t, http.MethodPost, "/api/installs/dev-1/sessions")

	env.now = t0.Add(7 * core.Day)
	st := decode[InstallState](t, env.do(t, http.MethodGet, "/api/installs/dev-1"))
	assert.True(t, st.ShouldPrompt)
}

func TestChoices(t *testing.T) {
	env := newTestEnv(t, Options{})
	for i := 0; i < 3; i++ {
		env.do(t, http.MethodPost, "/api/installs/dev-1/sessions")
		env.do(t, http.MethodPost, "/api/installs/dev-2/sessions")
	}

	st := decode[InstallState](t, env.do(t, http.MethodPost, "/api/installs/dev-1/choices/accept"))
	assert.True(t, st.OptedOut)
	assert.False(t, st.ShouldPrompt)
	assert.Equal(t, "https://play.google.com/store/apps/details?id=com.example.notes", st.ListingURL)

	st = decode[InstallState](t, env.do(t, http.MethodPost, "/api/installs/dev-2/choices/defer"))
	assert.False(t, st.OptedOut)
	assert.Equal(t, int64(0), st.LaunchCount)
	assert.Nil(t, st.InstallDate)
	assert.Empty(t, st.ListingURL)

	rec := env.do(t, http.MethodPost, "/api/installs/dev-2/choices/maybe")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_choice", decode[apiError](t, rec).Code)

	totals := env.funnel.Snapshot().Totals
	assert.Equal(t, int64(1), totals.Accepted)
	assert.Equal(t, int64(1), totals.Deferred)
}

func TestInstallIDsAreNormalized(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.do(t, http.MethodPost, "/api/installs/Dev-1/sessions")
	st := decode[InstallState](t, env.do(t, http.MethodGet, "/api/installs/dev-1"))
	assert.Equal(t, core.InstallID("dev-1"), st.InstallID)
	assert.Equal(t, int64(1), st.LaunchCount)

	rec := env.do(t, http.MethodGet, "/api/installs/bad%21id")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownInstallIsNotCached(t *testing.T) {
	env := newTestEnv(t, Options{})

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/installs/ghost-1"},
		{http.MethodPost, "/api/installs/ghost-2/prompt"},
		{http.MethodPost, "/api/installs/ghost-3/choices/accept"},
	} {
		rec := env.do(t, tc.method, tc.path)
		assert.Equal(t, http.StatusNotFound, rec.Code, tc.path)
		assert.Equal(t, "unknown_install", decode[apiError](t, rec).Code, tc.path)
	}
	assert.Equal(t, 0, env.reg.Len())
	assert.Zero(t, env.funnel.Snapshot().Totals.Accepted)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/installs/ghost-1/sessions").Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/installs/ghost-1").Code)
	assert.Equal(t, 1, env.reg.Len())
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, Options{})
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/api/installs/dev-1").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/installs/dev-1/other").Code)
}

func TestHealthAndStats(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodGet, "/api/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[map[string]any](t, rec)["status"])

	env.do(t, http.MethodPost, "/api/installs/dev-1/sessions")
	snap := decode[analytics.Snapshot](t, env.do(t, http.MethodGet, "/api/stats"))
	assert.Equal(t, int64(1), snap.Totals.Sessions)
}

func TestAPIKeyAuth(t *testing.T) {
	env := newTestEnv(t, Options{
		APIKeys:         []string{"secret"},
		AllowCORSOrigin: "*",
	})

	rec := env.do(t, http.MethodGet, "/api/installs/dev-1")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/installs/dev-1", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, Options{
		APIKeys:          []string{"k"},
		RateLimitEnabled: true,
		RateLimitRPM:     1,
		RateLimitBurst:   1,
	})

	send := func() int {
		req := httptest.NewRequest(http.MethodGet, "/api/installs/dev-1", nil)
		req.Header.Set("X-API-Key", "k")
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusTooManyRequests, send())
}

func TestRateLimiterRefills(t *testing.T) {
	l := newRateLimiter(60, 1)
	now := t0
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))
	assert.True(t, l.allow("b"))

	now = now.Add(time.Second)
	assert.True(t, l.allow("a"))
}
