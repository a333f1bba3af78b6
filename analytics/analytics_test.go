package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ratekit/core"
)

func event(typ core.EventType, id core.InstallID, at time.Time) core.Event {
	return core.NewEvent(typ, at, core.UsageState{InstallID: id})
}

func TestFunnelCounts(t *testing.T) {
	f := NewFunnel()
	day1 := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)

	f.OnEvent(event(core.EventSessionStarted, "a", day1))
	f.OnEvent(event(core.EventSessionStarted, "a", day1))
	f.OnEvent(event(core.EventSessionStarted, "b", day1))
	f.OnEvent(event(core.EventPromptShown, "a", day1))
	f.OnEvent(event(core.EventPromptAccepted, "a", day1))
	f.OnEvent(event(core.EventPromptShown, "b", day2))
	f.OnEvent(event(core.EventPromptDeferred, "b", day2))
	f.OnEvent(event(core.EventPromptDismissed, "b", day2))
	f.OnEvent(event(core.EventPromptDeclined, "b", day2))

	d1 := f.Day("2024-06-01")
	assert.Equal(t, int64(3), d1.Sessions)
	assert.Equal(t, 2, d1.Installs)
	assert.Equal(t, 1.0, d1.AcceptRate())

	snap := f.Snapshot()
	require.Len(t, snap.Days, 2)
	assert.Equal(t, "2024-06-01", snap.Days[0].Day)
	assert.Equal(t, int64(2), snap.Totals.Shown)
	assert.Equal(t, int64(1), snap.Totals.Declined)
	assert.Equal(t, int64(1), snap.Totals.Deferred)
	assert.Equal(t, int64(1), snap.Totals.Dismissed)
	assert.Equal(t, 0.0, f.Day("2020-01-01").AcceptRate())
}

func TestBridgeFansOut(t *testing.T) {
	a, b := NewFunnel(), NewFunnel()
	bridge := NewBridge(a, b)
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	bridge.OnEvent(event(core.EventPromptShown, "x", at))
	assert.Equal(t, int64(1), a.Day("2024-06-01").Shown)
	assert.Equal(t, int64(1), b.Day("2024-06-01").Shown)
}

func TestHTTPExporter(t *testing.T) {
	var got Snapshot
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
	}))
	defer srv.Close()

	f := NewFunnel()
	f.OnEvent(event(core.EventPromptShown, "x", time.Now()))
	require.NoError(t, NewHTTPExporter(srv.URL, "k").Export(context.Background(), f.Snapshot()))
	assert.Equal(t, int64(1), got.Totals.Shown)

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer failing.Close()
	assert.Error(t, NewHTTPExporter(failing.URL, "").Export(context.Background(), f.Snapshot()))
}

func TestWriterExporter(t *testing.T) {
	var buf bytes.Buffer
	f := NewFunnel()
	f.OnEvent(event(core.EventSessionStarted, "x", time.Now()))
	require.NoError(t, NewWriterExporter(&buf).Export(context.Background(), f.Snapshot()))

	var snap Snapshot
	require.NoError(t, json.Unmarshal(buf.Bytes(), &snap))
	assert.Equal(t, int64(1), snap.Totals.Sessions)
}
