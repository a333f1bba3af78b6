package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"ratekit/core"
)

func TestHubSubscribeBroadcastUnsubscribe(t *testing.T) {
	h := NewHub()
	id, ch := h.Subscribe(1)

	ev := core.NewEvent(core.EventPromptShown, time.Now(), core.UsageState{InstallID: "bob", LaunchCount: 10})
	h.Broadcast(context.Background(), ev)

	received := <-ch
	if received.InstallID != "bob" || received.Type != core.EventPromptShown {
		t.Fatalf("unexpected event: %+v", received)
	}

	h.Unsubscribe(id)
	_, ok := <-ch
	if ok {
		t.Fatal("expected channel closed after unsubscribe")
	}
	if h.Len() != 0 {
		t.Fatal("expected no subscribers")
	}
}

func TestHubFilter(t *testing.T) {
	h := NewHub()
	_, ch := h.SubscribeFiltered(2, ForInstall("alice"))

	h.Broadcast(context.Background(), core.NewEvent(core.EventSessionStarted, time.Now(), core.UsageState{InstallID: "bob"}))
	h.Broadcast(context.Background(), core.NewEvent(core.EventSessionStarted, time.Now(), core.UsageState{InstallID: "alice"}))

	select {
	case ev := <-ch:
		if ev.InstallID != "alice" {
			t.Fatalf("filter leaked %s", ev.InstallID)
		}
	default:
		t.Fatal("expected alice event")
	}
	select {
	case ev := <-ch:
		t.Fatalf("unexpected extra event %+v", ev)
	default:
	}
}

func TestMarshalJSON(t *testing.T) {
	ev := core.NewEvent(core.EventPromptAccepted, time.Now(), core.UsageState{InstallID: "alice", OptedOut: true})
	b := MarshalJSON(ev)
	var out core.Event
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out.OptedOut || out.Type != core.EventPromptAccepted {
		t.Fatalf("unexpected event: %+v", out)
	}
}
