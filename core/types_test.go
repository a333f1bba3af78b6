package core

import (
	"math"
	"testing"
	"time"
)

func TestNextLaunch(t *testing.T) {
	if v, err := NextLaunch(9); err != nil || v != 10 {
		t.Fatalf("got %v %v", v, err)
	}
	if v, err := NextLaunch(-3); err != nil || v != 1 {
		t.Fatalf("negative counter should restart at 1, got %v %v", v, err)
	}
	if _, err := NextLaunch(math.MaxInt64); err == nil {
		t.Fatalf("expected overflow")
	}
}

func TestNormalizeInstallID(t *testing.T) {
	id, err := NormalizeInstallID(" Device-42 ")
	if err != nil || id != "device-42" {
		t.Fatalf("got %v %v", id, err)
	}
	if _, err := NormalizeInstallID("   "); err == nil {
		t.Fatalf("expected empty error")
	}
	if _, err := NormalizeInstallID("a b"); err == nil {
		t.Fatalf("expected invalid error")
	}
}

func TestUnixMillisRoundTrip(t *testing.T) {
	if UnixMillis(time.Time{}) != 0 {
		t.Fatal("zero time should map to 0")
	}
	if !FromUnixMillis(0).IsZero() {
		t.Fatal("0 should map to zero time")
	}
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if got := FromUnixMillis(UnixMillis(now)); !got.Equal(now) {
		t.Fatalf("got %v", got)
	}
}

func TestPromptConfigText(t *testing.T) {
	txt := DefaultPromptConfig().Text()
	if txt.RateButton != DefaultRateButton || txt.RateButton == txt.Message {
		t.Fatalf("rate button should use its own default, got %q", txt.RateButton)
	}
	cfg := DefaultPromptConfig()
	cfg.Title = String("Enjoying it?")
	cfg.LaterButton = String("")
	txt = cfg.Text()
	if txt.Title != "Enjoying it?" {
		t.Fatalf("title override ignored: %q", txt.Title)
	}
	if txt.LaterButton != "" {
		t.Fatalf("explicit empty label should be kept, got %q", txt.LaterButton)
	}
	if txt.NoThanksButton != DefaultNoThanksButton {
		t.Fatalf("unexpected no thanks label %q", txt.NoThanksButton)
	}
}

func TestBatch(t *testing.T) {
	b := NewBatch().PutInt64("a", 1).PutBool("b", true).Remove("c")
	if b.Len() != 3 {
		t.Fatalf("want 3 got %d", b.Len())
	}
	muts := b.Mutations()
	muts[0].Key = "changed"
	if b.Mutations()[0].Key != "a" {
		t.Fatal("Mutations must return a copy")
	}
	if !b.Mutations()[2].Remove {
		t.Fatal("expected remove mutation")
	}
	var nilBatch *Batch
	if nilBatch.Len() != 0 || nilBatch.Mutations() != nil {
		t.Fatal("nil batch should be empty")
	}
}
