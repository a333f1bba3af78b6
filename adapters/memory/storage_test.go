package memory

import (
	"context"
	"testing"

	"ratekit/core"
)

func TestMemoryStore(t *testing.T) {
	s := New()
	ctx := context.Background()
	if _, ok, err := s.GetInt64(ctx, "n"); ok || err != nil {
		t.Fatalf("expected absent, got ok=%v err=%v", ok, err)
	}
	if err := s.Commit(ctx, core.NewBatch().PutInt64("n", 5).PutBool("b", true)); err != nil {
		t.Fatal(err)
	}
	n, ok, err := s.GetInt64(ctx, "n")
	if err != nil || !ok || n != 5 {
		t.Fatalf("got %v %v %v", n, ok, err)
	}
	b, ok, err := s.GetBool(ctx, "b")
	if err != nil || !ok || !b {
		t.Fatalf("got %v %v %v", b, ok, err)
	}
	if err := s.Commit(ctx, core.NewBatch().Remove("n")); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.GetInt64(ctx, "n"); ok {
		t.Fatal("n should be removed")
	}
}

func TestMemoryStoreTypeMismatchAndWipe(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.Commit(ctx, core.NewBatch().PutInt64("n", 1)); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.GetBool(ctx, "n"); err == nil {
		t.Fatal("expected type mismatch error")
	}
	s.Wipe()
	if s.Len() != 0 {
		t.Fatal("wipe should remove everything")
	}
}
