package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/park285/chess-arena/internal/coordinator"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	s, err := NewRedisStore(fmt.Sprintf("redis://%s/0", mr.Addr()), time.Hour)
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRedisStore_RoundTrip(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()

	snap := &coordinator.Snapshot{
		SessionID: "s1",
		FEN:       "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1",
		Moves: []coordinator.Move{
			{Seq: 1, Color: coordinator.White, From: "e2", To: "e4", UCI: "e2e4", SAN: "e4"},
		},
		Turn:   coordinator.Black,
		Status: coordinator.StatusInProgress,
		White:  &coordinator.SlotSnapshot{Identity: "alice", DisplayName: "Alice", Color: coordinator.White},
		Black:  &coordinator.SlotSnapshot{Identity: "bob", DisplayName: "Bob", Color: coordinator.Black},
	}
	if err := s.Save(ctx, snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil {
		t.Fatalf("Load returned nil for existing snapshot")
	}
	if got.FEN != snap.FEN || got.Turn != coordinator.Black || len(got.Moves) != 1 {
		t.Fatalf("loaded snapshot = %+v", got)
	}
	if got.White.Identity != "alice" || got.Black.Identity != "bob" {
		t.Fatalf("slots = %+v / %+v", got.White, got.Black)
	}
}

func TestRedisStore_MissIsNilNil(t *testing.T) {
	s := newTestRedisStore(t)
	got, err := s.Load(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Load miss: %v", err)
	}
	if got != nil {
		t.Fatalf("Load miss returned %+v", got)
	}
}

func TestRedisStore_Overwrite(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, &coordinator.Snapshot{SessionID: "s1", Status: coordinator.StatusWaiting}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(ctx, &coordinator.Snapshot{SessionID: "s1", Status: coordinator.StatusCompleted, Result: coordinator.ResultDraw}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx, "s1")
	if err != nil || got == nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Status != coordinator.StatusCompleted || got.Result != coordinator.ResultDraw {
		t.Fatalf("overwrite lost: %+v", got)
	}
}

func TestParseRedisURL(t *testing.T) {
	opts, err := parseRedisURL("redis://:pw@localhost:6379/2")
	if err != nil {
		t.Fatalf("parseRedisURL: %v", err)
	}
	if opts.Addr != "localhost:6379" || opts.Password != "pw" || opts.DB != 2 {
		t.Fatalf("opts = %+v", opts)
	}
	if _, err := parseRedisURL("http://localhost"); err == nil {
		t.Fatalf("expected scheme error")
	}
}
