package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeArchive struct {
	mu      sync.Mutex
	results []*Snapshot
	fail    error
}

func (f *fakeArchive) SaveResult(_ context.Context, snap *Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.results = append(f.results, snap)
	return nil
}

func (f *fakeArchive) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.results)
}

func TestBridge_ScheduleWritesThrough(t *testing.T) {
	snaps := newFakeSnaps()
	b := NewBridge(snaps, nil, 8, 1)

	b.Schedule(&Snapshot{SessionID: "s1", Status: StatusWaiting})
	b.Schedule(&Snapshot{SessionID: "s1", Status: StatusInProgress})
	b.Close() // drains the queue

	snaps.mu.Lock()
	defer snaps.mu.Unlock()
	if snaps.saves != 2 {
		t.Fatalf("saves = %d, want 2", snaps.saves)
	}
	if got := snaps.data["s1"]; got == nil || got.Status != StatusInProgress {
		t.Fatalf("last write did not win: %+v", got)
	}
}

func TestBridge_SaveFailureIsSwallowed(t *testing.T) {
	snaps := newFakeSnaps()
	snaps.fail = errors.New("redis down")
	b := NewBridge(snaps, nil, 8, 2)

	// must not panic, block, or surface anywhere
	b.Schedule(&Snapshot{SessionID: "s1", Status: StatusCompleted})
	b.Close()

	snaps.mu.Lock()
	defer snaps.mu.Unlock()
	if snaps.saves != 2 {
		t.Fatalf("saves = %d, want 2 attempts", snaps.saves)
	}
	if len(snaps.data) != 0 {
		t.Fatalf("failed save stored data")
	}
}

func TestBridge_NoBackoffAfterFinalAttempt(t *testing.T) {
	snaps := newFakeSnaps()
	snaps.fail = errors.New("redis down")
	b := NewBridge(snaps, nil, 8, 3)

	start := time.Now()
	b.Schedule(&Snapshot{SessionID: "s1", Status: StatusWaiting})
	b.Close()

	// retries sleep 100ms+200ms between attempts; sleeping again after
	// the final failure would add another 400ms
	if elapsed := time.Since(start); elapsed > 600*time.Millisecond {
		t.Fatalf("persist took %v, slept after the final attempt", elapsed)
	}
	snaps.mu.Lock()
	defer snaps.mu.Unlock()
	if snaps.saves != 3 {
		t.Fatalf("saves = %d, want 3", snaps.saves)
	}
}

func TestBridge_ArchivesTerminalOnly(t *testing.T) {
	snaps := newFakeSnaps()
	archive := &fakeArchive{}
	b := NewBridge(snaps, archive, 8, 1)

	b.Schedule(&Snapshot{SessionID: "s1", Status: StatusInProgress})
	b.Schedule(&Snapshot{SessionID: "s1", Status: StatusCompleted, Result: ResultWhiteWins})
	b.Schedule(&Snapshot{SessionID: "s2", Status: StatusAbandoned})
	b.Close()

	if archive.count() != 2 {
		t.Fatalf("archived %d snapshots, want 2", archive.count())
	}
}

func TestBridge_ArchiveFailureIsSwallowed(t *testing.T) {
	snaps := newFakeSnaps()
	archive := &fakeArchive{fail: errors.New("pg down")}
	b := NewBridge(snaps, archive, 8, 1)

	b.Schedule(&Snapshot{SessionID: "s1", Status: StatusCompleted, Result: ResultDraw})
	b.Close()

	snaps.mu.Lock()
	defer snaps.mu.Unlock()
	if len(snaps.data) != 1 {
		t.Fatalf("snapshot save should still have happened")
	}
}

func TestBridge_NeverBlocksWhenFull(t *testing.T) {
	// queue of 1 with a slow store: extra schedules drop instead of blocking
	snaps := newFakeSnaps()
	b := NewBridge(&slowSnaps{fakeSnaps: snaps, delay: 50 * time.Millisecond}, nil, 1, 1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Schedule(&Snapshot{SessionID: "s1", Status: StatusWaiting})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Schedule blocked the caller")
	}
	b.Close()
}

type slowSnaps struct {
	*fakeSnaps
	delay time.Duration
}

func (s *slowSnaps) Save(ctx context.Context, snap *Snapshot) error {
	time.Sleep(s.delay)
	return s.fakeSnaps.Save(ctx, snap)
}
