package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/park285/chess-arena/internal/engine"
	"github.com/park285/chess-arena/pkg/gamedto"
)

type fakeSnaps struct {
	mu    sync.Mutex
	data  map[string]*Snapshot
	saves int
	fail  error
}

func newFakeSnaps() *fakeSnaps {
	return &fakeSnaps{data: make(map[string]*Snapshot)}
}

func (f *fakeSnaps) Save(_ context.Context, snap *Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.fail != nil {
		return f.fail
	}
	f.data[snap.SessionID] = snap
	return nil
}

func (f *fakeSnaps) Load(_ context.Context, sessionID string) (*Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data[sessionID], nil
}

func newTestStore(t *testing.T, snaps *fakeSnaps) *Store {
	t.Helper()
	bridge := NewBridge(snaps, nil, 64, 1)
	t.Cleanup(bridge.Close)
	return NewStore(engine.New(), bridge, newTestCatalog(t), 10*time.Minute)
}

func TestGetOrCreate_SingleWinner(t *testing.T) {
	st := newTestStore(t, newFakeSnaps())

	const n = 16
	created := make(chan bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := st.GetOrCreate("shared", "alice", "Alice", nil)
			created <- ok
		}()
	}
	wg.Wait()
	close(created)

	wins := 0
	for ok := range created {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("creators won %d times, want 1", wins)
	}
	if st.Len() != 1 {
		t.Fatalf("store holds %d sessions, want 1", st.Len())
	}
}

func TestGet_RehydratesFromSnapshot(t *testing.T) {
	snaps := newFakeSnaps()
	snaps.data["s9"] = &Snapshot{
		SessionID: "s9",
		FEN:       engine.InitialFEN,
		Moves: []Move{
			{Seq: 1, Color: White, From: "e2", To: "e4", UCI: "e2e4", SAN: "e4"},
		},
		Turn:      Black,
		Status:    StatusInProgress,
		White:     &SlotSnapshot{Identity: "alice", DisplayName: "Alice", Color: White},
		Black:     &SlotSnapshot{Identity: "bob", DisplayName: "Bob", Color: Black},
		CreatedAt: time.Now().Add(-time.Minute),
		UpdatedAt: time.Now(),
	}
	st := newTestStore(t, snaps)

	s, err := st.Get(context.Background(), "s9")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	state := s.State()
	if state.Status != string(StatusInProgress) || state.Turn != string(Black) {
		t.Fatalf("rehydrated state: %+v", state)
	}
	if state.White.Connected || state.Black.Connected {
		t.Fatalf("rehydrated session should have no bound connections")
	}

	// the rehydrated session is live: black replies on top of the history
	if err := s.ApplyMove("bob", "e7", "e5"); err != nil {
		t.Fatalf("move on rehydrated session: %v", err)
	}
	if st.Len() != 1 {
		t.Fatalf("rehydrate inserted %d sessions", st.Len())
	}

	// second Get hits memory, same instance
	again, err := st.Get(context.Background(), "s9")
	if err != nil || again != s {
		t.Fatalf("second Get: %v (same=%v)", err, again == s)
	}
}

func TestGet_Miss(t *testing.T) {
	st := newTestStore(t, newFakeSnaps())
	if _, err := st.Get(context.Background(), "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestRequestRematch_SpawnsNewSession(t *testing.T) {
	st := newTestStore(t, newFakeSnaps())

	cw := &fakeConn{id: "conn-w"}
	cb := &fakeConn{id: "conn-b"}
	old := st.Create("alice", "Alice", cw)
	if err := old.Join("bob", "Bob", cb); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if err := old.Resign("alice"); err != nil {
		t.Fatalf("Resign: %v", err)
	}

	next, err := st.RequestRematch(context.Background(), old.ID(), "alice")
	if err != nil || next != nil {
		t.Fatalf("first request: next=%v err=%v", next, err)
	}
	next, err = st.RequestRematch(context.Background(), old.ID(), "bob")
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	if next == nil {
		t.Fatalf("mutual agreement did not spawn")
	}
	if next.ID() == old.ID() {
		t.Fatalf("spawn reused the old session id")
	}

	state := next.State()
	if state.Status != string(StatusInProgress) || state.Turn != string(White) {
		t.Fatalf("new session state: %+v", state)
	}
	if state.FEN != engine.InitialFEN || len(state.Moves) != 0 {
		t.Fatalf("new session board not reset: %+v", state)
	}
	if state.White.Identity != "alice" || state.Black.Identity != "bob" {
		t.Fatalf("colors not preserved: %+v", state)
	}

	for _, c := range []*fakeConn{cw, cb} {
		evs := c.typed(gamedto.EventNewSessionStarted)
		if len(evs) != 1 || evs[0].NewSessionStarted.SessionID != next.ID() {
			t.Fatalf("conn %s missing new_session_started", c.ID())
		}
	}

	// both sessions remain addressable
	if _, err := st.Get(context.Background(), old.ID()); err != nil {
		t.Fatalf("old session gone: %v", err)
	}
	if _, err := st.Get(context.Background(), next.ID()); err != nil {
		t.Fatalf("new session gone: %v", err)
	}
}

func TestSweep(t *testing.T) {
	st := newTestStore(t, newFakeSnaps())

	cw := &fakeConn{id: "conn-w"}
	cb := &fakeConn{id: "conn-b"}
	s := st.Create("alice", "Alice", cw)
	if err := s.Join("bob", "Bob", cb); err != nil {
		t.Fatalf("Join: %v", err)
	}

	// in-progress sessions are never swept, however idle
	backdate(s, 2*time.Hour)
	if n := st.Sweep(); n != 0 {
		t.Fatalf("swept %d in-progress sessions", n)
	}

	if err := s.Resign("alice"); err != nil {
		t.Fatalf("Resign: %v", err)
	}

	// terminal but still connected: kept
	backdate(s, 2*time.Hour)
	if n := st.Sweep(); n != 0 {
		t.Fatalf("swept %d connected sessions", n)
	}

	s.Disconnect(cw)
	s.Disconnect(cb)

	// terminal, disconnected, but inside the grace period: kept
	if n := st.Sweep(); n != 0 {
		t.Fatalf("swept %d sessions inside grace", n)
	}

	backdate(s, 2*time.Hour)
	if n := st.Sweep(); n != 1 {
		t.Fatalf("swept %d sessions, want 1", n)
	}
	if st.Len() != 0 {
		t.Fatalf("store still holds %d sessions", st.Len())
	}
}

func TestSweep_ConcurrentRebindKeepsSession(t *testing.T) {
	st := newTestStore(t, newFakeSnaps())

	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("race-%d", i)
		s, _ := st.GetOrCreate(id, "alice", "Alice", nil)
		if err := s.Join("bob", "Bob", nil); err != nil {
			t.Fatalf("Join: %v", err)
		}
		if err := s.Resign("alice"); err != nil {
			t.Fatalf("Resign: %v", err)
		}
		backdate(s, 2*time.Hour)

		conn := &fakeConn{id: "conn"}
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			st.Sweep()
		}()
		go func() {
			defer wg.Done()
			_ = s.Join("alice", "Alice", conn)
		}()
		wg.Wait()

		st.mu.RLock()
		_, kept := st.sessions[id]
		st.mu.RUnlock()
		if kept {
			// kept means the sweeper saw the rebind, so the slot
			// must hold the connection
			if !s.State().White.Connected {
				t.Fatalf("session kept without its rebound connection")
			}
			s.Disconnect(conn)
			backdate(s, 2*time.Hour)
			if n := st.Sweep(); n != 1 {
				t.Fatalf("cleanup sweep evicted %d", n)
			}
		}
	}
}

func TestDisconnectAll(t *testing.T) {
	st := newTestStore(t, newFakeSnaps())

	conn := &fakeConn{id: "conn-w"}
	a := st.Create("alice", "Alice", conn)
	b := st.Create("alice", "Alice", conn)

	st.DisconnectAll(conn)
	if sa := a.State(); sa.White.Connected {
		t.Fatalf("session a still connected")
	}
	if sb := b.State(); sb.White.Connected {
		t.Fatalf("session b still connected")
	}
}

func backdate(s *Session, d time.Duration) {
	s.mu.Lock()
	s.lastActive = time.Now().Add(-d)
	s.mu.Unlock()
}
