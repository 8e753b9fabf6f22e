package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/chess-arena/internal/engine"
	"github.com/park285/chess-arena/internal/msgcat"
	"github.com/park285/chess-arena/internal/obslog"
	"github.com/park285/chess-arena/pkg/gamedto"
)

// Store owns every live Session in the process. All access goes through the
// store by id; no other component holds a Session across async boundaries.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	rules    engine.Engine
	bridge   *Bridge
	messages *msgcat.Catalog
	grace    time.Duration
}

func NewStore(rules engine.Engine, bridge *Bridge, messages *msgcat.Catalog, grace time.Duration) *Store {
	if grace <= 0 {
		grace = 10 * time.Minute
	}
	return &Store{
		sessions: make(map[string]*Session),
		rules:    rules,
		bridge:   bridge,
		messages: messages,
		grace:    grace,
	}
}

// Create makes a fresh waiting session with the creator in the white slot and
// returns its generated id.
func (st *Store) Create(creatorID, creatorName string, conn Conn) *Session {
	id := uuid.NewString()
	s, _ := st.GetOrCreate(id, creatorID, creatorName, conn)
	return s
}

// GetOrCreate returns the session for id, creating a waiting session with the
// creator in the white slot when absent. Atomic: racing creators for the same
// id observe a single winner.
func (st *Store) GetOrCreate(id, creatorID, creatorName string, conn Conn) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[id]; ok {
		return s, false
	}
	s := newSession(id, st.rules, st.bridge, st.messages, creatorID, creatorName, conn)
	st.sessions[id] = s
	s.scheduleSave()
	obslog.L().Info("session_create",
		zap.String("session_id", id),
		zap.String("identity", creatorID),
	)
	return s, true
}

// Get looks the session up in memory first and falls back to durable state,
// rehydrating a session with both connections absent. ErrSessionNotFound when
// neither tier has it.
func (st *Store) Get(ctx context.Context, id string) (*Session, error) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if ok {
		return s, nil
	}

	snap, err := st.bridge.Load(ctx, id)
	if err != nil {
		obslog.L().Error("session_rehydrate_error", zap.String("session_id", id), zap.Error(err))
		return nil, ErrSessionNotFound
	}
	if snap == nil {
		return nil, ErrSessionNotFound
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	// another event may have rehydrated while we were loading
	if s, ok := st.sessions[id]; ok {
		return s, nil
	}
	s = newSessionFromSnapshot(snap, st.rules, st.bridge, st.messages)
	st.sessions[id] = s
	obslog.L().Info("session_rehydrate",
		zap.String("session_id", id),
		zap.String("status", string(snap.Status)),
		zap.Int("moves", len(snap.Moves)),
	)
	return s, nil
}

// RequestRematch runs the two-phase handshake. On mutual agreement it spawns
// a fresh in-progress session with both identities carried over, colors
// preserved, and the board reset, then announces the new id to both players.
func (st *Store) RequestRematch(ctx context.Context, id, identityID string) (*Session, error) {
	s, err := st.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	spawn, err := s.requestRematch(identityID)
	if err != nil {
		return nil, err
	}
	if spawn == nil {
		return nil, nil
	}

	next := &Session{
		id:         uuid.NewString(),
		white:      spawn.white,
		black:      spawn.black,
		fen:        engine.InitialFEN,
		turn:       White,
		status:     StatusInProgress,
		createdAt:  time.Now(),
		updatedAt:  time.Now(),
		lastActive: time.Now(),
		rules:      st.rules,
		bridge:     st.bridge,
		messages:   st.messages,
	}

	st.mu.Lock()
	st.sessions[next.id] = next
	st.mu.Unlock()

	next.announce(&gamedto.ServerEvent{
		Type: gamedto.EventNewSessionStarted,
		NewSessionStarted: &gamedto.NewSessionStarted{
			SessionID: next.id,
			Message:   st.messages.MustRender("rematch.started", nil),
		},
	})
	next.scheduleSave()
	obslog.L().Info("rematch_spawn",
		zap.String("session_id", id),
		zap.String("new_session_id", next.id),
	)
	return next, nil
}

// DisconnectAll fans a transport-detected drop out to every live session the
// connection is bound to.
func (st *Store) DisconnectAll(conn Conn) {
	st.mu.RLock()
	sessions := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		sessions = append(sessions, s)
	}
	st.mu.RUnlock()
	for _, s := range sessions {
		s.Disconnect(conn)
	}
}

// Sweep evicts terminal sessions idle past the grace period. Sessions with a
// bound connection are never evicted. Returns the number evicted.
func (st *Store) Sweep() int {
	now := time.Now()

	st.mu.RLock()
	candidates := make([]*Session, 0)
	for _, s := range st.sessions {
		candidates = append(candidates, s)
	}
	st.mu.RUnlock()

	evicted := 0
	for _, s := range candidates {
		if !s.evictable(st.grace, now) {
			continue
		}
		st.mu.Lock()
		// recheck: a join may have rebound a connection since the
		// candidate pass
		if s.evictable(st.grace, now) {
			delete(st.sessions, s.ID())
			evicted++
			obslog.L().Info("session_evict", zap.String("session_id", s.ID()))
		}
		st.mu.Unlock()
	}
	return evicted
}

// RunSweeper runs Sweep on the given interval until ctx is cancelled.
func (st *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			st.Sweep()
		}
	}
}

// Len reports the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
