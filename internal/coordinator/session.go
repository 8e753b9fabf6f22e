package coordinator

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-arena/internal/engine"
	"github.com/park285/chess-arena/internal/msgcat"
	"github.com/park285/chess-arena/internal/obslog"
	"github.com/park285/chess-arena/pkg/gamedto"
)

// Session is the authoritative state machine for one match. Every mutating
// operation takes the session mutex, so concurrent events against the same
// session serialize; distinct sessions run fully in parallel.
type Session struct {
	mu sync.Mutex

	id    string
	white *slot
	black *slot

	fen    string
	moves  []Move
	turn   Color
	status Status
	result Result

	// rematch handshake, reset together
	rematchWhite bool
	rematchBlack bool
	superseded   bool

	endMethod string

	createdAt  time.Time
	updatedAt  time.Time
	lastActive time.Time

	rules    engine.Engine
	bridge   *Bridge
	messages *msgcat.Catalog
}

func newSession(id string, rules engine.Engine, bridge *Bridge, messages *msgcat.Catalog, creatorID, creatorName string, conn Conn) *Session {
	now := time.Now()
	return &Session{
		id:         id,
		white:      &slot{identity: creatorID, displayName: creatorName, color: White, conn: conn},
		fen:        engine.InitialFEN,
		turn:       White,
		status:     StatusWaiting,
		createdAt:  now,
		updatedAt:  now,
		lastActive: now,
		rules:      rules,
		bridge:     bridge,
		messages:   messages,
	}
}

// newSessionFromSnapshot rebuilds a session from durable state. Both slots
// come back with no bound connection.
func newSessionFromSnapshot(snap *Snapshot, rules engine.Engine, bridge *Bridge, messages *msgcat.Catalog) *Session {
	s := &Session{
		id:         snap.SessionID,
		fen:        snap.FEN,
		moves:      append([]Move(nil), snap.Moves...),
		turn:       snap.Turn,
		status:     snap.Status,
		result:     snap.Result,
		endMethod:  snap.EndMethod,
		createdAt:  snap.CreatedAt,
		updatedAt:  snap.UpdatedAt,
		lastActive: time.Now(),
		rules:      rules,
		bridge:     bridge,
		messages:   messages,
	}
	if snap.White != nil {
		s.white = &slot{identity: snap.White.Identity, displayName: snap.White.DisplayName, color: White}
	}
	if snap.Black != nil {
		s.black = &slot{identity: snap.Black.Identity, displayName: snap.Black.DisplayName, color: Black}
	}
	return s
}

func (s *Session) ID() string { return s.id }

// Join binds an identity to the session. Reconnection and fresh join are
// distinguished solely by identity match: a known identity rebinds its slot
// and gets a full state resync; a new identity takes the black seat and
// starts the game; anything else is a full-session rejection.
func (s *Session) Join(identityID, displayName string, conn Conn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()

	if sl := s.slotByIdentityLocked(identityID); sl != nil {
		sl.conn = conn
		s.sendTo(sl, &gamedto.ServerEvent{Type: gamedto.EventSessionState, SessionState: s.stateLocked()})
		obslog.L().Info("session_rejoin",
			zap.String("session_id", s.id),
			zap.String("identity", identityID),
			zap.String("color", string(sl.color)),
		)
		return nil
	}

	// a fresh identity can only take the black seat while the session is
	// still live; rebinds above stay allowed for late reconnects
	if s.status.Terminal() {
		return ErrNotInProgress
	}

	if s.black == nil {
		s.black = &slot{identity: identityID, displayName: displayName, color: s.white.color.Opposite(), conn: conn}
		s.status = StatusInProgress
		s.turn = White
		s.updatedAt = time.Now()

		s.sendTo(s.white, &gamedto.ServerEvent{
			Type:           gamedto.EventOpponentJoined,
			OpponentJoined: &gamedto.OpponentInfo{Identity: identityID, DisplayName: displayName},
		})
		s.sendTo(s.black, &gamedto.ServerEvent{
			Type:          gamedto.EventColorAssigned,
			ColorAssigned: &gamedto.ColorAssigned{Color: string(s.black.color)},
		})
		s.sendTo(s.black, &gamedto.ServerEvent{
			Type:         gamedto.EventOpponentInfo,
			OpponentInfo: &gamedto.OpponentInfo{Identity: s.white.identity, DisplayName: s.white.displayName},
		})

		s.scheduleSaveLocked()
		obslog.L().Info("session_join",
			zap.String("session_id", s.id),
			zap.String("identity", identityID),
			zap.String("color", string(s.black.color)),
		)
		return nil
	}

	return ErrSessionFull
}

// ApplyMove validates turn order, delegates legality to the rules engine, and
// on success appends to the move log, flips the turn, and broadcasts. A
// rejection leaves the session exactly as it was.
func (s *Session) ApplyMove(identityID, from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()

	if s.status != StatusInProgress {
		return ErrNotInProgress
	}
	sl := s.slotByIdentityLocked(identityID)
	if sl == nil {
		return ErrNotParticipant
	}
	if sl.color != s.turn {
		return ErrNotYourTurn
	}

	res, err := s.rules.Apply(s.uciHistoryLocked(), from, to)
	if err != nil {
		if errors.Is(err, engine.ErrIllegalMove) {
			return ErrIllegalMove
		}
		return err
	}

	now := time.Now()
	s.moves = append(s.moves, Move{
		Seq:   len(s.moves) + 1,
		Color: sl.color,
		From:  from,
		To:    to,
		UCI:   res.UCI,
		SAN:   res.SAN,
		FEN:   res.FEN,
		At:    now,
	})
	s.fen = res.FEN
	s.turn = s.turn.Opposite()
	s.updatedAt = now

	switch res.Outcome {
	case engine.OutcomeWhiteWon:
		s.status = StatusCompleted
		s.result = ResultWhiteWins
		s.endMethod = "checkmate"
	case engine.OutcomeBlackWon:
		s.status = StatusCompleted
		s.result = ResultBlackWins
		s.endMethod = "checkmate"
	case engine.OutcomeDraw:
		s.status = StatusCompleted
		s.result = ResultDraw
		s.endMethod = "draw"
	}

	applied := &gamedto.MoveApplied{
		SessionID: s.id,
		From:      from,
		To:        to,
		SAN:       res.SAN,
		Seq:       len(s.moves),
		Status:    string(s.status),
		Result:    string(s.result),
	}
	if s.status == StatusInProgress {
		applied.Turn = string(s.turn)
	}
	s.broadcast(&gamedto.ServerEvent{Type: gamedto.EventMoveApplied, MoveApplied: applied})
	if s.status.Terminal() {
		s.broadcast(&gamedto.ServerEvent{
			Type:     gamedto.EventGameOver,
			GameOver: &gamedto.GameOver{SessionID: s.id, Result: string(s.result)},
		})
	}

	s.scheduleSaveLocked()
	obslog.L().Info("session_move",
		zap.String("session_id", s.id),
		zap.String("identity", identityID),
		zap.String("uci", res.UCI),
		zap.Int("seq", len(s.moves)),
		zap.String("status", string(s.status)),
	)
	return nil
}

// Resign completes the session in the opponent's favor. Resigning an already
// terminal session is a no-op that reports the recorded result back to the
// caller; resigning before the opponent joined is rejected.
func (s *Session) Resign(identityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()

	sl := s.slotByIdentityLocked(identityID)
	if sl == nil {
		return ErrNotParticipant
	}
	if s.status.Terminal() {
		s.sendTo(sl, &gamedto.ServerEvent{
			Type: gamedto.EventResignationResult,
			ResignationResult: &gamedto.ResignationResult{
				SessionID: s.id,
				Winner:    winnerColor(s.result),
				Result:    string(s.result),
			},
		})
		return nil
	}
	if s.status != StatusInProgress {
		return ErrNotInProgress
	}

	s.status = StatusCompleted
	if sl.color == White {
		s.result = ResultBlackWins
	} else {
		s.result = ResultWhiteWins
	}
	s.endMethod = "resignation"
	s.updatedAt = time.Now()

	s.broadcast(&gamedto.ServerEvent{
		Type: gamedto.EventResignationResult,
		ResignationResult: &gamedto.ResignationResult{
			SessionID: s.id,
			Winner:    winnerColor(s.result),
			Result:    string(s.result),
		},
	})

	s.scheduleSaveLocked()
	obslog.L().Info("session_resign",
		zap.String("session_id", s.id),
		zap.String("identity", identityID),
		zap.String("result", string(s.result)),
	)
	return nil
}

// Disconnect clears whichever slot the connection is bound to. Status never
// changes here; the player may reconnect.
func (s *Session) Disconnect(conn Conn) {
	if conn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()

	for _, sl := range []*slot{s.white, s.black} {
		if sl != nil && sl.conn != nil && sl.conn.ID() == conn.ID() {
			sl.conn = nil
			obslog.L().Info("session_disconnect",
				zap.String("session_id", s.id),
				zap.String("identity", sl.identity),
			)
			return
		}
	}
}

// MarkAbandoned is the hook for an external timeout policy. It is not called
// on socket drops.
func (s *Session) MarkAbandoned() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() {
		return
	}
	s.status = StatusAbandoned
	s.endMethod = "abandoned"
	s.updatedAt = time.Now()
	s.lastActive = s.updatedAt
	s.broadcast(&gamedto.ServerEvent{Type: gamedto.EventSessionState, SessionState: s.stateLocked()})
	s.scheduleSaveLocked()
	obslog.L().Info("session_abandoned", zap.String("session_id", s.id))
}

// State returns the full resync payload.
func (s *Session) State() *gamedto.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Snapshot returns the durable view of the current state.
func (s *Session) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// evictable reports whether the sweeper may drop this session: terminal (or
// superseded by a rematch), no bound connection, and idle past the grace
// period.
func (s *Session) evictable(grace time.Duration, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.status.Terminal() && !s.superseded {
		return false
	}
	for _, sl := range []*slot{s.white, s.black} {
		if sl != nil && sl.conn != nil {
			return false
		}
	}
	return now.Sub(s.lastActive) > grace
}

func (s *Session) slotByIdentityLocked(identityID string) *slot {
	if s.white != nil && s.white.identity == identityID {
		return s.white
	}
	if s.black != nil && s.black.identity == identityID {
		return s.black
	}
	return nil
}

func (s *Session) uciHistoryLocked() []string {
	out := make([]string, len(s.moves))
	for i, m := range s.moves {
		out[i] = m.UCI
	}
	return out
}

func (s *Session) broadcast(ev *gamedto.ServerEvent) {
	s.sendTo(s.white, ev)
	s.sendTo(s.black, ev)
}

func (s *Session) sendTo(sl *slot, ev *gamedto.ServerEvent) {
	if sl == nil || sl.conn == nil {
		return
	}
	sl.conn.Send(ev)
}

func (s *Session) stateLocked() *gamedto.SessionState {
	st := &gamedto.SessionState{
		SessionID:    s.id,
		FEN:          s.fen,
		Status:       string(s.status),
		Result:       string(s.result),
		RematchWhite: s.rematchWhite,
		RematchBlack: s.rematchBlack,
	}
	if s.status == StatusInProgress {
		st.Turn = string(s.turn)
	}
	st.Moves = make([]gamedto.MoveEntry, len(s.moves))
	for i, m := range s.moves {
		st.Moves[i] = gamedto.MoveEntry{Seq: m.Seq, Color: string(m.Color), From: m.From, To: m.To, SAN: m.SAN, FEN: m.FEN}
	}
	if s.white != nil {
		st.White = &gamedto.PlayerInfo{Identity: s.white.identity, DisplayName: s.white.displayName, Color: string(White), Connected: s.white.conn != nil}
	}
	if s.black != nil {
		st.Black = &gamedto.PlayerInfo{Identity: s.black.identity, DisplayName: s.black.displayName, Color: string(Black), Connected: s.black.conn != nil}
	}
	return st
}

func (s *Session) snapshotLocked() *Snapshot {
	snap := &Snapshot{
		SessionID: s.id,
		FEN:       s.fen,
		Moves:     append([]Move(nil), s.moves...),
		Status:    s.status,
		Result:    s.result,
		EndMethod: s.endMethod,
		CreatedAt: s.createdAt,
		UpdatedAt: s.updatedAt,
	}
	if s.status == StatusInProgress {
		snap.Turn = s.turn
	}
	if s.white != nil {
		snap.White = &SlotSnapshot{Identity: s.white.identity, DisplayName: s.white.displayName, Color: White}
	}
	if s.black != nil {
		snap.Black = &SlotSnapshot{Identity: s.black.identity, DisplayName: s.black.displayName, Color: Black}
	}
	return snap
}

func (s *Session) scheduleSave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduleSaveLocked()
}

func (s *Session) announce(ev *gamedto.ServerEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcast(ev)
}

func (s *Session) scheduleSaveLocked() {
	if s.bridge == nil {
		return
	}
	s.bridge.Schedule(s.snapshotLocked())
}

func winnerColor(r Result) string {
	switch r {
	case ResultWhiteWins:
		return string(White)
	case ResultBlackWins:
		return string(Black)
	default:
		return ""
	}
}
