package coordinator

import (
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-arena/internal/obslog"
	"github.com/park285/chess-arena/pkg/gamedto"
)

// rematchSpawn is handed to the store when both sides have agreed: the slots
// (with their live connections) to carry into the fresh session.
type rematchSpawn struct {
	white *slot
	black *slot
}

// requestRematch sets the caller's flag and broadcasts the flag pair. When
// both flags are set it atomically clears them, marks this session
// superseded, detaches both connections, and returns the spawn payload.
// A repeated request by the same identity is a no-op re-broadcast.
func (s *Session) requestRematch(identityID string) (*rematchSpawn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()

	sl := s.slotByIdentityLocked(identityID)
	if sl == nil {
		return nil, ErrNotParticipant
	}
	if s.black == nil {
		return nil, ErrNotInProgress
	}

	if sl.color == White {
		s.rematchWhite = true
	} else {
		s.rematchBlack = true
	}

	if s.rematchWhite && s.rematchBlack {
		// the completing request still reports the agreed flag pair
		// before the new session is announced
		s.broadcast(&gamedto.ServerEvent{
			Type: gamedto.EventRematchStatus,
			RematchStatus: &gamedto.RematchStatus{
				SessionID:        s.id,
				RequestedByWhite: true,
				RequestedByBlack: true,
				Message:          s.messages.MustRender("rematch.started", nil),
				Waiting:          false,
			},
		})
		s.rematchWhite = false
		s.rematchBlack = false
		s.superseded = true
		if !s.status.Terminal() {
			s.status = StatusAbandoned
			s.endMethod = "superseded"
		}
		s.updatedAt = time.Now()
		spawn := &rematchSpawn{
			white: &slot{identity: s.white.identity, displayName: s.white.displayName, color: White, conn: s.white.conn},
			black: &slot{identity: s.black.identity, displayName: s.black.displayName, color: Black, conn: s.black.conn},
		}
		s.white.conn = nil
		s.black.conn = nil
		s.scheduleSaveLocked()
		obslog.L().Info("rematch_agreed", zap.String("session_id", s.id))
		return spawn, nil
	}

	s.broadcast(&gamedto.ServerEvent{
		Type: gamedto.EventRematchStatus,
		RematchStatus: &gamedto.RematchStatus{
			SessionID:        s.id,
			RequestedByWhite: s.rematchWhite,
			RequestedByBlack: s.rematchBlack,
			Message:          s.messages.MustRender("rematch.waiting", nil),
			Waiting:          true,
		},
	})
	obslog.L().Info("rematch_request",
		zap.String("session_id", s.id),
		zap.String("identity", identityID),
		zap.Bool("white", s.rematchWhite),
		zap.Bool("black", s.rematchBlack),
	)
	return nil, nil
}

// DeclineRematch clears both flags regardless of which side calls it and
// broadcasts the declined status to both connections.
func (s *Session) DeclineRematch(identityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()

	if s.slotByIdentityLocked(identityID) == nil {
		return ErrNotParticipant
	}

	s.rematchWhite = false
	s.rematchBlack = false
	s.broadcast(&gamedto.ServerEvent{
		Type: gamedto.EventRematchStatus,
		RematchStatus: &gamedto.RematchStatus{
			SessionID:        s.id,
			RequestedByWhite: false,
			RequestedByBlack: false,
			Message:          s.messages.MustRender("rematch.declined", nil),
			Waiting:          false,
		},
	})
	obslog.L().Info("rematch_decline",
		zap.String("session_id", s.id),
		zap.String("identity", identityID),
	)
	return nil
}
