// Package transport is the realtime websocket endpoint: it resolves
// identities, routes inbound events to the session store, and hands each
// session the connection to push outbound events through.
package transport

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/chess-arena/internal/coordinator"
	"github.com/park285/chess-arena/internal/identity"
	"github.com/park285/chess-arena/internal/msgcat"
	"github.com/park285/chess-arena/internal/obslog"
	"github.com/park285/chess-arena/pkg/gamedto"
)

type Server struct {
	store    *coordinator.Store
	resolver *identity.Resolver
	messages *msgcat.Catalog
}

func NewServer(store *coordinator.Store, resolver *identity.Resolver, messages *msgcat.Catalog) *Server {
	return &Server{store: store, resolver: resolver, messages: messages}
}

// Handler mounts the websocket endpoint at /ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  []string{"*"},
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		obslog.L().Warn("ws_accept_failed", zap.Error(err))
		return
	}

	conn := newWSConn(c)
	obslog.L().Info("ws_connect", zap.String("conn_id", conn.ID()))

	defer func() {
		s.store.DisconnectAll(conn)
		_ = c.Close(websocket.StatusNormalClosure, "bye")
		obslog.L().Info("ws_close", zap.String("conn_id", conn.ID()))
	}()

	// identity sticks to the connection after the first create/join
	var who *identity.Identity

	ctx := r.Context()
	for {
		var ev gamedto.ClientEvent
		if err := wsjson.Read(ctx, c, &ev); err != nil {
			return
		}
		who = s.dispatch(ctx, conn, who, &ev)
	}
}

func (s *Server) dispatch(ctx context.Context, conn *wsConn, who *identity.Identity, ev *gamedto.ClientEvent) *identity.Identity {
	switch ev.Type {
	case gamedto.EventCreate:
		if ev.Create == nil {
			s.reject(conn, "bad_request", "missing create payload")
			return who
		}
		id, err := s.resolver.Resolve(ctx, ev.Create.Credentials, ev.Create.DisplayName)
		if err != nil {
			s.rejectErr(conn, err)
			return who
		}
		sess := s.store.Create(id.ID, id.DisplayName, conn)
		conn.Send(&gamedto.ServerEvent{Type: gamedto.EventGameCreated, GameCreated: &gamedto.GameCreated{SessionID: sess.ID()}})
		conn.Send(&gamedto.ServerEvent{Type: gamedto.EventColorAssigned, ColorAssigned: &gamedto.ColorAssigned{Color: string(coordinator.White)}})
		return id

	case gamedto.EventJoin:
		if ev.Join == nil || strings.TrimSpace(ev.Join.SessionID) == "" {
			s.reject(conn, "bad_request", "missing join payload")
			return who
		}
		id, err := s.resolver.Resolve(ctx, ev.Join.Credentials, ev.Join.DisplayName)
		if err != nil {
			s.rejectErr(conn, err)
			return who
		}
		sess, err := s.store.Get(ctx, ev.Join.SessionID)
		if err != nil {
			s.rejectErr(conn, err)
			return id
		}
		if err := sess.Join(id.ID, id.DisplayName, conn); err != nil {
			s.rejectErr(conn, err)
		}
		return id

	case gamedto.EventMove:
		if who == nil || ev.Move == nil {
			s.reject(conn, "bad_request", "not identified")
			return who
		}
		sess, err := s.store.Get(ctx, ev.Move.SessionID)
		if err != nil {
			s.rejectErr(conn, err)
			return who
		}
		if err := sess.ApplyMove(who.ID, ev.Move.From, ev.Move.To); err != nil {
			s.rejectErr(conn, err)
		}
		return who

	case gamedto.EventResign:
		if who == nil || ev.Resign == nil {
			s.reject(conn, "bad_request", "not identified")
			return who
		}
		sess, err := s.store.Get(ctx, ev.Resign.SessionID)
		if err != nil {
			s.rejectErr(conn, err)
			return who
		}
		if err := sess.Resign(who.ID); err != nil {
			s.rejectErr(conn, err)
		}
		return who

	case gamedto.EventRematchRequest:
		if who == nil || ev.Rematch == nil {
			s.reject(conn, "bad_request", "not identified")
			return who
		}
		if _, err := s.store.RequestRematch(ctx, ev.Rematch.SessionID, who.ID); err != nil {
			s.rejectErr(conn, err)
		}
		return who

	case gamedto.EventRematchDecline:
		if who == nil || ev.Rematch == nil {
			s.reject(conn, "bad_request", "not identified")
			return who
		}
		sess, err := s.store.Get(ctx, ev.Rematch.SessionID)
		if err != nil {
			s.rejectErr(conn, err)
			return who
		}
		if err := sess.DeclineRematch(who.ID); err != nil {
			s.rejectErr(conn, err)
		}
		return who

	default:
		s.reject(conn, "bad_request", "unknown event type: "+ev.Type)
		return who
	}
}

func (s *Server) rejectErr(conn *wsConn, err error) {
	code := rejectCode(err)
	msg, rerr := s.messages.Render("reject."+code, nil)
	if rerr != nil {
		msg = err.Error()
	}
	s.reject(conn, code, msg)
}

func (s *Server) reject(conn *wsConn, code, message string) {
	conn.Send(&gamedto.ServerEvent{
		Type:     gamedto.EventRejected,
		Rejected: &gamedto.Rejected{Code: code, Message: message},
	})
}

func rejectCode(err error) string {
	switch {
	case errors.Is(err, identity.ErrAuthorization):
		return "authorization"
	case errors.Is(err, coordinator.ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, coordinator.ErrSessionFull):
		return "session_full"
	case errors.Is(err, coordinator.ErrNotYourTurn):
		return "not_your_turn"
	case errors.Is(err, coordinator.ErrIllegalMove):
		return "illegal_move"
	case errors.Is(err, coordinator.ErrNotInProgress):
		return "not_in_progress"
	case errors.Is(err, coordinator.ErrNotParticipant):
		return "not_participant"
	default:
		return "internal"
	}
}
