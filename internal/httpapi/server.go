// Package httpapi is the small REST surface next to the websocket endpoint:
// game creation and state reads for clients that have not opened a socket
// yet, plus a health probe.
package httpapi

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/chess-arena/internal/coordinator"
	"github.com/park285/chess-arena/internal/identity"
	"github.com/park285/chess-arena/internal/obslog"
	"github.com/park285/chess-arena/pkg/gamedto"
)

type Server struct {
	store    *coordinator.Store
	resolver *identity.Resolver
}

func NewServer(store *coordinator.Store, resolver *identity.Resolver) *Server {
	return &Server{store: store, resolver: resolver}
}

// Handler is the fasthttp request router.
func (s *Server) Handler(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	switch {
	case path == "/healthz" && ctx.IsGet():
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	case path == "/games" && ctx.IsPost():
		s.handleCreate(ctx)
	case strings.HasPrefix(path, "/games/") && ctx.IsGet():
		s.handleState(ctx, strings.TrimPrefix(path, "/games/"))
	default:
		writeError(ctx, fasthttp.StatusNotFound, "not_found", "no such route")
	}
}

func (s *Server) handleCreate(ctx *fasthttp.RequestCtx) {
	var req gamedto.CreateGameRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	id, err := s.resolver.Resolve(context.Background(), req.Credentials, req.DisplayName)
	if err != nil {
		writeError(ctx, fasthttp.StatusUnauthorized, "authorization", "invalid account token")
		return
	}
	// no connection yet; the creator binds via the socket join afterwards
	sess := s.store.Create(id.ID, id.DisplayName, nil)
	obslog.L().Info("api_create_game",
		zap.String("session_id", sess.ID()),
		zap.String("identity", id.ID),
	)
	writeJSON(ctx, fasthttp.StatusCreated, gamedto.CreateGameResponse{SessionID: sess.ID()})
}

func (s *Server) handleState(ctx *fasthttp.RequestCtx, id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		writeError(ctx, fasthttp.StatusBadRequest, "bad_request", "missing game id")
		return
	}
	sess, err := s.store.Get(context.Background(), id)
	if err != nil {
		writeError(ctx, fasthttp.StatusNotFound, "session_not_found", "game not found")
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, sess.State())
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		writeError(ctx, fasthttp.StatusInternalServerError, "internal", "encode failed")
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(payload)
}

func writeError(ctx *fasthttp.RequestCtx, status int, code, message string) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	payload, _ := json.Marshal(gamedto.Rejected{Code: code, Message: message})
	ctx.SetBody(payload)
}
