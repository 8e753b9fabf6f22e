package transport

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/chess-arena/internal/obslog"
	"github.com/park285/chess-arena/pkg/gamedto"
)

const writeTimeout = 5 * time.Second

// wsConn adapts one websocket connection to the coordinator.Conn contract.
// Writes are serialized; wsjson.Write is not safe across goroutines.
type wsConn struct {
	id string
	c  *websocket.Conn
	mu sync.Mutex
}

func newWSConn(c *websocket.Conn) *wsConn {
	return &wsConn{id: uuid.NewString(), c: c}
}

func (w *wsConn) ID() string { return w.id }

// Send pushes one outbound event. Failures are logged, never propagated: a
// dead socket is handled by the read loop's disconnect path.
func (w *wsConn) Send(ev *gamedto.ServerEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, w.c, ev); err != nil {
		obslog.L().Warn("ws_send_failed",
			zap.String("conn_id", w.id),
			zap.String("event", ev.Type),
			zap.Error(err),
		)
	}
}
