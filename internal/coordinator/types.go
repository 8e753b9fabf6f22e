package coordinator

import (
	"time"

	"github.com/park285/chess-arena/pkg/gamedto"
)

// Color identifies a chess side.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

func (c Color) Opposite() Color {
	if c == White {
		return Black
	}
	return White
}

// Status is the session lifecycle state.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusAbandoned  Status = "abandoned"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// Result is set only once a session is terminal.
type Result string

const (
	ResultNone      Result = ""
	ResultWhiteWins Result = "white_wins"
	ResultBlackWins Result = "black_wins"
	ResultDraw      Result = "draw"
)

// Move is one applied half-move with the position it produced.
type Move struct {
	Seq   int       `json:"seq"`
	Color Color     `json:"color"`
	From  string    `json:"from"`
	To    string    `json:"to"`
	UCI   string    `json:"uci"`
	SAN   string    `json:"san,omitempty"`
	FEN   string    `json:"fen"`
	At    time.Time `json:"at"`
}

// Conn is one live connection bound to a player slot. Implemented by the
// websocket transport; sessions push outbound events through it directly.
type Conn interface {
	ID() string
	Send(ev *gamedto.ServerEvent)
}

// slot is one of the two seats in a session. conn is nil while the player is
// disconnected; rebinding the same identity replaces it.
type slot struct {
	identity    string
	displayName string
	color       Color
	conn        Conn
}

// SlotSnapshot is the durable view of a slot (no connection state).
type SlotSnapshot struct {
	Identity    string `json:"identity"`
	DisplayName string `json:"display_name"`
	Color       Color  `json:"color"`
}

// Snapshot is the durable state mirrored by the persistence bridge.
type Snapshot struct {
	SessionID string        `json:"session_id"`
	FEN       string        `json:"fen"`
	Moves     []Move        `json:"moves"`
	Turn      Color         `json:"turn,omitempty"`
	Status    Status        `json:"status"`
	Result    Result        `json:"result,omitempty"`
	EndMethod string        `json:"end_method,omitempty"`
	White     *SlotSnapshot `json:"white,omitempty"`
	Black     *SlotSnapshot `json:"black,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Coordinator error taxonomy. Rejections never mutate session state.
var (
	ErrSessionNotFound = errf("session not found")
	ErrSessionFull     = errf("session already has two players")
	ErrNotParticipant  = errf("identity is not a participant in this session")
	ErrNotYourTurn     = errf("not your turn")
	ErrIllegalMove     = errf("illegal move")
	ErrNotInProgress   = errf("session is not in progress")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }
