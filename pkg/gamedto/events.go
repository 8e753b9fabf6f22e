package gamedto

// Outbound event types pushed to bound connections.
const (
	EventGameCreated       = "game_created"
	EventColorAssigned     = "color_assigned"
	EventOpponentInfo      = "opponent_info"
	EventOpponentJoined    = "opponent_joined"
	EventSessionState      = "session_state"
	EventMoveApplied       = "move_applied"
	EventResignationResult = "resignation_result"
	EventGameOver          = "game_over"
	EventRematchStatus     = "rematch_status"
	EventNewSessionStarted = "new_session_started"
	EventRejected          = "rejected"
)

// ServerEvent is the outbound frame envelope. Type selects the payload field.
type ServerEvent struct {
	Type string `json:"type"`

	GameCreated       *GameCreated       `json:"game_created,omitempty"`
	ColorAssigned     *ColorAssigned     `json:"color_assigned,omitempty"`
	OpponentInfo      *OpponentInfo      `json:"opponent_info,omitempty"`
	OpponentJoined    *OpponentInfo      `json:"opponent_joined,omitempty"`
	SessionState      *SessionState      `json:"session_state,omitempty"`
	MoveApplied       *MoveApplied       `json:"move_applied,omitempty"`
	ResignationResult *ResignationResult `json:"resignation_result,omitempty"`
	GameOver          *GameOver          `json:"game_over,omitempty"`
	RematchStatus     *RematchStatus     `json:"rematch_status,omitempty"`
	NewSessionStarted *NewSessionStarted `json:"new_session_started,omitempty"`
	Rejected          *Rejected          `json:"rejected,omitempty"`
}

type GameCreated struct {
	SessionID string `json:"session_id"`
}

type ColorAssigned struct {
	Color string `json:"color"`
}

type OpponentInfo struct {
	Identity    string `json:"identity"`
	DisplayName string `json:"display_name"`
}

type PlayerInfo struct {
	Identity    string `json:"identity"`
	DisplayName string `json:"display_name"`
	Color       string `json:"color"`
	Connected   bool   `json:"connected"`
}

type MoveEntry struct {
	Seq   int    `json:"seq"`
	Color string `json:"color"`
	From  string `json:"from"`
	To    string `json:"to"`
	SAN   string `json:"san,omitempty"`
	FEN   string `json:"fen"`
}

// SessionState is the full resync payload sent on reconnect and served by
// the REST state endpoint.
type SessionState struct {
	SessionID    string      `json:"session_id"`
	FEN          string      `json:"fen"`
	White        *PlayerInfo `json:"white,omitempty"`
	Black        *PlayerInfo `json:"black,omitempty"`
	Moves        []MoveEntry `json:"moves"`
	Turn         string      `json:"turn,omitempty"`
	Status       string      `json:"status"`
	Result       string      `json:"result,omitempty"`
	RematchWhite bool        `json:"rematch_requested_by_white"`
	RematchBlack bool        `json:"rematch_requested_by_black"`
}

type MoveApplied struct {
	SessionID string `json:"session_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	SAN       string `json:"san,omitempty"`
	Seq       int    `json:"seq"`
	Turn      string `json:"turn,omitempty"`
	Status    string `json:"status"`
	Result    string `json:"result,omitempty"`
}

type ResignationResult struct {
	SessionID string `json:"session_id"`
	Winner    string `json:"winner"`
	Result    string `json:"result"`
}

// GameOver reports an engine-detected termination (checkmate, stalemate, draw).
type GameOver struct {
	SessionID string `json:"session_id"`
	Result    string `json:"result"`
}

type RematchStatus struct {
	SessionID        string `json:"session_id"`
	RequestedByWhite bool   `json:"requested_by_white"`
	RequestedByBlack bool   `json:"requested_by_black"`
	Message          string `json:"message"`
	Waiting          bool   `json:"waiting"`
}

type NewSessionStarted struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message,omitempty"`
}

type Rejected struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
