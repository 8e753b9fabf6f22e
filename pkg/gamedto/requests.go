// Package gamedto holds the JSON wire types shared by the websocket and REST
// surfaces.
package gamedto

// ClientEvent is the inbound frame envelope read off a websocket connection.
// Exactly one payload field is set, selected by Type.
type ClientEvent struct {
	Type string `json:"type"`

	Create  *CreateRequest        `json:"create,omitempty"`
	Join    *JoinRequest          `json:"join,omitempty"`
	Move    *MoveRequest          `json:"move,omitempty"`
	Resign  *ResignRequest        `json:"resign,omitempty"`
	Rematch *RematchActionRequest `json:"rematch,omitempty"`
}

// Inbound event types.
const (
	EventCreate         = "create"
	EventJoin           = "join"
	EventMove           = "move"
	EventResign         = "resign"
	EventRematchRequest = "rematch_request"
	EventRematchDecline = "rematch_decline"
)

// Credentials identifies the sender: either an account token issued by the
// auth collaborator, or a client-generated anonymous id.
type Credentials struct {
	AccountToken string `json:"account_token,omitempty"`
	AnonymousID  string `json:"anonymous_id,omitempty"`
}

type CreateRequest struct {
	Credentials Credentials `json:"credentials"`
	DisplayName string      `json:"display_name"`
}

type JoinRequest struct {
	SessionID   string      `json:"session_id"`
	Credentials Credentials `json:"credentials"`
	DisplayName string      `json:"display_name"`
}

type MoveRequest struct {
	SessionID string `json:"session_id"`
	From      string `json:"from"`
	To        string `json:"to"`
}

type ResignRequest struct {
	SessionID string `json:"session_id"`
}

type RematchActionRequest struct {
	SessionID string `json:"session_id"`
}

// CreateGameRequest is the REST body for POST /games.
type CreateGameRequest struct {
	Credentials Credentials `json:"credentials"`
	DisplayName string      `json:"display_name"`
}

type CreateGameResponse struct {
	SessionID string `json:"session_id"`
}
