// Package protocol defines the wire messages exchanged with the estimation
// server and the translation of inbound events into session state deltas.
package protocol

import "encoding/json"

// Inbound event names (server -> client).
const (
	EvtJoined           = "joined"
	EvtRoomCreated      = "roomCreated"
	EvtRoomJoined       = "roomJoined"
	EvtUserJoined       = "userJoined"
	EvtUserLeft         = "userLeft"
	EvtUserDisconnected = "userDisconnected"
	EvtLeftRoom         = "leftRoom"
	EvtCardSelected     = "cardSelected"
	EvtCardsRevealed    = "cardsRevealed"
	EvtGameReset        = "gameReset"
	EvtError            = "error"
)

// InboundEvents lists every event name the server may push.
var InboundEvents = []string{
	EvtJoined,
	EvtRoomCreated,
	EvtRoomJoined,
	EvtUserJoined,
	EvtUserLeft,
	EvtUserDisconnected,
	EvtLeftRoom,
	EvtCardSelected,
	EvtCardsRevealed,
	EvtGameReset,
	EvtError,
}

// Outbound message names (client -> server).
const (
	MsgJoin        = "join"
	MsgCreateRoom  = "createRoom"
	MsgJoinRoom    = "joinRoom"
	MsgLeaveRoom   = "leaveRoom"
	MsgSelectCard  = "selectCard"
	MsgRevealCards = "revealCards"
	MsgResetGame   = "resetGame"
)

// Envelope frames every message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// WireUser is the server's per-user shape.
type WireUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// WireRoom is the server's full room snapshot. Selections maps user id to
// card value and is present regardless of phase; values are only shown to
// users once Phase is "revealed".
type WireRoom struct {
	Code       string         `json:"code"`
	Users      []WireUser     `json:"users"`
	Selections map[string]int `json:"selections"`
	Phase      string         `json:"phase"`
}

type WireSelection struct {
	User string `json:"user"`
	Card int    `json:"card"`
}

// WireResults accompanies cardsRevealed.
type WireResults struct {
	UserSelections []WireSelection `json:"userSelections"`
	MostSelected   *int            `json:"mostSelected"`
	TotalVotes     int             `json:"totalVotes"`
}

// Inbound payloads.
type (
	JoinedPayload struct {
		User WireUser `json:"user"`
	}
	RoomPayload struct {
		Room    WireRoom     `json:"room"`
		User    *WireUser    `json:"user,omitempty"`
		Results *WireResults `json:"results,omitempty"`
	}
	UserGonePayload struct {
		UserID string   `json:"userId"`
		Room   WireRoom `json:"room"`
	}
	LeftRoomPayload struct {
		Success bool `json:"success"`
	}
	ErrorPayload struct {
		Message string `json:"message"`
	}
)

// Outbound payloads.
type (
	JoinRequest struct {
		Username string `json:"username"`
	}
	RoomRequest struct {
		RoomCode string `json:"roomCode"`
	}
	SelectCardRequest struct {
		RoomCode string `json:"roomCode"`
		Card     int    `json:"card"`
	}
)
