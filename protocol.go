package main

import "encoding/json"

// Client -> Server packet types
const (
	PktPong              = "pong"
	PktMovement          = "movement"
	PktRotation          = "rotation"
	PktAbilityUse        = "abilityUse"
	PktCaptureZone       = "captureZone"
	PktGoTo              = "goTo"
	PktPass              = "pass"
	PktGameStatusRequest = "gameStatusRequest"
)

// Server -> Client packet types
const (
	PktPing               = "ping"
	PktConnectionAccepted = "connectionAccepted"
	PktConnectionRejected = "connectionRejected"
	PktGameState          = "gameState"
	PktLobbyData          = "lobbyData"
	PktGameStarting       = "gameStarting"
	PktGameStarted        = "gameStarted"
	PktGameEnded          = "gameEnded"
	PktGameStatus         = "gameStatus"

	PktPlayerAlreadyMadeActionWarning = "playerAlreadyMadeActionWarning"
	PktActionIgnoredDueToDeadWarning  = "actionIgnoredDueToDeadWarning"
	PktSlowResponseWarning            = "slowResponseWarning"
	PktCustomWarning                  = "customWarning"
)

// Envelope wraps every outgoing packet with its type tag
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// InEnvelope is used for incoming packets; the payload is decoded once
// the type is known.
type InEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// RejectReason is the structured reason sent before closing a socket
type RejectReason string

const (
	RejectInvalidEnumFormat RejectReason = "InvalidEnumSerializationFormat"
	RejectTooManyAttempts   RejectReason = "TooManyFailedAttempts"
	RejectInvalidJoinCode   RejectReason = "InvalidJoinCode"
	RejectInvalidURLPath    RejectReason = "InvalidUrlPath"
	RejectMissingNickname   RejectReason = "MissingNickname"
	RejectMissingPlayerType RejectReason = "MissingPlayerType"
	RejectInvalidPlayerType RejectReason = "InvalidPlayerType"
	RejectMissingTeamName   RejectReason = "MissingTeamName"
	RejectInvalidTankType   RejectReason = "InvalidTankType"
	RejectGameInProgress    RejectReason = "GameInProgress"
	RejectGameFull          RejectReason = "GameFull"
	RejectNicknameExists    RejectReason = "NicknameExists"
	RejectTeamsFull         RejectReason = "TeamsFull"
	RejectTankTypeTaken     RejectReason = "TankTypeTaken"
	RejectServerFull        RejectReason = "ServerFull"
)

// ConnectionRejectedPayload is sent before a rejected socket is closed
type ConnectionRejectedPayload struct {
	Reason RejectReason `json:"reason"`
}

// ConnectionAcceptedPayload confirms admission
type ConnectionAcceptedPayload struct {
	PlayerID   string `json:"playerId,omitempty"`
	Spectator  bool   `json:"spectator"`
	EnumFormat string `json:"enumSerializationFormat"`
}

// PingPayload carries the probe id echoed back by pong
type PingPayload struct {
	ID int64 `json:"id"`
}

// ActionPayload is the union of all action packet payloads. Enum fields
// are decoded as any so both numeric and named forms are accepted.
type ActionPayload struct {
	GameStateID    string `json:"gameStateId,omitempty"`
	Direction      any    `json:"direction,omitempty"`
	TankRotation   any    `json:"tankRotation,omitempty"`
	TurretRotation any    `json:"turretRotation,omitempty"`
	AbilityType    any    `json:"abilityType,omitempty"`
	X              *int   `json:"x,omitempty"`
	Y              *int   `json:"y,omitempty"`
}

// CustomWarningPayload carries a free-form warning
type CustomWarningPayload struct {
	Message string `json:"message"`
}

// GameStatusPayload answers gameStatusRequest
type GameStatusPayload struct {
	Status string `json:"status"`
	Tick   int    `json:"tick"`
}

// LobbyPlayer is one roster entry in lobbyData
type LobbyPlayer struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	Color    uint32 `json:"color"`
	Team     string `json:"team,omitempty"`
	TankType any    `json:"tankType,omitempty"`
}

// LobbyDataPayload describes the match a connection joined
type LobbyDataPayload struct {
	PlayerID      string         `json:"playerId,omitempty"`
	MatchID       string         `json:"matchId"`
	Status        string         `json:"status"`
	Mode          string         `json:"mode"`
	GridDimension int            `json:"gridDimension"`
	Seed          int64          `json:"seed"`
	TicksPerMatch int            `json:"ticks"`
	MaxPlayers    int            `json:"maxPlayers"`
	BroadcastMs   int            `json:"broadcastInterval"`
	Players       []LobbyPlayer  `json:"players"`
	Teams         []TeamSettings `json:"teams,omitempty"`
	Sandbox       bool           `json:"sandbox"`
}

// TeamSettings describes one team slot
type TeamSettings struct {
	Name  string `json:"name"`
	Color uint32 `json:"color"`
}

// ResultPlayer is one line of the final standings
type ResultPlayer struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	Team     string `json:"team,omitempty"`
	Score    int    `json:"score"`
	Kills    int    `json:"kills"`
}

// ResultTeam is one team's final score
type ResultTeam struct {
	Name  string `json:"name"`
	Color uint32 `json:"color"`
	Score int    `json:"score"`
}

// GameEndedPayload carries the final standings
type GameEndedPayload struct {
	MatchID string         `json:"matchId"`
	Players []ResultPlayer `json:"players"`
	Teams   []ResultTeam   `json:"teams,omitempty"`
}
