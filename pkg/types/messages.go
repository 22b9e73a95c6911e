package types

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Client -> Server
//   join:       clientId?: string
//   chat:       text: string
//   ping:       {}
//   start:      lat: number, lng: number
//   play:       cardId: number, target?: string
//   end_turn:   {}
//   mulligan:   {}
//   sync:       {}
//   claim_host: {}
//
// Server -> Client
//   joined, members, system, chat, pong, phase_changed, game_started, state,
//   defense_requested, played, hand_update, game_over, error, spot_choice

var ErrMalformed = errors.New("malformed message")

const (
	TypeJoin      = "join"
	TypeChat      = "chat"
	TypePing      = "ping"
	TypeStart     = "start"
	TypePlay      = "play"
	TypeEndTurn   = "end_turn"
	TypeMulligan  = "mulligan"
	TypeSync      = "sync"
	TypeClaimHost = "claim_host"
)

// ClientMessage is the raw inbound frame before it is narrowed to an Inbound.
type ClientMessage struct {
	Type     string   `json:"type"`
	ClientID string   `json:"clientId,omitempty"`
	Text     string   `json:"text,omitempty"`
	Lat      *float64 `json:"lat,omitempty"`
	Lng      *float64 `json:"lng,omitempty"`
	CardID   int      `json:"cardId,omitempty"`
	Target   string   `json:"target,omitempty"`
}

// Inbound is the closed set of messages a client may send.
type Inbound interface {
	Kind() string
}

type Join struct{ ClientID string }

type Chat struct{ Text string }

type Ping struct{}

// Start carries the requesting member's location. Nil coordinates mean the
// client did not send them.
type Start struct {
	Lat *float64
	Lng *float64
}

type Play struct {
	CardID int
	Target string
}

type EndTurn struct{}

type Mulligan struct{}

type Sync struct{}

type ClaimHost struct{}

// Unknown is a well-formed frame whose type is not part of the protocol.
type Unknown struct{ Type string }

func (Join) Kind() string      { return TypeJoin }
func (Chat) Kind() string      { return TypeChat }
func (Ping) Kind() string      { return TypePing }
func (Start) Kind() string     { return TypeStart }
func (Play) Kind() string      { return TypePlay }
func (EndTurn) Kind() string   { return TypeEndTurn }
func (Mulligan) Kind() string  { return TypeMulligan }
func (Sync) Kind() string      { return TypeSync }
func (ClaimHost) Kind() string { return TypeClaimHost }
func (u Unknown) Kind() string { return u.Type }

// Decode parses one text frame. Unrecognized types decode to Unknown so the
// receiving phase can report them.
func Decode(data []byte) (Inbound, error) {
	var cm ClientMessage
	if err := json.Unmarshal(data, &cm); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return FromClientMessage(cm), nil
}

func FromClientMessage(m ClientMessage) Inbound {
	switch m.Type {
	case TypeJoin:
		return Join{ClientID: m.ClientID}
	case TypeChat:
		return Chat{Text: m.Text}
	case TypePing:
		return Ping{}
	case TypeStart:
		return Start{Lat: m.Lat, Lng: m.Lng}
	case TypePlay:
		return Play{CardID: m.CardID, Target: m.Target}
	case TypeEndTurn:
		return EndTurn{}
	case TypeMulligan:
		return Mulligan{}
	case TypeSync:
		return Sync{}
	case TypeClaimHost:
		return ClaimHost{}
	default:
		return Unknown{Type: m.Type}
	}
}
