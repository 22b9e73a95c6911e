package types

const (
	TypeJoined           = "joined"
	TypeMembers          = "members"
	TypeSystem           = "system"
	TypePong             = "pong"
	TypePhaseChanged     = "phase_changed"
	TypeGameStarted      = "game_started"
	TypeState            = "state"
	TypeDefenseRequested = "defense_requested"
	TypePlayed           = "played"
	TypeHandUpdate       = "hand_update"
	TypeGameOver         = "game_over"
	TypeError            = "error"
	TypeSpotChoice       = "spot_choice"
)

// Error codes carried on admission failures.
const (
	CodeRoomFull = "ROOM_FULL"
)

type Joined struct {
	Type         string   `json:"type"`
	RoomID       string   `json:"roomId"`
	At           int64    `json:"at"`
	Members      []string `json:"members"`
	HostClientID string   `json:"hostClientId,omitempty"`
}

type Members struct {
	Type         string   `json:"type"`
	Members      []string `json:"members"`
	HostClientID string   `json:"hostClientId,omitempty"`
}

type System struct {
	Type string `json:"type"`
	Text string `json:"text"`
	At   int64  `json:"at"`
}

type ChatMessage struct {
	Type string `json:"type"`
	From string `json:"from"`
	Text string `json:"text"`
	At   int64  `json:"at"`
}

type Pong struct {
	Type string `json:"type"`
	At   int64  `json:"at"`
}

type PhaseChanged struct {
	Type  string `json:"type"`
	Phase string `json:"phase"`
}

type GameStarted struct {
	Type    string         `json:"type"`
	Players []string       `json:"players"`
	HP      map[string]int `json:"hp"`
	Round   int            `json:"round"`
	Turn    string         `json:"turn"`
	DeckVer int            `json:"deckVer"`
}

type DefenseView struct {
	Attacker string `json:"attacker"`
	Target   string `json:"target"`
	Damage   int    `json:"damage"`
	CardID   int    `json:"cardId"`
	Blocked  int    `json:"blocked"`
	Cards    []int  `json:"cards"`
}

type State struct {
	Type    string         `json:"type"`
	HP      map[string]int `json:"hp"`
	Round   int            `json:"round"`
	Turn    string         `json:"turn"`
	Phase   string         `json:"phase,omitempty"`
	Defense *DefenseView   `json:"defense,omitempty"`
}

type DefenseRequested struct {
	Type     string `json:"type"`
	Attacker string `json:"attacker"`
	Target   string `json:"target"`
	Damage   int    `json:"damage"`
	CardID   int    `json:"cardId"`
}

type HPDelta struct {
	HP map[string]int `json:"hp"`
}

type TurnInfo struct {
	Round int    `json:"round"`
	Turn  string `json:"turn"`
}

type DefenseSummary struct {
	By      string `json:"by"`
	Blocked int    `json:"blocked"`
	Cards   []int  `json:"cards"`
}

type Played struct {
	Type    string          `json:"type"`
	By      string          `json:"by"`
	CardID  int             `json:"cardId"`
	Target  string          `json:"target,omitempty"`
	Delta   HPDelta         `json:"delta"`
	Next    *TurnInfo       `json:"next,omitempty"`
	Defense *DefenseSummary `json:"defense,omitempty"`
}

type HandUpdate struct {
	Type string `json:"type"`
	Hand []int  `json:"hand"`
}

type GameOver struct {
	Type   string `json:"type"`
	Winner string `json:"winner,omitempty"`
	Draw   bool   `json:"draw,omitempty"`
}

type ErrorMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
	Code string `json:"code,omitempty"`
}

type Spot struct {
	Name    string `json:"name"`
	PlaceID string `json:"placeId,omitempty"`
}

type SpotChoice struct {
	Type string `json:"type"`
	Spot Spot   `json:"spot"`
}

func NewError(text string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Text: text}
}

func NewSystem(text string, at int64) System {
	return System{Type: TypeSystem, Text: text, At: at}
}

func NewMembers(members []string, hostClientID string) Members {
	if members == nil {
		members = []string{}
	}
	return Members{Type: TypeMembers, Members: members, HostClientID: hostClientID}
}

func NewPhaseChanged(phase string) PhaseChanged {
	return PhaseChanged{Type: TypePhaseChanged, Phase: phase}
}

const (
	PhaseLobby = "lobby"
	PhaseGame  = "game"
)
