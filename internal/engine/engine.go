package engine

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
)

var ErrNotStarted = errors.New("game has not started")
var ErrNotEnoughPlayers = errors.New("at least 2 players are required")
var ErrWrongTurn = errors.New("not your turn")
var ErrUnknownCard = errors.New("unknown card")
var ErrCardNotInHand = errors.New("card is not in your hand")
var ErrNoTarget = errors.New("no valid target")
var ErrDefenseOutOfTurn = errors.New("defense cards can only be played against an attack on you")
var ErrNotDefender = errors.New("you are not the current defender")
var ErrNotDefenseCard = errors.New("only defense cards can be played while defending")
var ErrWrongSubPhase = errors.New("not allowed while a defense is pending")
var ErrMulliganHandSize = errors.New("mulligan requires exactly 3 cards in hand")
var ErrMulliganHasOffense = errors.New("mulligan is only allowed with a hand of defense cards")
var ErrUnsupportedCommand = errors.New("unsupported command")

const (
	StartingHP  = 10
	HandSize    = 3
	MinPlayers  = 2
	DeckVersion = 1
)

type SubPhase string

const (
	SubPhaseAction  SubPhase = "action"
	SubPhaseDefense SubPhase = "defense"
)

type PendingDefense struct {
	Attacker  string
	Target    string
	CardID    int
	Damage    int
	Remaining int
	Blocked   int
	CardsUsed []int
}

type State struct {
	Started  bool
	Players  []string
	HP       map[string]int
	Round    int
	TurnIdx  int
	Deck     map[string][]int
	Discard  map[string][]int
	Hands    map[string][]int
	SubPhase SubPhase
	Pending  *PendingDefense
}

type Game struct {
	rng   *rand.Rand
	state State
}

type CommandType string

const (
	CmdPlay     CommandType = "Play"
	CmdEndTurn  CommandType = "EndTurn"
	CmdMulligan CommandType = "Mulligan"
	CmdSync     CommandType = "Sync"
)

type Command struct {
	Type   CommandType
	Player string
	CardID int
	Target string
}

type EventType string

const (
	EvtGameStarted      EventType = "GameStarted"
	EvtHandUpdated      EventType = "HandUpdated"
	EvtDefenseRequested EventType = "DefenseRequested"
	EvtPlayed           EventType = "Played"
	EvtState            EventType = "State"
	EvtMulligan         EventType = "Mulligan"
	EvtGameOver         EventType = "GameOver"
)

type DefenseView struct {
	Attacker string
	Target   string
	CardID   int
	Damage   int
	Blocked  int
	Cards    []int
}

type Snapshot struct {
	Started  bool
	Players  []string
	HP       map[string]int
	Round    int
	Turn     string
	SubPhase SubPhase
	Defense  *DefenseView
}

type DefenseSummary struct {
	By      string
	Blocked int
	Cards   []int
}

// Event is one observable outcome of a command. Events with To set are private
// to that player; the rest are for every member.
type Event struct {
	Type     EventType
	To       string
	By       string
	Target   string
	CardID   int
	Damage   int
	Hand     []int
	HP       map[string]int
	HasNext  bool
	Snapshot Snapshot
	Defense  *DefenseSummary
	Winner   string
	Draw     bool
}

// Start deals a fresh game for players in turn order. It is a no-op once the
// game is running.
func (g *Game) Start(players []string) ([]Event, error) {
	if g.state.Started {
		return nil, nil
	}
	if len(players) < MinPlayers {
		return nil, ErrNotEnoughPlayers
	}

	s := newEmptyState()
	s.Started = true
	s.Players = slices.Clone(players)
	g.state = s
	for _, p := range players {
		g.state.HP[p] = StartingHP
		g.state.Deck[p] = g.buildDeck()
		g.state.Discard[p] = []int{}
		g.state.Hands[p] = []int{}
		g.drawCards(p, HandSize)
	}

	events := []Event{{Type: EvtGameStarted, Snapshot: g.Snapshot()}}
	for _, p := range players {
		events = append(events, g.handEvent(p))
	}
	return events, nil
}

func (g *Game) Apply(cmd Command) ([]Event, error) {
	switch cmd.Type {
	case CmdSync:
		return []Event{
			{Type: EvtState, To: cmd.Player, Snapshot: g.Snapshot()},
			g.handEvent(cmd.Player),
		}, nil

	case CmdPlay:
		if !g.state.Started {
			return nil, ErrNotStarted
		}
		if g.state.SubPhase == SubPhaseDefense {
			return g.playDefense(cmd)
		}
		return g.playAction(cmd)

	case CmdEndTurn:
		if !g.state.Started {
			return nil, ErrNotStarted
		}
		if g.state.SubPhase == SubPhaseDefense {
			if p := g.state.Pending; p == nil || p.Target != cmd.Player {
				return nil, ErrNotDefender
			}
			return g.finishDefense(), nil
		}
		if cmd.Player != g.CurrentTurn() {
			return nil, ErrWrongTurn
		}
		g.advanceTurnFrom(cmd.Player)
		return []Event{{Type: EvtState, Snapshot: g.Snapshot()}}, nil

	case CmdMulligan:
		return g.mulligan(cmd.Player)

	default:
		return nil, ErrUnsupportedCommand
	}
}

func (g *Game) playAction(cmd Command) ([]Event, error) {
	actor := cmd.Player
	if actor != g.CurrentTurn() {
		return nil, ErrWrongTurn
	}
	card, ok := LookupCard(cmd.CardID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCard, cmd.CardID)
	}
	if !g.hasCard(actor, card.ID) {
		return nil, fmt.Errorf("%w: %d", ErrCardNotInHand, card.ID)
	}

	switch card.Category {
	case CategoryAttack:
		target, ok := g.resolveTarget(actor, cmd.Target)
		if !ok {
			return nil, ErrNoTarget
		}
		events := g.useCard(actor, card.ID)
		g.state.Pending = &PendingDefense{
			Attacker:  actor,
			Target:    target,
			CardID:    card.ID,
			Damage:    card.Value,
			Remaining: card.Value,
			CardsUsed: []int{},
		}
		g.state.SubPhase = SubPhaseDefense
		return append(events, Event{
			Type:   EvtDefenseRequested,
			By:     actor,
			Target: target,
			Damage: card.Value,
			CardID: card.ID,
		}), nil

	case CategoryHeal:
		target := actor
		if cmd.Target != "" {
			if !g.alive(cmd.Target) {
				return nil, fmt.Errorf("%w: %s", ErrNoTarget, cmd.Target)
			}
			target = cmd.Target
		}
		events := g.useCard(actor, card.ID)
		g.state.HP[target] += card.Value
		g.advanceTurnFrom(actor)
		return append(events, Event{
			Type:     EvtPlayed,
			By:       actor,
			CardID:   card.ID,
			Target:   target,
			HP:       map[string]int{target: card.Value},
			HasNext:  true,
			Snapshot: g.Snapshot(),
		}), nil

	default:
		return nil, fmt.Errorf("%w: card %d", ErrDefenseOutOfTurn, card.ID)
	}
}

func (g *Game) playDefense(cmd Command) ([]Event, error) {
	p := g.state.Pending
	if p == nil {
		g.state.SubPhase = SubPhaseAction
		return nil, ErrNotDefender
	}
	if cmd.Player != p.Target {
		return nil, ErrNotDefender
	}
	card, ok := LookupCard(cmd.CardID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCard, cmd.CardID)
	}
	if card.Category != CategoryDefense {
		return nil, fmt.Errorf("%w: card %d", ErrNotDefenseCard, card.ID)
	}
	if !g.hasCard(cmd.Player, card.ID) {
		return nil, fmt.Errorf("%w: %d", ErrCardNotInHand, card.ID)
	}

	events := g.useCard(cmd.Player, card.ID)
	p.Remaining = max(0, p.Remaining-card.Value)
	p.Blocked += card.Value
	p.CardsUsed = append(p.CardsUsed, card.ID)
	if p.Remaining == 0 {
		events = append(events, g.finishDefense()...)
	}
	return events, nil
}

// finishDefense applies the pending attack, eliminates defeated players and
// passes the turn on from the attacker.
func (g *Game) finishDefense() []Event {
	p := g.state.Pending
	if p == nil {
		return nil
	}
	blocked := min(p.Blocked, p.Damage)
	net := max(0, p.Damage-blocked)
	delta := map[string]int{}
	if net > 0 {
		g.state.HP[p.Target] = max(0, g.state.HP[p.Target]-net)
		delta[p.Target] = -net
	}
	g.state.Pending = nil
	g.state.SubPhase = SubPhaseAction

	played := Event{
		Type:    EvtPlayed,
		By:      p.Attacker,
		CardID:  p.CardID,
		Target:  p.Target,
		HP:      delta,
		Defense: &DefenseSummary{By: p.Target, Blocked: blocked, Cards: slices.Clone(p.CardsUsed)},
	}

	g.removeDefeated()
	if len(g.state.Players) == 0 {
		g.state.Started = false
		return []Event{played, {Type: EvtGameOver, Draw: true}}
	}

	g.advanceTurnFrom(p.Attacker)
	played.HasNext = true
	played.Snapshot = g.Snapshot()
	events := []Event{played}

	if len(g.state.Players) == 1 {
		g.state.Started = false
		events = append(events, Event{Type: EvtGameOver, Winner: g.state.Players[0]})
	}
	return events
}

func (g *Game) mulligan(actor string) ([]Event, error) {
	if !g.state.Started {
		return nil, ErrNotStarted
	}
	if g.state.SubPhase != SubPhaseAction {
		return nil, ErrWrongSubPhase
	}
	if actor != g.CurrentTurn() {
		return nil, ErrWrongTurn
	}
	hand := g.state.Hands[actor]
	if len(hand) != HandSize {
		return nil, ErrMulliganHandSize
	}
	for _, id := range hand {
		if !isDefenseCard(id) {
			return nil, ErrMulliganHasOffense
		}
	}

	g.state.Discard[actor] = append(g.state.Discard[actor], hand...)
	g.state.Hands[actor] = []int{}
	g.drawCards(actor, len(hand))
	events := []Event{g.handEvent(actor), {Type: EvtMulligan, By: actor}}

	g.advanceTurnFrom(actor)
	return append(events, Event{Type: EvtState, Snapshot: g.Snapshot()}), nil
}
