package engine

import (
	"maps"
	"math/rand/v2"
	"slices"
	"time"
)

func NewGame(rng *rand.Rand) *Game {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	return &Game{rng: rng, state: newEmptyState()}
}

func newEmptyState() State {
	return State{
		HP:       map[string]int{},
		Round:    1,
		Deck:     map[string][]int{},
		Discard:  map[string][]int{},
		Hands:    map[string][]int{},
		SubPhase: SubPhaseAction,
	}
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

// shuffle is an in-place Fisher-Yates pass.
func (g *Game) shuffle(cards []int) {
	for i := len(cards) - 1; i > 0; i-- {
		j := g.rng.IntN(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}
}

func (g *Game) buildDeck() []int {
	deck := slices.Clone(DeckComposition)
	g.shuffle(deck)
	return deck
}

// drawCards moves up to n cards from the front of the player's deck into their
// hand, reshuffling the discard pile back in when the deck runs dry. It stops
// short once both piles are empty.
func (g *Game) drawCards(player string, n int) int {
	drawn := 0
	for range n {
		if len(g.state.Deck[player]) == 0 {
			discard := g.state.Discard[player]
			if len(discard) == 0 {
				break
			}
			deck := slices.Clone(discard)
			g.shuffle(deck)
			g.state.Deck[player] = deck
			g.state.Discard[player] = []int{}
		}
		deck := g.state.Deck[player]
		g.state.Hands[player] = append(g.state.Hands[player], deck[0])
		g.state.Deck[player] = deck[1:]
		drawn++
	}
	return drawn
}

// discardFromHand moves one copy of cardID from hand to discard.
func (g *Game) discardFromHand(player string, cardID int) bool {
	hand := g.state.Hands[player]
	idx := slices.Index(hand, cardID)
	if idx == -1 {
		return false
	}
	g.state.Hands[player] = slices.Delete(hand, idx, idx+1)
	g.state.Discard[player] = append(g.state.Discard[player], cardID)
	return true
}

func (g *Game) hasCard(player string, cardID int) bool {
	return slices.Contains(g.state.Hands[player], cardID)
}

// useCard discards a played card, draws its replacement and reports the new hand.
func (g *Game) useCard(player string, cardID int) []Event {
	g.discardFromHand(player, cardID)
	g.drawCards(player, 1)
	return []Event{g.handEvent(player)}
}

func (g *Game) handEvent(player string) Event {
	hand := slices.Clone(g.state.Hands[player])
	if hand == nil {
		hand = []int{}
	}
	return Event{Type: EvtHandUpdated, To: player, Hand: hand}
}

func (g *Game) hpCopy() map[string]int {
	return maps.Clone(g.state.HP)
}

// Snapshot reports the public view of the game.
func (g *Game) Snapshot() Snapshot {
	s := Snapshot{
		Players:  slices.Clone(g.state.Players),
		HP:       g.hpCopy(),
		Round:    g.state.Round,
		Turn:     g.CurrentTurn(),
		SubPhase: g.state.SubPhase,
		Started:  g.state.Started,
	}
	if p := g.state.Pending; p != nil {
		s.Defense = &DefenseView{
			Attacker: p.Attacker,
			Target:   p.Target,
			CardID:   p.CardID,
			Damage:   p.Remaining,
			Blocked:  p.Blocked,
			Cards:    slices.Clone(p.CardsUsed),
		}
	}
	return s
}

// Hand returns a copy of the player's current hand.
func (g *Game) Hand(player string) []int {
	return slices.Clone(g.state.Hands[player])
}

// Cards returns every card the player owns across deck, discard and hand.
func (g *Game) Cards(player string) []int {
	var all []int
	all = append(all, g.state.Deck[player]...)
	all = append(all, g.state.Discard[player]...)
	all = append(all, g.state.Hands[player]...)
	return all
}

func (g *Game) Started() bool { return g.state.Started }
