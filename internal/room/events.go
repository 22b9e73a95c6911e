package room

import (
	"fmt"

	"github.com/DoyleJ11/spot-battle-backend/internal/engine"
	"github.com/DoyleJ11/spot-battle-backend/pkg/types"
)

// emit delivers engine events: private ones to their player, the rest to all.
func (r *Room) emit(events []engine.Event) {
	for _, e := range events {
		msg := toWire(e)
		if msg == nil {
			continue
		}
		if e.To != "" {
			r.Unicast(e.To, msg)
		} else {
			r.Broadcast(msg)
		}
	}
}

func toWire(e engine.Event) any {
	switch e.Type {
	case engine.EvtGameStarted:
		return types.GameStarted{
			Type:    types.TypeGameStarted,
			Players: e.Snapshot.Players,
			HP:      e.Snapshot.HP,
			Round:   e.Snapshot.Round,
			Turn:    e.Snapshot.Turn,
			DeckVer: engine.DeckVersion,
		}

	case engine.EvtHandUpdated:
		return types.HandUpdate{Type: types.TypeHandUpdate, Hand: e.Hand}

	case engine.EvtDefenseRequested:
		return types.DefenseRequested{
			Type:     types.TypeDefenseRequested,
			Attacker: e.By,
			Target:   e.Target,
			Damage:   e.Damage,
			CardID:   e.CardID,
		}

	case engine.EvtPlayed:
		p := types.Played{
			Type:   types.TypePlayed,
			By:     e.By,
			CardID: e.CardID,
			Target: e.Target,
			Delta:  types.HPDelta{HP: e.HP},
		}
		if p.Delta.HP == nil {
			p.Delta.HP = map[string]int{}
		}
		if e.HasNext {
			p.Next = &types.TurnInfo{Round: e.Snapshot.Round, Turn: e.Snapshot.Turn}
		}
		if d := e.Defense; d != nil {
			p.Defense = &types.DefenseSummary{By: d.By, Blocked: d.Blocked, Cards: d.Cards}
		}
		return p

	case engine.EvtState:
		return stateMessage(e.Snapshot)

	case engine.EvtMulligan:
		return types.NewSystem(fmt.Sprintf("♻️ %s redrew their hand", e.By), now())

	case engine.EvtGameOver:
		return types.GameOver{Type: types.TypeGameOver, Winner: e.Winner, Draw: e.Draw}
	}
	return nil
}

func stateMessage(s engine.Snapshot) types.State {
	msg := types.State{
		Type:  types.TypeState,
		HP:    s.HP,
		Round: s.Round,
		Turn:  s.Turn,
		Phase: string(s.SubPhase),
	}
	if d := s.Defense; d != nil {
		msg.Defense = &types.DefenseView{
			Attacker: d.Attacker,
			Target:   d.Target,
			Damage:   d.Damage,
			CardID:   d.CardID,
			Blocked:  d.Blocked,
			Cards:    d.Cards,
		}
	}
	return msg
}
