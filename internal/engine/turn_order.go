package engine

import "slices"

// CurrentTurn returns the name of the player whose turn it is, or "" when the
// rotation is empty.
func (g *Game) CurrentTurn() string {
	if g.state.TurnIdx < 0 || g.state.TurnIdx >= len(g.state.Players) {
		return ""
	}
	return g.state.Players[g.state.TurnIdx]
}

// advanceTurnFrom hands the turn to the player after actor, bumping the round
// on wraparound. An actor no longer in the rotation resets the index to 0.
func (g *Game) advanceTurnFrom(actor string) {
	idx := slices.Index(g.state.Players, actor)
	if idx == -1 || len(g.state.Players) == 0 {
		g.state.TurnIdx = 0
		return
	}
	g.state.TurnIdx = (idx + 1) % len(g.state.Players)
	if g.state.TurnIdx == 0 {
		g.state.Round++
	}
}

func (g *Game) alive(name string) bool {
	return slices.Contains(g.state.Players, name) && g.state.HP[name] > 0
}

// removeDefeated drops every player at 0 hp from the rotation.
func (g *Game) removeDefeated() {
	survivors := g.state.Players[:0:0]
	for _, p := range g.state.Players {
		if g.state.HP[p] > 0 {
			survivors = append(survivors, p)
		}
	}
	if len(survivors) == len(g.state.Players) {
		return
	}
	g.state.Players = survivors
	if g.state.TurnIdx >= len(g.state.Players) {
		g.state.TurnIdx = 0
	}
}

func (g *Game) defaultTarget(actor string) (string, bool) {
	n := len(g.state.Players)
	if n <= 1 {
		return "", false
	}
	idx := slices.Index(g.state.Players, actor)
	if idx == -1 {
		return "", false
	}
	for i := 1; i < n; i++ {
		candidate := g.state.Players[(idx+i)%n]
		if g.state.HP[candidate] > 0 {
			return candidate, true
		}
	}
	return "", false
}

func (g *Game) resolveTarget(actor, explicit string) (string, bool) {
	if explicit == "" {
		return g.defaultTarget(actor)
	}
	if !g.alive(explicit) {
		return "", false
	}
	return explicit, true
}
