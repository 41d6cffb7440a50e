package main

import (
	"maps"
	"slices"
)

type Phase string

const (
	PhaseNight Phase = "night"
	PhaseDay   Phase = "day"
	PhaseVote  Phase = "vote"
	PhaseEnded Phase = "ended"
)

type Speech struct {
	PlayerID string `json:"player_id"`
	Text     string `json:"text"`
}

// RoundState is the state threaded through every phase of a round.
// AliveIDs always equals the ids of Players with Alive set, in seat order.
type RoundState struct {
	Phase    Phase
	Round    int
	Players  []Participant
	AliveIDs []string

	// Per-round scratch, cleared by resetRound.
	NightKill      string
	WitchSaved     bool
	WitchPoison    string
	NightDeaths    []string
	Speeches       []Speech
	Votes          map[string]string
	VoteEliminated string
	HunterShots    []string

	Winner Faction
}

// MemoryPatch updates a participant's memory. Seer results append; potions can only be spent.
type MemoryPatch struct {
	SeerResults []SeerResult
	UseAntidote bool
	UsePoison   bool
}

// RoundPatch is the partial result a phase hands back to the controller.
// Nil scalars leave the state untouched.
type RoundPatch struct {
	NightKill      *string
	WitchSaved     *bool
	WitchPoison    *string
	NightDeaths    []string
	Speeches       []Speech
	Votes          map[string]string
	VoteEliminated *string
	HunterShots    []string
	Memory         map[string]MemoryPatch
}

func newRoundState(players []Participant) RoundState {
	s := RoundState{
		Phase:   PhaseNight,
		Round:   1,
		Players: slices.Clone(players),
	}
	s.recomputeAlive()
	return s
}

// applyPatch merges patch into a copy of s: lists concatenate, maps merge, set scalars overwrite.
func applyPatch(s RoundState, patch RoundPatch) RoundState {
	next := s
	next.Players = slices.Clone(s.Players)
	next.AliveIDs = slices.Clone(s.AliveIDs)
	next.NightDeaths = slices.Clone(s.NightDeaths)
	next.Speeches = slices.Clone(s.Speeches)
	next.HunterShots = slices.Clone(s.HunterShots)
	next.Votes = maps.Clone(s.Votes)

	if patch.NightKill != nil {
		next.NightKill = *patch.NightKill
	}
	if patch.WitchSaved != nil {
		next.WitchSaved = *patch.WitchSaved
	}
	if patch.WitchPoison != nil {
		next.WitchPoison = *patch.WitchPoison
	}
	if patch.VoteEliminated != nil {
		next.VoteEliminated = *patch.VoteEliminated
	}
	next.NightDeaths = append(next.NightDeaths, patch.NightDeaths...)
	next.Speeches = append(next.Speeches, patch.Speeches...)
	next.HunterShots = append(next.HunterShots, patch.HunterShots...)
	if len(patch.Votes) > 0 {
		if next.Votes == nil {
			next.Votes = make(map[string]string, len(patch.Votes))
		}
		maps.Copy(next.Votes, patch.Votes)
	}

	for id, mp := range patch.Memory {
		i := next.index(id)
		if i < 0 {
			continue
		}
		m := next.Players[i].Memory
		m.SeerResults = append(slices.Clone(m.SeerResults), mp.SeerResults...)
		if mp.UseAntidote {
			m.Antidote = false
		}
		if mp.UsePoison {
			m.Poison = false
		}
		next.Players[i].Memory = m
	}
	return next
}

// resetRound clears the scratch fields and moves to the next night.
func resetRound(s RoundState) RoundState {
	return RoundState{
		Phase:    PhaseNight,
		Round:    s.Round + 1,
		Players:  s.Players,
		AliveIDs: s.AliveIDs,
		Winner:   s.Winner,
	}
}

// killParticipant marks id dead. It reports false when id is unknown or already dead.
func killParticipant(s *RoundState, id string) (Participant, bool) {
	i := s.index(id)
	if i < 0 || !s.Players[i].Alive {
		return Participant{}, false
	}
	s.Players = slices.Clone(s.Players)
	s.Players[i].Alive = false
	s.recomputeAlive()
	return s.Players[i], true
}

func (s *RoundState) recomputeAlive() {
	ordered := slices.Clone(s.Players)
	slices.SortStableFunc(ordered, func(a, b Participant) int { return a.Seat - b.Seat })
	alive := make([]string, 0, len(ordered))
	for _, p := range ordered {
		if p.Alive {
			alive = append(alive, p.ID)
		}
	}
	s.AliveIDs = alive
}

func (s RoundState) index(id string) int {
	return slices.IndexFunc(s.Players, func(p Participant) bool { return p.ID == id })
}

func (s RoundState) player(id string) (Participant, bool) {
	i := s.index(id)
	if i < 0 {
		return Participant{}, false
	}
	return s.Players[i], true
}

func (s RoundState) isAlive(id string) bool {
	p, ok := s.player(id)
	return ok && p.Alive
}

// alivePlayers returns the living participants in seat order.
func (s RoundState) alivePlayers() []Participant {
	out := make([]Participant, 0, len(s.AliveIDs))
	for _, id := range s.AliveIDs {
		if p, ok := s.player(id); ok {
			out = append(out, p)
		}
	}
	return out
}

func (s RoundState) aliveWithRole(role Role) []Participant {
	var out []Participant
	for _, p := range s.alivePlayers() {
		if p.Role == role {
			out = append(out, p)
		}
	}
	return out
}

func (s RoundState) aliveRefs() []PlayerRef {
	alive := s.alivePlayers()
	refs := make([]PlayerRef, len(alive))
	for i, p := range alive {
		refs[i] = p.Ref()
	}
	return refs
}

func (s RoundState) name(id string) string {
	if p, ok := s.player(id); ok {
		return p.Name
	}
	return id
}

func ptr[T any](v T) *T {
	return &v
}
