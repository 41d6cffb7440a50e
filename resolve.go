package main

import (
	"errors"
	"slices"
)

var errNoWolfProposals = errors.New("wolf consensus requested with no proposals")

// checkWinCondition returns the winning faction, or FactionNone while the game goes on.
func checkWinCondition(players []Participant) Faction {
	var wolves, others int
	for _, p := range players {
		if !p.Alive {
			continue
		}
		if p.Faction() == FactionWolf {
			wolves++
		} else {
			others++
		}
	}
	switch {
	case wolves == 0:
		return FactionVillage
	case wolves >= others:
		return FactionWolf
	}
	return FactionNone
}

// resolveWolfConsensus picks the most proposed target. Ties go to whichever of the
// tied targets was proposed first.
func resolveWolfConsensus(proposals []string) (string, error) {
	if len(proposals) == 0 {
		return "", errNoWolfProposals
	}
	counts := make(map[string]int)
	var order []string
	for _, t := range proposals {
		if counts[t] == 0 {
			order = append(order, t)
		}
		counts[t]++
	}
	best, top := "", 0
	for _, t := range order {
		if counts[t] > top {
			best, top = t, counts[t]
		}
	}
	return best, nil
}

func voteTally(votes map[string]string) map[string]int {
	tally := make(map[string]int)
	for _, target := range votes {
		tally[target]++
	}
	return tally
}

// resolveVoteResult returns the most voted target, choosing uniformly among ties with intn.
// An empty vote map eliminates nobody.
func resolveVoteResult(votes map[string]string, intn func(int) int) string {
	tally := voteTally(votes)
	top := 0
	for _, n := range tally {
		top = max(top, n)
	}
	var tied []string
	for target, n := range tally {
		if n == top {
			tied = append(tied, target)
		}
	}
	switch len(tied) {
	case 0:
		return ""
	case 1:
		return tied[0]
	}
	slices.Sort(tied)
	return tied[intn(len(tied))]
}

// buildSpeakOrder sorts by seat and rotates the table to start at a random seat.
func buildSpeakOrder(alive []Participant, intn func(int) int) []Participant {
	if len(alive) == 0 {
		return nil
	}
	sorted := slices.Clone(alive)
	slices.SortStableFunc(sorted, func(a, b Participant) int { return a.Seat - b.Seat })
	start := intn(len(sorted))
	order := make([]Participant, 0, len(sorted))
	order = append(order, sorted[start:]...)
	return append(order, sorted[:start]...)
}
