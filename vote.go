package main

import (
	"context"
	"fmt"
	"strings"
)

// runVote asks every living participant, in seat order, for one vote and tallies them.
// Votes for oneself or for someone not alive count as abstentions.
func (g *Game) runVote(ctx context.Context, s RoundState) (RoundPatch, error) {
	voters := s.alivePlayers()
	votes := make(map[string]string, len(voters))
	for _, voter := range voters {
		prov, ok := g.provider(voter.ID)
		if !ok {
			continue
		}
		target, err := prov.Vote(ctx, VoteInput{TurnInfo: turnInfo(s, voter), Speeches: s.Speeches})
		if err != nil {
			return RoundPatch{}, fmt.Errorf("vote by %s: %w", voter.Name, err)
		}
		if target == voter.ID || !s.isAlive(target) {
			DebugLog("vote", "%s abstains (target %q)", voter.Name, target)
			continue
		}
		votes[voter.ID] = target
	}

	eliminated := resolveVoteResult(votes, g.intn)
	if err := g.record(ctx, s, ChannelVoteResult, "", eliminated, voteSummary(s, votes, eliminated)); err != nil {
		return RoundPatch{}, err
	}
	return RoundPatch{Votes: votes, VoteEliminated: ptr(eliminated)}, nil
}

func voteSummary(s RoundState, votes map[string]string, eliminated string) string {
	var lines []string
	for _, p := range s.alivePlayers() {
		if target, ok := votes[p.ID]; ok {
			lines = append(lines, fmt.Sprintf("%s -> %s", p.Name, s.name(target)))
		}
	}
	result := "Nobody was voted out."
	if eliminated != "" {
		result = fmt.Sprintf("%s was voted out.", s.name(eliminated))
	}
	if len(lines) == 0 {
		return "No votes were cast. " + result
	}
	return strings.Join(lines, "; ") + ". " + result
}
