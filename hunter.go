package main

import (
	"context"
	"fmt"
)

// runHunter lets a dead hunter take one living player with them. A victim who is
// also a hunter shoots in turn.
func (g *Game) runHunter(ctx context.Context, s *RoundState, hunterID string) (roundOutcome, error) {
	hunter, ok := s.player(hunterID)
	if !ok || hunter.Role != RoleHunter || hunter.Alive {
		return outcomeContinue, nil
	}
	g.sink.HunterTriggered(hunter.ID)

	prov, ok := g.provider(hunter.ID)
	if !ok || len(s.AliveIDs) == 0 {
		return outcomeContinue, nil
	}
	target, err := prov.HunterShot(ctx, HunterInput{TurnInfo: turnInfo(*s, hunter)})
	if err != nil {
		return outcomeFailed, fmt.Errorf("hunter %s: %w", hunter.Name, err)
	}
	victim, ok := killParticipant(s, target)
	if !ok {
		DebugLog("hunter", "%s did not shoot anyone (target %q)", hunter.Name, target)
		return outcomeContinue, nil
	}

	s.HunterShots = append(s.HunterShots, victim.ID)
	g.setState(*s)
	content := fmt.Sprintf("%s, the hunter, shot %s while dying.", hunter.Name, victim.Name)
	if err := g.record(ctx, *s, ChannelAnnouncement, hunter.ID, victim.ID, content); err != nil {
		return outcomeFailed, err
	}
	g.sink.PlayerEliminated(victim.ID, CauseHunter)

	if victim.Human {
		restart, err := g.deathCheckpoint(ctx, *s, victim)
		if err != nil {
			return outcomeFailed, err
		}
		if restart {
			return outcomeRestart, nil
		}
	}
	if victim.Role == RoleHunter {
		return g.runHunter(ctx, s, victim.ID)
	}
	return outcomeContinue, nil
}
