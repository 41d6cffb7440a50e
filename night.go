package main

import (
	"context"
	"fmt"
	"log"
	"slices"

	"golang.org/x/sync/errgroup"
)

// runNight resolves wolves, then the seer, then the witch, and summarizes the deaths.
func (g *Game) runNight(ctx context.Context, s RoundState) (RoundPatch, error) {
	var patch RoundPatch

	kill, err := g.runWolves(ctx, s)
	if err != nil {
		return patch, err
	}
	patch.NightKill = ptr(kill)

	if err := g.runSeer(ctx, s, &patch); err != nil {
		return patch, err
	}
	if err := g.runWitch(ctx, s, kill, &patch); err != nil {
		return patch, err
	}

	var deaths []string
	saved := patch.WitchSaved != nil && *patch.WitchSaved
	if kill != "" && !saved {
		deaths = append(deaths, kill)
	}
	if patch.WitchPoison != nil && *patch.WitchPoison != "" && !slices.Contains(deaths, *patch.WitchPoison) {
		deaths = append(deaths, *patch.WitchPoison)
	}
	patch.NightDeaths = deaths
	log.Printf("Night %d resolved: kill=%q saved=%t deaths=%v", s.Round, kill, saved, deaths)
	return patch, nil
}

// runWolves collects one proposal per living wolf and returns the consensus target.
// AI wolves are asked concurrently, human wolves one at a time; proposals keep seat order.
func (g *Game) runWolves(ctx context.Context, s RoundState) (string, error) {
	wolves := s.aliveWithRole(RoleWolf)
	if len(wolves) == 0 {
		return "", nil
	}
	actions := make([]NightAction, len(wolves))

	eg, egCtx := errgroup.WithContext(ctx)
	for i, w := range wolves {
		p, ok := g.provider(w.ID)
		if !ok || w.Human {
			continue
		}
		eg.Go(func() error {
			a, err := p.NightAction(egCtx, NightInput{TurnInfo: turnInfo(s, w)})
			if err != nil {
				return fmt.Errorf("wolf %s: %w", w.Name, err)
			}
			actions[i] = a
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return "", err
	}
	for i, w := range wolves {
		p, ok := g.provider(w.ID)
		if !ok || !w.Human {
			continue
		}
		a, err := p.NightAction(ctx, NightInput{TurnInfo: turnInfo(s, w)})
		if err != nil {
			return "", fmt.Errorf("wolf %s: %w", w.Name, err)
		}
		actions[i] = a
	}

	var proposals []string
	for i, w := range wolves {
		a := actions[i]
		if a.Kind != ActionKill || !s.isAlive(a.TargetID) {
			DebugLog("night.wolves", "Ignoring proposal from %s: %q", w.Name, a.TargetID)
			continue
		}
		proposals = append(proposals, a.TargetID)
		content := fmt.Sprintf("%s wants to kill %s.", w.Name, s.name(a.TargetID))
		if a.Reasoning != "" {
			content += " " + a.Reasoning
		}
		if err := g.record(ctx, s, ChannelWolfDiscussion, w.ID, a.TargetID, content); err != nil {
			return "", err
		}
	}

	if len(proposals) == 0 {
		log.Printf("Night %d: no valid wolf proposals, nobody is attacked", s.Round)
		return "", nil
	}
	target, err := resolveWolfConsensus(proposals)
	if err != nil {
		return "", err
	}
	content := fmt.Sprintf("The wolves decided to kill %s.", s.name(target))
	if err := g.record(ctx, s, ChannelKillDecision, "", target, content); err != nil {
		return "", err
	}
	return target, nil
}

// runSeer lets the seer inspect one other living participant and remembers the faction.
func (g *Game) runSeer(ctx context.Context, s RoundState, patch *RoundPatch) error {
	for _, seer := range s.aliveWithRole(RoleSeer) {
		p, ok := g.provider(seer.ID)
		if !ok {
			continue
		}
		a, err := p.NightAction(ctx, NightInput{TurnInfo: turnInfo(s, seer)})
		if err != nil {
			return fmt.Errorf("seer %s: %w", seer.Name, err)
		}
		target, ok := s.player(a.TargetID)
		if a.Kind != ActionInspect || !ok || !target.Alive || target.ID == seer.ID {
			DebugLog("night.seer", "Ignoring inspection by %s: %q", seer.Name, a.TargetID)
			continue
		}

		result := SeerResult{TargetID: target.ID, TargetName: target.Name, Faction: target.Faction()}
		patch.addMemory(seer.ID, MemoryPatch{SeerResults: []SeerResult{result}})
		side := "on the village side"
		if result.Faction == FactionWolf {
			side = "a wolf"
		}
		content := fmt.Sprintf("%s is %s.", target.Name, side)
		if err := g.record(ctx, s, ChannelSeerResult, seer.ID, target.ID, content); err != nil {
			return err
		}
	}
	return nil
}

// runWitch tells the witch who was attacked and applies at most one potion.
func (g *Game) runWitch(ctx context.Context, s RoundState, kill string, patch *RoundPatch) error {
	for _, witch := range s.aliveWithRole(RoleWitch) {
		m := witch.Memory
		p, ok := g.provider(witch.ID)
		if !ok || (!m.Antidote && !m.Poison) {
			DebugLog("night.witch", "Skipping %s (antidote=%t poison=%t)", witch.Name, m.Antidote, m.Poison)
			continue
		}

		in := NightInput{TurnInfo: turnInfo(s, witch), KillTarget: kill, Antidote: m.Antidote, Poison: m.Poison}
		notice := "The wolves attacked nobody tonight."
		if kill != "" {
			in.KillTargetName = s.name(kill)
			notice = fmt.Sprintf("The wolves attacked %s tonight.", in.KillTargetName)
		}
		if err := g.record(ctx, s, ChannelWitchNotice, witch.ID, kill, notice); err != nil {
			return err
		}

		a, err := p.NightAction(ctx, in)
		if err != nil {
			return fmt.Errorf("witch %s: %w", witch.Name, err)
		}

		outcome := "You kept your potions."
		target := ""
		switch {
		case a.Kind != ActionWitch:
		case a.Witch == WitchSave && m.Antidote && kill != "":
			patch.WitchSaved = ptr(true)
			patch.addMemory(witch.ID, MemoryPatch{UseAntidote: true})
			target = kill
			outcome = fmt.Sprintf("You used the antidote to save %s.", s.name(kill))
		case a.Witch == WitchPoison && m.Poison && a.TargetID != witch.ID && s.isAlive(a.TargetID):
			patch.WitchPoison = ptr(a.TargetID)
			patch.addMemory(witch.ID, MemoryPatch{UsePoison: true})
			target = a.TargetID
			outcome = fmt.Sprintf("You poisoned %s.", s.name(a.TargetID))
		case a.Witch == WitchSave || a.Witch == WitchPoison:
			DebugLog("night.witch", "Rejected %s by %s (target %q)", a.Witch, witch.Name, a.TargetID)
		}
		if err := g.record(ctx, s, ChannelWitchAction, witch.ID, target, outcome); err != nil {
			return err
		}
	}
	return nil
}

func (p *RoundPatch) addMemory(id string, mp MemoryPatch) {
	if p.Memory == nil {
		p.Memory = make(map[string]MemoryPatch)
	}
	cur := p.Memory[id]
	cur.SeerResults = append(cur.SeerResults, mp.SeerResults...)
	cur.UseAntidote = cur.UseAntidote || mp.UseAntidote
	cur.UsePoison = cur.UsePoison || mp.UsePoison
	p.Memory[id] = cur
}
