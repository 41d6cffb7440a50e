package main

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// runDay announces the night and collects one speech per living participant,
// starting from a random seat and going round the table.
func (g *Game) runDay(ctx context.Context, s RoundState) (RoundPatch, error) {
	var patch RoundPatch
	if err := g.record(ctx, s, ChannelAnnouncement, "", "", dawnAnnouncement(s)); err != nil {
		return patch, err
	}

	speeches := slices.Clone(s.Speeches)
	for _, p := range buildSpeakOrder(s.alivePlayers(), g.intn) {
		cur, ok := s.player(p.ID)
		if !ok || !cur.Alive {
			DebugLog("day.speak", "Skipping %s, no longer alive", p.Name)
			continue
		}
		prov, ok := g.provider(cur.ID)
		if !ok {
			continue
		}

		text, err := prov.Speak(ctx, SpeechInput{TurnInfo: turnInfo(s, cur), Speeches: slices.Clone(speeches)})
		if err != nil {
			return patch, fmt.Errorf("speech by %s: %w", cur.Name, err)
		}
		sp := Speech{PlayerID: cur.ID, Text: text}
		speeches = append(speeches, sp)
		patch.Speeches = append(patch.Speeches, sp)
		if err := g.record(ctx, s, ChannelSpeech, cur.ID, "", fmt.Sprintf("%s: %s", cur.Name, text)); err != nil {
			return patch, err
		}
		g.sink.Speech(cur.ID, text)
	}
	return patch, nil
}

func dawnAnnouncement(s RoundState) string {
	var dead []string
	for _, id := range s.NightDeaths {
		dead = append(dead, s.name(id))
	}
	for _, id := range s.HunterShots {
		dead = append(dead, s.name(id))
	}
	if len(dead) == 0 {
		return fmt.Sprintf("Day %d begins. The night was peaceful.", s.Round)
	}
	return fmt.Sprintf("Day %d begins. Dead since nightfall: %s.", s.Round, strings.Join(dead, ", "))
}
