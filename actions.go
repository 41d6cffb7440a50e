package main

import (
	"context"
)

// TurnInfo is what every acting participant is told about the table.
type TurnInfo struct {
	Self    Participant `json:"-"`
	Round   int         `json:"round"`
	Players int         `json:"player_count"`
	Alive   []PlayerRef `json:"alive_players"`
	// Team lists the other wolves; empty for everyone else.
	Team []PlayerRef `json:"team,omitempty"`
}

type NightInput struct {
	TurnInfo
	KillTarget     string `json:"night_kill_target,omitempty"`
	KillTargetName string `json:"night_kill_target_name,omitempty"`
	Antidote       bool   `json:"antidote"`
	Poison         bool   `json:"poison"`
}

type SpeechInput struct {
	TurnInfo
	Speeches  []Speech `json:"speeches"`
	LastWords bool     `json:"last_words,omitempty"`
}

type VoteInput struct {
	TurnInfo
	Speeches []Speech `json:"speeches"`
}

type HunterInput struct {
	TurnInfo
}

type NightActionKind string

const (
	ActionNone    NightActionKind = "none"
	ActionKill    NightActionKind = "kill"
	ActionInspect NightActionKind = "inspect"
	ActionWitch   NightActionKind = "witch"
)

// NightAction is the tagged result of a night turn. Witch is only set for ActionWitch.
type NightAction struct {
	Kind      NightActionKind
	TargetID  string
	Witch     WitchChoice
	Reasoning string
}

// ActionProvider answers for one participant, whoever controls it.
type ActionProvider interface {
	NightAction(ctx context.Context, in NightInput) (NightAction, error)
	Speak(ctx context.Context, in SpeechInput) (string, error)
	Vote(ctx context.Context, in VoteInput) (string, error)
	HunterShot(ctx context.Context, in HunterInput) (string, error)
}

// nightKind maps a role to the night decision it makes, if any.
func nightKind(r Role) (NightActionKind, InterruptKind) {
	switch r {
	case RoleWolf:
		return ActionKill, KindWolfKill
	case RoleSeer:
		return ActionInspect, KindSeerInspect
	case RoleWitch:
		return ActionWitch, KindWitchAction
	case RoleHunter, RoleVillager:
		return ActionNone, ""
	}
	return ActionNone, ""
}

// newActionProvider picks the provider for p; the choice never changes during a game.
func (g *Game) newActionProvider(p Participant) ActionProvider {
	if p.Human {
		return &humanProvider{slot: g.slot}
	}
	return &aiProvider{
		gameID:   g.ID,
		reasoner: g.reasoner,
		store:    g.store,
		sink:     g.sink,
		retry:    g.retry,
	}
}

// turnInfo builds the table view for self from s.
func turnInfo(s RoundState, self Participant) TurnInfo {
	info := TurnInfo{
		Self:    self,
		Round:   s.Round,
		Players: len(s.Players),
		Alive:   s.aliveRefs(),
	}
	if self.Role == RoleWolf {
		for _, p := range s.Players {
			if p.Role == RoleWolf && p.ID != self.ID {
				info.Team = append(info.Team, p.Ref())
			}
		}
	}
	return info
}
