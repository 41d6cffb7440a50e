package main

import (
	"context"
)

// Channel tags a log entry with who may read it.
type Channel string

const (
	ChannelWolfDiscussion Channel = "wolf_discussion"
	ChannelKillDecision   Channel = "kill_decision"
	ChannelSeerResult     Channel = "seer_result"
	ChannelWitchNotice    Channel = "witch_notice"
	ChannelWitchAction    Channel = "witch_action"
	ChannelAnnouncement   Channel = "announcement"
	ChannelSpeech         Channel = "speech"
	ChannelVoteResult     Channel = "vote_result"
	ChannelLastWords      Channel = "last_words"
)

// Public reports whether every participant may see the channel.
func (c Channel) Public() bool {
	switch c {
	case ChannelAnnouncement, ChannelSpeech, ChannelVoteResult, ChannelLastWords:
		return true
	}
	return false
}

// GameEvent is one append-only log entry. Seq is assigned by the store.
type GameEvent struct {
	Seq      int64   `json:"seq" db:"seq"`
	ID       string  `json:"id" db:"id"`
	GameID   string  `json:"game_id" db:"game_id"`
	Round    int     `json:"round" db:"round"`
	Phase    Phase   `json:"phase" db:"phase"`
	Channel  Channel `json:"channel" db:"channel"`
	ActorID  string  `json:"actor_id" db:"actor_id"`
	TargetID string  `json:"target_id" db:"target_id"`
	Content  string  `json:"content" db:"content"`
}

// LogStore is the append-only event log read by the history builder.
type LogStore interface {
	Append(ctx context.Context, e GameEvent) error
	Events(ctx context.Context, gameID string) ([]GameEvent, error)
}

type EliminationCause string

const (
	CauseVote   EliminationCause = "vote"
	CauseHunter EliminationCause = "hunter"
)

// EventSink receives the game lifecycle in order. Implementations must not block for long.
type EventSink interface {
	PhaseChanged(phase Phase, round int)
	NightDeaths(ids []string)
	PlayerEliminated(id string, cause EliminationCause)
	HunterTriggered(id string)
	VoteResults(tally map[string]int, eliminated string)
	DeathCheckpoint(id string)
	SpeechChunk(playerID, chunk string)
	Speech(playerID, text string)
	GameEnded(winner Faction)
	GameError(err error)
}

// multiSink fans every event out to each sink in order.
type multiSink []EventSink

func (m multiSink) PhaseChanged(phase Phase, round int) {
	for _, s := range m {
		s.PhaseChanged(phase, round)
	}
}

func (m multiSink) NightDeaths(ids []string) {
	for _, s := range m {
		s.NightDeaths(ids)
	}
}

func (m multiSink) PlayerEliminated(id string, cause EliminationCause) {
	for _, s := range m {
		s.PlayerEliminated(id, cause)
	}
}

func (m multiSink) HunterTriggered(id string) {
	for _, s := range m {
		s.HunterTriggered(id)
	}
}

func (m multiSink) VoteResults(tally map[string]int, eliminated string) {
	for _, s := range m {
		s.VoteResults(tally, eliminated)
	}
}

func (m multiSink) DeathCheckpoint(id string) {
	for _, s := range m {
		s.DeathCheckpoint(id)
	}
}

func (m multiSink) SpeechChunk(playerID, chunk string) {
	for _, s := range m {
		s.SpeechChunk(playerID, chunk)
	}
}

func (m multiSink) Speech(playerID, text string) {
	for _, s := range m {
		s.Speech(playerID, text)
	}
}

func (m multiSink) GameEnded(winner Faction) {
	for _, s := range m {
		s.GameEnded(winner)
	}
}

func (m multiSink) GameError(err error) {
	for _, s := range m {
		s.GameError(err)
	}
}
