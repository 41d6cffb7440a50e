package main

import (
	"slices"
)

// canSeeEvent determines if a participant may read an event based on its channel
func canSeeEvent(e GameEvent, viewer Participant) bool {
	if e.Channel.Public() {
		return true
	}
	switch e.Channel {
	case ChannelWolfDiscussion, ChannelKillDecision:
		return viewer.Role == RoleWolf
	case ChannelSeerResult:
		return viewer.Role == RoleSeer && e.ActorID == viewer.ID
	case ChannelWitchNotice, ChannelWitchAction:
		return viewer.Role == RoleWitch && e.ActorID == viewer.ID
	}
	return false
}

// buildHistory returns the events viewer may see, oldest round first. Within a round the
// private night entries come before the public ones, and each keeps its log order.
func buildHistory(viewer Participant, events []GameEvent) []GameEvent {
	visible := make([]GameEvent, 0, len(events))
	for _, e := range events {
		if canSeeEvent(e, viewer) {
			visible = append(visible, e)
		}
	}
	slices.SortStableFunc(visible, func(a, b GameEvent) int {
		if a.Round != b.Round {
			return a.Round - b.Round
		}
		return publicRank(a) - publicRank(b)
	})
	return visible
}

func publicRank(e GameEvent) int {
	if e.Channel.Public() {
		return 1
	}
	return 0
}
