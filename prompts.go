package main

import (
	"fmt"
	"strings"
)

const gameRulesPrompt = `You are %s, seat %d, in a game of Werewolf with %d players.
The wolves secretly kill one player each night. The seer inspects one player per night and learns their faction. The witch holds one antidote (cancels the wolves' kill) and one poison (kills a player), each usable once per game. A hunter who dies, except by poison, shoots one player. During the day every living player speaks once and then everyone votes to eliminate one suspect.
The village wins when every wolf is dead. The wolves win when they are at least as many as everyone else.`

var rolePrompts = map[Role]string{
	RoleWolf:     "You are a WOLF. Kill villagers at night and blend in during the day. Never reveal your role or your teammates.",
	RoleSeer:     "You are the SEER, on the village side. Use your inspections to find the wolves and guide the vote without getting yourself killed.",
	RoleWitch:    "You are the WITCH, on the village side. Spend your antidote and poison wisely; each works only once.",
	RoleHunter:   "You are the HUNTER, on the village side. If you are killed you may shoot one player, so make your suspicions count.",
	RoleVillager: "You are a VILLAGER. You have no night power; find the wolves through discussion and voting.",
}

var channelLabels = map[Channel]string{
	ChannelWolfDiscussion: "Wolf discussion",
	ChannelKillDecision:   "Wolf decision",
	ChannelSeerResult:     "Your inspection",
	ChannelWitchNotice:    "Witch notice",
	ChannelWitchAction:    "Your potion",
	ChannelAnnouncement:   "Announcement",
	ChannelSpeech:         "Speech",
	ChannelVoteResult:     "Vote",
	ChannelLastWords:      "Last words",
}

// systemPrompt describes the game, the participant's role and what they privately know.
func systemPrompt(in TurnInfo) string {
	self := in.Self
	var b strings.Builder
	fmt.Fprintf(&b, gameRulesPrompt, self.Name, self.Seat+1, in.Players)
	b.WriteString("\n\n")
	b.WriteString(rolePrompts[self.Role])

	if len(in.Team) > 0 {
		fmt.Fprintf(&b, "\nYour fellow wolves: %s.", formatPlayers(in.Team))
	}
	if len(self.Memory.SeerResults) > 0 {
		b.WriteString("\nYour inspection results so far:")
		for _, r := range self.Memory.SeerResults {
			fmt.Fprintf(&b, "\n- %s (id %s) is %s", r.TargetName, r.TargetID, r.Faction)
		}
	}
	if self.Role == RoleWitch {
		fmt.Fprintf(&b, "\nAntidote available: %t. Poison available: %t.", self.Memory.Antidote, self.Memory.Poison)
	}
	return b.String()
}

// formatHistory renders the visible log as plain lines, one per event.
func formatHistory(events []GameEvent) string {
	if len(events) == 0 {
		return "Nothing has happened yet."
	}
	var b strings.Builder
	for _, e := range events {
		fmt.Fprintf(&b, "[Round %d, %s] %s: %s\n", e.Round, e.Phase, channelLabels[e.Channel], e.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatPlayers(players []PlayerRef) string {
	parts := make([]string, len(players))
	for i, p := range players {
		parts[i] = fmt.Sprintf("%s (id %s, seat %d)", p.Name, p.ID, p.Seat+1)
	}
	return strings.Join(parts, ", ")
}

func killTask(in NightInput) string {
	return fmt.Sprintf("It is night %d. Choose a player for the wolves to kill. Living players: %s.",
		in.Round, formatPlayers(in.Alive))
}

func inspectTask(in NightInput) string {
	return fmt.Sprintf("It is night %d. Choose a player to inspect. Living players: %s.",
		in.Round, formatPlayers(in.Alive))
}

func witchTask(in NightInput) string {
	target := "The wolves attacked nobody tonight."
	if in.KillTarget != "" {
		target = fmt.Sprintf("The wolves attacked %s (id %s) tonight.", in.KillTargetName, in.KillTarget)
	}
	return fmt.Sprintf("It is night %d. %s Antidote available: %t. Poison available: %t. "+
		"Choose save, poison (with a target) or skip. Living players: %s.",
		in.Round, target, in.Antidote, in.Poison, formatPlayers(in.Alive))
}

func speechTask(in SpeechInput) string {
	if in.LastWords {
		return "You have been voted out. Say your last words to the village in two or three sentences. Reply with the speech only."
	}
	return fmt.Sprintf("It is day %d and your turn to speak. Share your suspicions in two to four sentences. "+
		"Stay in character and do not reveal private information carelessly. Reply with the speech only.", in.Round)
}

func voteTask(in VoteInput) string {
	return fmt.Sprintf("Day %d discussion is over. Vote for the player to eliminate. Living players: %s.",
		in.Round, formatPlayers(in.Alive))
}

func hunterTask(in HunterInput) string {
	return fmt.Sprintf("You have died. As the hunter you take one player with you. Living players: %s.",
		formatPlayers(in.Alive))
}
