package main

import (
	"slices"
	"testing"
	"testing/quick"
)

func TestApplyPatchDoesNotMutateInput(t *testing.T) {
	logger := NewTestLogger(t)
	logger.Debug("=== Testing applyPatch purity ===")

	s := newRoundState(seatPlayers(RoleWolf, RoleSeer, RoleWitch, RoleVillager, RoleVillager, RoleHunter))
	s.Speeches = []Speech{{PlayerID: "p0", Text: "hello"}}
	s.Votes = map[string]string{"p0": "p1"}
	before := s.Speeches[0]

	next := applyPatch(s, RoundPatch{
		NightKill:   ptr("p3"),
		Speeches:    []Speech{{PlayerID: "p1", Text: "hi"}},
		Votes:       map[string]string{"p1": "p0"},
		NightDeaths: []string{"p3"},
		Memory: map[string]MemoryPatch{
			"p2": {UseAntidote: true},
			"p1": {SeerResults: []SeerResult{{TargetID: "p0", Faction: FactionWolf}}},
		},
	})

	if s.NightKill != "" || len(s.Speeches) != 1 || len(s.Votes) != 1 || len(s.NightDeaths) != 0 {
		logger.LogDB("FAIL: input state was mutated")
		t.Errorf("input state was mutated: %+v", s)
	}
	if s.Speeches[0] != before {
		t.Errorf("input speech changed")
	}
	if !s.Players[2].Memory.Antidote || len(s.Players[1].Memory.SeerResults) != 0 {
		t.Errorf("input memory was mutated")
	}

	if next.NightKill != "p3" {
		t.Errorf("NightKill = %q, want p3", next.NightKill)
	}
	if len(next.Speeches) != 2 || next.Speeches[1].PlayerID != "p1" {
		t.Errorf("speeches should concatenate, got %v", next.Speeches)
	}
	if next.Votes["p0"] != "p1" || next.Votes["p1"] != "p0" {
		t.Errorf("votes should merge, got %v", next.Votes)
	}
	if next.Players[2].Memory.Antidote || !next.Players[2].Memory.Poison {
		t.Errorf("only the antidote should be spent, got %+v", next.Players[2].Memory)
	}
	if len(next.Players[1].Memory.SeerResults) != 1 {
		t.Errorf("seer result should be appended, got %+v", next.Players[1].Memory)
	}
}

func TestApplyPatchNilScalarsKeepState(t *testing.T) {
	f := func(kill string, saved bool, poison string) bool {
		s := newRoundState(seatPlayers(RoleWolf, RoleVillager))
		s.NightKill, s.WitchSaved, s.WitchPoison = kill, saved, poison
		next := applyPatch(s, RoundPatch{})
		return next.NightKill == kill && next.WitchSaved == saved && next.WitchPoison == poison
	}
	if err := quick.Check(f, &quick.Config{MaxCount: 5}); err != nil {
		t.Error(err)
	}
}

func TestApplyPatchUnknownMemoryTargetIgnored(t *testing.T) {
	s := newRoundState(seatPlayers(RoleWolf, RoleWitch))
	next := applyPatch(s, RoundPatch{Memory: map[string]MemoryPatch{"nobody": {UsePoison: true}}})
	if !next.Players[1].Memory.Poison {
		t.Errorf("unknown id must not touch anyone's memory")
	}
}

func TestResetRound(t *testing.T) {
	s := newRoundState(seatPlayers(RoleWolf, RoleSeer, RoleVillager))
	s.Phase = PhaseVote
	s.NightKill = "p1"
	s.WitchSaved = true
	s.WitchPoison = "p2"
	s.NightDeaths = []string{"p1"}
	s.Speeches = []Speech{{PlayerID: "p0"}}
	s.Votes = map[string]string{"p0": "p2"}
	s.VoteEliminated = "p2"
	s.HunterShots = []string{"p1"}

	next := resetRound(s)
	if next.Phase != PhaseNight || next.Round != 2 {
		t.Errorf("expected night of round 2, got %s %d", next.Phase, next.Round)
	}
	if next.NightKill != "" || next.WitchSaved || next.WitchPoison != "" || next.NightDeaths != nil ||
		next.Speeches != nil || next.Votes != nil || next.VoteEliminated != "" || next.HunterShots != nil {
		t.Errorf("scratch fields not cleared: %+v", next)
	}
	if len(next.Players) != 3 || !slices.Equal(next.AliveIDs, s.AliveIDs) {
		t.Errorf("players must survive the reset")
	}
}

func TestKillParticipant(t *testing.T) {
	s := newRoundState(seatPlayers(RoleWolf, RoleSeer, RoleVillager))
	p, ok := killParticipant(&s, "p1")
	if !ok || p.ID != "p1" || p.Alive {
		t.Fatalf("expected p1 to die, got %+v %t", p, ok)
	}
	if !slices.Equal(s.AliveIDs, []string{"p0", "p2"}) {
		t.Errorf("AliveIDs = %v", s.AliveIDs)
	}
	if _, ok := killParticipant(&s, "p1"); ok {
		t.Errorf("killing a dead participant must be a no-op")
	}
	if _, ok := killParticipant(&s, "ghost"); ok {
		t.Errorf("killing an unknown id must be a no-op")
	}
	if len(s.AliveIDs) != 2 {
		t.Errorf("AliveIDs changed by a no-op kill: %v", s.AliveIDs)
	}
}

func TestAliveIDsFollowSeatOrder(t *testing.T) {
	players := seatPlayers(RoleWolf, RoleSeer, RoleWitch, RoleVillager)
	slices.Reverse(players)
	s := newRoundState(players)
	if !slices.Equal(s.AliveIDs, []string{"p0", "p1", "p2", "p3"}) {
		t.Errorf("AliveIDs should be in seat order, got %v", s.AliveIDs)
	}
	wolves := s.aliveWithRole(RoleWolf)
	if len(wolves) != 1 || wolves[0].ID != "p0" {
		t.Errorf("aliveWithRole(wolf) = %v", wolves)
	}
}
