package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
)

func seedGame(t *testing.T, tc *TestContext, gameID string) []Participant {
	t.Helper()
	players := seatPlayers(RoleWolf, RoleSeer, RoleWitch, RoleHunter, RoleVillager, RoleVillager)
	players[0].Human = true
	if err := insertGameRecord(context.Background(), tc.db, gameID, players, map[string]string{"p0": "c0de"}); err != nil {
		t.Fatalf("insertGameRecord: %v", err)
	}
	return players
}

func TestSQLStoreKeepsAppendOrder(t *testing.T) {
	tc := newTestContext(t)
	tc.logger.Debug("=== Testing sqlStore ordering ===")
	seedGame(t, tc, "g1")
	seedGame(t, tc, "g2")

	store := &sqlStore{db: tc.db}
	ctx := context.Background()
	for i := range 5 {
		for _, gid := range []string{"g1", "g2"} {
			e := GameEvent{
				ID:      fmt.Sprintf("%s-e%d", gid, i),
				GameID:  gid,
				Round:   1 + i/2,
				Phase:   PhaseDay,
				Channel: ChannelSpeech,
				ActorID: "p1",
				Content: fmt.Sprintf("speech %d", i),
			}
			if err := store.Append(ctx, e); err != nil {
				t.Fatalf("Append: %v", err)
			}
		}
	}

	events, err := store.Events(ctx, "g1")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 5 {
		tc.logger.LogDB("FAIL: wrong event count")
		t.Fatalf("expected 5 events for g1, got %d", len(events))
	}
	for i, e := range events {
		if e.Content != fmt.Sprintf("speech %d", i) || e.GameID != "g1" {
			t.Errorf("event %d = %+v", i, e)
		}
		if i > 0 && e.Seq <= events[i-1].Seq {
			t.Errorf("seq not increasing: %d after %d", e.Seq, events[i-1].Seq)
		}
	}
}

func TestSQLStoreRejectsDuplicateID(t *testing.T) {
	tc := newTestContext(t)
	seedGame(t, tc, "g1")
	store := &sqlStore{db: tc.db}
	e := GameEvent{ID: "same", GameID: "g1", Round: 1, Phase: PhaseNight, Channel: ChannelKillDecision, Content: "x"}
	if err := store.Append(context.Background(), e); err != nil {
		t.Fatal(err)
	}
	if err := store.Append(context.Background(), e); err == nil {
		t.Error("duplicate event id should fail")
	}
}

func TestStoreSinkMirrorsLifecycle(t *testing.T) {
	tc := newTestContext(t)
	tc.logger.Debug("=== Testing storeSink updates ===")
	seedGame(t, tc, "g1")
	sink := &storeSink{db: tc.db, gameID: "g1"}

	sink.PhaseChanged(PhaseDay, 2)
	sink.NightDeaths([]string{"p1", "p2"})
	sink.PlayerEliminated("p3", CauseVote)

	rec, err := getGameRecord(tc.db, "g1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != "day" || rec.Round != 2 {
		t.Errorf("record = %+v", rec)
	}
	players, err := getParticipantRecords(tc.db, "g1")
	if err != nil {
		t.Fatal(err)
	}
	alive := map[string]bool{}
	for _, p := range players {
		alive[p.ID] = p.Alive
	}
	for id, want := range map[string]bool{"p0": true, "p1": false, "p2": false, "p3": false, "p4": true} {
		if alive[id] != want {
			tc.logger.LogDB("FAIL: wrong alive flag")
			t.Errorf("%s alive = %t, want %t", id, alive[id], want)
		}
	}

	sink.GameEnded(FactionVillage)
	rec, _ = getGameRecord(tc.db, "g1")
	if rec.Status != "ended" || rec.Winner != "village" {
		t.Errorf("record after end = %+v", rec)
	}

	sink.GameError(errors.New("boom"))
	rec, _ = getGameRecord(tc.db, "g1")
	if rec.Status != "error" || rec.Error != "boom" {
		t.Errorf("record after error = %+v", rec)
	}
}

func TestFindParticipantByCode(t *testing.T) {
	tc := newTestContext(t)
	seedGame(t, tc, "g1")

	p, err := findParticipantByCode(tc.db, "g1", "c0de")
	if err != nil {
		t.Fatal(err)
	}
	if p.ID != "p0" || !p.Human || p.Role != RoleWolf {
		t.Errorf("participant = %+v", p)
	}
	if _, err := findParticipantByCode(tc.db, "g1", "nope"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("unknown code: expected sql.ErrNoRows, got %v", err)
	}
	if _, err := findParticipantByCode(tc.db, "g1", ""); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("AI seats must not match an empty code, got %v", err)
	}
	if _, err := findParticipantByCode(tc.db, "other", "c0de"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("code from another game: expected sql.ErrNoRows, got %v", err)
	}
}

func TestInsertGameRecordRollsBack(t *testing.T) {
	tc := newTestContext(t)
	players := seatPlayers(RoleWolf, RoleSeer)
	players[1].ID = players[0].ID
	if err := insertGameRecord(context.Background(), tc.db, "g1", players, nil); err == nil {
		t.Fatal("duplicate seat ids should fail")
	}
	if _, err := getGameRecord(tc.db, "g1"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("failed insert must not leave a game row, got %v", err)
	}
}

func TestGameWithSQLStore(t *testing.T) {
	tc := newTestContext(t)
	players := seedGame(t, tc, "g1")
	sink := &recordingSink{}
	g, s := newGame("g1", players, gameOptions{
		Store: &sqlStore{db: tc.db},
		Sink:  multiSink{&storeSink{db: tc.db, gameID: "g1"}, sink},
		Slot: autoAnswerSlot(func(p InterruptPayload) any {
			return CheckpointDecision{Choice: CheckpointContinue}
		}),
		Intn: func(int) int { return 0 },
	})
	scripted := map[string]*scriptedProvider{}
	for _, p := range players {
		scripted[p.ID] = &scriptedProvider{vote: voteFor("p0")}
		g.providers[p.ID] = scripted[p.ID]
	}
	scripted["p0"].vote = voteFor("p1")

	final, out, err := g.runGame(context.Background(), s)
	if err != nil || out != outcomeEnded || final.Winner != FactionVillage {
		t.Fatalf("runGame = %s, %v, winner %q", out, err, final.Winner)
	}
	rec, err := getGameRecord(tc.db, "g1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != "ended" || rec.Winner != "village" {
		tc.logger.LogDB("FAIL: game record not finished")
		t.Errorf("record = %+v", rec)
	}
	events, err := (&sqlStore{db: tc.db}).Events(context.Background(), "g1")
	if err != nil || len(events) == 0 {
		t.Fatalf("events = %d, %v", len(events), err)
	}
	if events[len(events)-1].Channel != ChannelVoteResult {
		t.Errorf("last event should be the vote result, got %s", events[len(events)-1].Channel)
	}
}
