package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// GameRecord is the persisted summary of one game.
type GameRecord struct {
	ID        string    `db:"id" json:"id"`
	Status    string    `db:"status" json:"status"` // night, day, vote, ended, error
	Round     int       `db:"round" json:"round"`
	Winner    string    `db:"winner" json:"winner,omitempty"`
	Error     string    `db:"error" json:"error,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ParticipantRecord is a seat as stored; JoinCode is only set for human seats.
type ParticipantRecord struct {
	GameID   string `db:"game_id"`
	ID       string `db:"id"`
	Name     string `db:"name"`
	Seat     int    `db:"seat"`
	Role     Role   `db:"role"`
	Human    bool   `db:"human"`
	Alive    bool   `db:"alive"`
	JoinCode string `db:"join_code"`
}

func openDB(path string) (*sqlx.DB, error) {
	conn, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", path, err)
	}
	// sqlite allows a single writer; one connection also keeps :memory: databases shared.
	conn.SetMaxOpenConns(1)
	if err := initDB(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func initDB(conn *sqlx.DB) error {
	schema := `
	PRAGMA journal_mode=WAL;

	CREATE TABLE IF NOT EXISTS game (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL DEFAULT 'night',
		round INTEGER NOT NULL DEFAULT 1,
		winner TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS participant (
		game_id TEXT NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		seat INTEGER NOT NULL,
		role TEXT NOT NULL,
		human BOOLEAN NOT NULL DEFAULT 0,
		alive BOOLEAN NOT NULL DEFAULT 1,
		join_code TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (game_id, id),
		FOREIGN KEY (game_id) REFERENCES game(id)
	);
	CREATE TABLE IF NOT EXISTS game_event (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		game_id TEXT NOT NULL,
		round INTEGER NOT NULL,
		phase TEXT NOT NULL,
		channel TEXT NOT NULL,
		actor_id TEXT NOT NULL DEFAULT '',
		target_id TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (game_id) REFERENCES game(id)
	);
	CREATE INDEX IF NOT EXISTS idx_game_event_game ON game_event(game_id, seq);
	`
	if _, err := conn.Exec(schema); err != nil {
		log.Printf("initDB error: %v", err)
		return err
	}
	log.Printf("Database initialized successfully")
	return nil
}

// sqlStore is the LogStore backed by the game_event table.
type sqlStore struct {
	db *sqlx.DB
}

func (s *sqlStore) Append(ctx context.Context, e GameEvent) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO game_event (id, game_id, round, phase, channel, actor_id, target_id, content)
		VALUES (:id, :game_id, :round, :phase, :channel, :actor_id, :target_id, :content)`, e)
	if err != nil {
		return fmt.Errorf("insert game_event: %w", err)
	}
	return nil
}

func (s *sqlStore) Events(ctx context.Context, gameID string) ([]GameEvent, error) {
	var events []GameEvent
	err := s.db.SelectContext(ctx, &events, `
		SELECT seq, id, game_id, round, phase, channel, actor_id, target_id, content
		FROM game_event
		WHERE game_id = ?
		ORDER BY seq`, gameID)
	if err != nil {
		return nil, fmt.Errorf("select game_event: %w", err)
	}
	return events, nil
}

// insertGameRecord stores a new game and its seats in one transaction.
func insertGameRecord(ctx context.Context, conn *sqlx.DB, gameID string, players []Participant, codes map[string]string) error {
	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO game (id) VALUES (?)`, gameID); err != nil {
		return fmt.Errorf("insert game: %w", err)
	}
	for _, p := range players {
		rec := ParticipantRecord{
			GameID:   gameID,
			ID:       p.ID,
			Name:     p.Name,
			Seat:     p.Seat,
			Role:     p.Role,
			Human:    p.Human,
			Alive:    p.Alive,
			JoinCode: codes[p.ID],
		}
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO participant (game_id, id, name, seat, role, human, alive, join_code)
			VALUES (:game_id, :id, :name, :seat, :role, :human, :alive, :join_code)`, rec)
		if err != nil {
			return fmt.Errorf("insert participant %s: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

func getGameRecord(conn *sqlx.DB, id string) (GameRecord, error) {
	var g GameRecord
	err := conn.Get(&g, `SELECT id, status, round, winner, error, created_at FROM game WHERE id = ?`, id)
	return g, err
}

func getParticipantRecords(conn *sqlx.DB, gameID string) ([]ParticipantRecord, error) {
	var players []ParticipantRecord
	err := conn.Select(&players, `
		SELECT game_id, id, name, seat, role, human, alive, join_code
		FROM participant
		WHERE game_id = ?
		ORDER BY seat`, gameID)
	return players, err
}

// findParticipantByCode looks up a human seat of gameID by its join code.
func findParticipantByCode(conn *sqlx.DB, gameID, code string) (ParticipantRecord, error) {
	var p ParticipantRecord
	err := conn.Get(&p, `
		SELECT game_id, id, name, seat, role, human, alive, join_code
		FROM participant
		WHERE game_id = ? AND join_code = ? AND human = 1`, gameID, code)
	return p, err
}

// storeSink mirrors the game lifecycle into the game and participant tables.
type storeSink struct {
	db     *sqlx.DB
	gameID string
}

func (s *storeSink) exec(op, query string, args ...any) {
	if _, err := s.db.Exec(query, args...); err != nil {
		logError("storeSink."+op, err)
		return
	}
	LogDBState("after " + op)
}

func (s *storeSink) markDead(op string, ids ...string) {
	for _, id := range ids {
		s.exec(op, `UPDATE participant SET alive = 0 WHERE game_id = ? AND id = ?`, s.gameID, id)
	}
}

func (s *storeSink) PhaseChanged(phase Phase, round int) {
	s.exec("PhaseChanged", `UPDATE game SET status = ?, round = ? WHERE id = ?`, string(phase), round, s.gameID)
}

func (s *storeSink) NightDeaths(ids []string) {
	s.markDead("NightDeaths", ids...)
}

func (s *storeSink) PlayerEliminated(id string, _ EliminationCause) {
	s.markDead("PlayerEliminated", id)
}

func (s *storeSink) GameEnded(winner Faction) {
	s.exec("GameEnded", `UPDATE game SET status = ?, winner = ? WHERE id = ?`, string(PhaseEnded), string(winner), s.gameID)
}

func (s *storeSink) GameError(err error) {
	s.exec("GameError", `UPDATE game SET status = 'error', error = ? WHERE id = ?`, err.Error(), s.gameID)
}

func (s *storeSink) HunterTriggered(string) {}
func (s *storeSink) VoteResults(map[string]int, string) {}
func (s *storeSink) DeathCheckpoint(string) {}
func (s *storeSink) SpeechChunk(string, string) {}
func (s *storeSink) Speech(string, string) {}
