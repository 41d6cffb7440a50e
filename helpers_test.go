package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/invopop/jsonschema"
	"github.com/jmoiron/sqlx"
)

// ============================================================================
// Test logger
// ============================================================================

// TestLogger wraps AppLogger for test use with testing.T integration
type TestLogger struct {
	*AppLogger
	t *testing.T
}

// NewTestLogger creates a test logger from TEST_* environment variables
func NewTestLogger(t *testing.T) *TestLogger {
	dir := os.Getenv("TEST_OUTPUT_DIR")
	if dir != "" {
		dir = dir + "/" + strings.ReplaceAll(t.Name(), "/", "_")
	}
	al, err := NewAppLogger(LogConfig{
		OutputDir:   dir,
		LogRequests: os.Getenv("TEST_LOG_REQUESTS") == "1",
		LogDB:       os.Getenv("TEST_LOG_DB") == "1",
		LogWS:       os.Getenv("TEST_LOG_WS") == "1",
		Debug:       os.Getenv("TEST_DEBUG") == "1",
	})
	if err != nil {
		t.Fatalf("Failed to create test logger: %v", err)
	}
	t.Cleanup(al.Close)
	return &TestLogger{AppLogger: al, t: t}
}

// Debug logs a debug message using testing.T.Logf
func (tl *TestLogger) Debug(format string, args ...any) {
	if !tl.debug {
		return
	}
	tl.t.Logf("[DEBUG] "+format, args...)
}

// ============================================================================
// Test context
// ============================================================================

// TestContext holds per-test infrastructure
type TestContext struct {
	t      *testing.T
	logger *TestLogger
	db     *sqlx.DB
}

func newTestContext(t *testing.T) *TestContext {
	logger := NewTestLogger(t)
	conn, err := openDB(":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	logger.AttachDB(conn)
	logger.LogDB("after initDB")
	t.Cleanup(func() {
		logger.LogDB("before cleanup")
		conn.Close()
	})
	return &TestContext{t: t, logger: logger, db: conn}
}

// ============================================================================
// Fakes
// ============================================================================

// memoryStore is an in-memory LogStore.
type memoryStore struct {
	mu     sync.Mutex
	events []GameEvent
	err    error
}

func (m *memoryStore) Append(_ context.Context, e GameEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	e.Seq = int64(len(m.events) + 1)
	m.events = append(m.events, e)
	return nil
}

func (m *memoryStore) Events(_ context.Context, gameID string) ([]GameEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []GameEvent
	for _, e := range m.events {
		if e.GameID == gameID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryStore) byChannel(ch Channel) []GameEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []GameEvent
	for _, e := range m.events {
		if e.Channel == ch {
			out = append(out, e)
		}
	}
	return out
}

// recordingSink records every event as a short line, in order.
type recordingSink struct {
	mu     sync.Mutex
	calls  []string
	chunks map[string]string
}

func (r *recordingSink) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *recordingSink) PhaseChanged(phase Phase, round int) {
	r.add("phase %s %d", phase, round)
}

func (r *recordingSink) NightDeaths(ids []string) {
	r.add("night_deaths %v", ids)
}

func (r *recordingSink) PlayerEliminated(id string, cause EliminationCause) {
	r.add("eliminated %s %s", id, cause)
}

func (r *recordingSink) HunterTriggered(id string) {
	r.add("hunter %s", id)
}

func (r *recordingSink) VoteResults(tally map[string]int, eliminated string) {
	r.add("vote_results %s", eliminated)
}

func (r *recordingSink) DeathCheckpoint(id string) {
	r.add("checkpoint %s", id)
}

func (r *recordingSink) SpeechChunk(playerID, chunk string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.chunks == nil {
		r.chunks = make(map[string]string)
	}
	r.chunks[playerID] += chunk
}

func (r *recordingSink) Speech(playerID, text string) {
	r.add("speech %s", playerID)
}

func (r *recordingSink) GameEnded(winner Faction) {
	r.add("ended %s", winner)
}

func (r *recordingSink) GameError(err error) {
	r.add("error %v", err)
}

func (r *recordingSink) count(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (r *recordingSink) has(call string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Contains(r.calls, call)
}

// scriptedProvider answers from per-method functions; a nil function abstains.
type scriptedProvider struct {
	night  func(NightInput) (NightAction, error)
	speak  func(SpeechInput) (string, error)
	vote   func(VoteInput) (string, error)
	hunter func(HunterInput) (string, error)
}

func (s *scriptedProvider) NightAction(_ context.Context, in NightInput) (NightAction, error) {
	if s.night == nil {
		return NightAction{Kind: ActionNone}, nil
	}
	return s.night(in)
}

func (s *scriptedProvider) Speak(_ context.Context, in SpeechInput) (string, error) {
	if s.speak == nil {
		return "I have nothing to add.", nil
	}
	return s.speak(in)
}

func (s *scriptedProvider) Vote(_ context.Context, in VoteInput) (string, error) {
	if s.vote == nil {
		return "", nil
	}
	return s.vote(in)
}

func (s *scriptedProvider) HunterShot(_ context.Context, in HunterInput) (string, error) {
	if s.hunter == nil {
		return "", nil
	}
	return s.hunter(in)
}

func kill(target string) func(NightInput) (NightAction, error) {
	return func(NightInput) (NightAction, error) {
		return NightAction{Kind: ActionKill, TargetID: target}, nil
	}
}

func inspect(target string) func(NightInput) (NightAction, error) {
	return func(NightInput) (NightAction, error) {
		return NightAction{Kind: ActionInspect, TargetID: target}, nil
	}
}

func witch(choice WitchChoice, target string) func(NightInput) (NightAction, error) {
	return func(NightInput) (NightAction, error) {
		return NightAction{Kind: ActionWitch, Witch: choice, TargetID: target}, nil
	}
}

func voteFor(target string) func(VoteInput) (string, error) {
	return func(VoteInput) (string, error) { return target, nil }
}

func shoot(target string) func(HunterInput) (string, error) {
	return func(HunterInput) (string, error) { return target, nil }
}

// fakeReasoner answers structured calls from a queue of JSON replies, then the fallback, and streams speech.
type fakeReasoner struct {
	mu         sync.Mutex
	replies    []string
	errs       []error
	fallback   string // used once replies run out; empty means fail
	speech     string
	structured int
	streamed   int
	lastMsgs   []ChatMessage
}

func (f *fakeReasoner) SubmitStructured(_ context.Context, msgs []ChatMessage, _ *jsonschema.Schema, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.structured++
	f.lastMsgs = msgs
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return err
		}
	}
	reply := f.fallback
	if len(f.replies) > 0 {
		reply = f.replies[0]
		f.replies = f.replies[1:]
	}
	if reply == "" {
		return &RequestFailure{Op: "structured", Err: fmt.Errorf("no scripted reply")}
	}
	if err := json.Unmarshal([]byte(reply), out); err != nil {
		return &RequestFailure{Op: "structured", Err: err}
	}
	if v, ok := out.(validator); ok {
		if err := v.validate(); err != nil {
			return &RequestFailure{Op: "structured", Err: err}
		}
	}
	return nil
}

func (f *fakeReasoner) SubmitStreaming(_ context.Context, msgs []ChatMessage, onChunk func(string)) (string, error) {
	f.mu.Lock()
	f.streamed++
	f.lastMsgs = msgs
	text := f.speech
	f.mu.Unlock()
	for _, word := range strings.SplitAfter(text, " ") {
		onChunk(word)
	}
	return text, nil
}

// ============================================================================
// Game fixtures
// ============================================================================

// seatPlayers seats one participant per role, ids p0, p1, ... in seat order.
func seatPlayers(roles ...Role) []Participant {
	players := make([]Participant, len(roles))
	for i, r := range roles {
		players[i] = Participant{
			ID:    fmt.Sprintf("p%d", i),
			Name:  fmt.Sprintf("P%d", i),
			Seat:  i,
			Role:  r,
			Alive: true,
		}
		if r == RoleWitch {
			players[i].Memory = Memory{Antidote: true, Poison: true}
		}
	}
	return players
}

type testGame struct {
	*Game
	store     *memoryStore
	sink      *recordingSink
	providers map[string]*scriptedProvider
}

// newTestGame builds a game whose every participant is a scriptedProvider.
// intn always returns 0 so speak order and ties are deterministic.
func newTestGame(t *testing.T, players []Participant) (*testGame, RoundState) {
	t.Helper()
	store := &memoryStore{}
	sink := &recordingSink{}
	g, s := newGame("test-game", players, gameOptions{
		Store: store,
		Sink:  sink,
		Intn:  func(int) int { return 0 },
	})
	tg := &testGame{Game: g, store: store, sink: sink, providers: make(map[string]*scriptedProvider)}
	for _, p := range players {
		sp := &scriptedProvider{}
		tg.providers[p.ID] = sp
		g.providers[p.ID] = sp
	}
	return tg, s
}

// autoAnswerSlot returns a slot that resolves every interrupt as soon as it is published.
func autoAnswerSlot(answer func(InterruptPayload) any) *InterruptSlot {
	var slot *InterruptSlot
	slot = NewInterruptSlot(func(p InterruptPayload) {
		raw, err := json.Marshal(answer(p))
		if err != nil {
			panic(err)
		}
		if err := slot.Resolve(raw); err != nil {
			panic(err)
		}
	})
	return slot
}
