package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

type roundOutcome int

const (
	outcomeContinue roundOutcome = iota
	outcomeEnded
	outcomeRestart
	outcomeFailed
)

func (o roundOutcome) String() string {
	switch o {
	case outcomeContinue:
		return "continue"
	case outcomeEnded:
		return "ended"
	case outcomeRestart:
		return "restart"
	}
	return "failed"
}

// Game drives one match from the first night to a winner.
type Game struct {
	ID         string
	store      LogStore
	sink       EventSink
	slot       *InterruptSlot
	reasoner   Reasoner
	retry      retryPolicy
	providers  map[string]ActionProvider
	intn       func(int) int
	phaseDelay time.Duration
	lastWords  bool

	mu       sync.RWMutex
	snapshot RoundState
}

type gameOptions struct {
	Store      LogStore
	Sink       EventSink
	Slot       *InterruptSlot
	Reasoner   Reasoner
	RetryBase  time.Duration
	PhaseDelay time.Duration
	LastWords  bool
	// Intn defaults to crypto/rand.
	Intn func(int) int
}

// newGame wires a game for players and returns it with its round-one state.
func newGame(id string, players []Participant, opts gameOptions) (*Game, RoundState) {
	if id == "" {
		id = uuid.NewString()
	}
	g := &Game{
		ID:         id,
		store:      opts.Store,
		sink:       opts.Sink,
		slot:       opts.Slot,
		reasoner:   opts.Reasoner,
		retry:      retryPolicy{Base: opts.RetryBase},
		providers:  make(map[string]ActionProvider, len(players)),
		intn:       opts.Intn,
		phaseDelay: opts.PhaseDelay,
		lastWords:  opts.LastWords,
	}
	if g.sink == nil {
		g.sink = multiSink{}
	}
	if g.slot == nil {
		g.slot = NewInterruptSlot(nil)
	}
	if g.intn == nil {
		g.intn = cryptoIntn
	}
	for _, p := range players {
		g.providers[p.ID] = g.newActionProvider(p)
	}
	s := newRoundState(players)
	g.setState(s)
	return g, s
}

func (g *Game) provider(id string) (ActionProvider, bool) {
	p, ok := g.providers[id]
	return p, ok
}

// State returns the latest published state.
func (g *Game) State() RoundState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.snapshot
}

func (g *Game) setState(s RoundState) {
	g.mu.Lock()
	g.snapshot = s
	g.mu.Unlock()
}

// record appends an event to the game log.
func (g *Game) record(ctx context.Context, s RoundState, ch Channel, actor, target, content string) error {
	e := GameEvent{
		ID:       uuid.NewString(),
		GameID:   g.ID,
		Round:    s.Round,
		Phase:    s.Phase,
		Channel:  ch,
		ActorID:  actor,
		TargetID: target,
		Content:  content,
	}
	if err := g.store.Append(ctx, e); err != nil {
		return fmt.Errorf("append %s event: %w", ch, err)
	}
	return nil
}

func (g *Game) enterPhase(s *RoundState, phase Phase) {
	s.Phase = phase
	g.setState(*s)
	DebugLog("game.phase", "Game %s round %d: %s", g.ID, s.Round, phase)
	g.sink.PhaseChanged(phase, s.Round)
}

// pause waits the pacing delay between phases.
func (g *Game) pause(ctx context.Context) {
	if g.phaseDelay <= 0 {
		return
	}
	t := time.NewTimer(g.phaseDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// runGame plays rounds until a faction wins, a human asks for a restart, or a phase fails.
// A failure is reported once through the sink and returned; nothing is rolled back.
func (g *Game) runGame(ctx context.Context, s RoundState) (RoundState, roundOutcome, error) {
	log.Printf("Game %s: starting with %d players", g.ID, len(s.Players))
	for {
		next, out, err := g.runRound(ctx, s)
		s = next
		switch {
		case err != nil:
			log.Printf("Game %s: fatal error in round %d: %v", g.ID, s.Round, err)
			gamesFinished.WithLabelValues("error").Inc()
			g.sink.GameError(err)
			return s, outcomeFailed, err
		case out == outcomeEnded:
			gamesFinished.WithLabelValues(string(s.Winner)).Inc()
			return s, out, nil
		case out == outcomeRestart:
			log.Printf("Game %s: restart requested in round %d", g.ID, s.Round)
			gamesFinished.WithLabelValues("restart").Inc()
			return s, out, nil
		}
	}
}

// runRound plays night, day and vote once.
func (g *Game) runRound(ctx context.Context, s RoundState) (RoundState, roundOutcome, error) {
	g.enterPhase(&s, PhaseNight)
	patch, err := g.runNight(ctx, s)
	s = applyPatch(s, patch)
	if err != nil {
		return s, outcomeFailed, fmt.Errorf("night %d: %w", s.Round, err)
	}
	if out, err := g.applyNightDeaths(ctx, &s); err != nil || out != outcomeContinue {
		return s, out, err
	}
	if winner := checkWinCondition(s.Players); winner != FactionNone {
		return g.finish(s, winner), outcomeEnded, nil
	}
	g.pause(ctx)

	s.Speeches = nil
	g.enterPhase(&s, PhaseDay)
	patch, err = g.runDay(ctx, s)
	s = applyPatch(s, patch)
	if err != nil {
		return s, outcomeFailed, fmt.Errorf("day %d: %w", s.Round, err)
	}
	g.pause(ctx)

	s.Votes = nil
	g.enterPhase(&s, PhaseVote)
	patch, err = g.runVote(ctx, s)
	s = applyPatch(s, patch)
	if err != nil {
		return s, outcomeFailed, fmt.Errorf("vote %d: %w", s.Round, err)
	}
	g.setState(s)
	g.sink.VoteResults(voteTally(s.Votes), s.VoteEliminated)
	if s.VoteEliminated != "" {
		if out, err := g.eliminateByVote(ctx, &s, s.VoteEliminated); err != nil || out != outcomeContinue {
			return s, out, err
		}
	}
	if winner := checkWinCondition(s.Players); winner != FactionNone {
		return g.finish(s, winner), outcomeEnded, nil
	}
	g.pause(ctx)

	s = resetRound(s)
	g.setState(s)
	return s, outcomeContinue, nil
}

// applyNightDeaths kills the night victims, runs the human checkpoints, then the hunter.
func (g *Game) applyNightDeaths(ctx context.Context, s *RoundState) (roundOutcome, error) {
	var died []Participant
	for _, id := range s.NightDeaths {
		if p, ok := killParticipant(s, id); ok {
			died = append(died, p)
		}
	}
	ids := make([]string, len(died))
	for i, p := range died {
		ids[i] = p.ID
	}
	g.setState(*s)
	g.sink.NightDeaths(ids)

	for _, p := range died {
		if !p.Human {
			continue
		}
		restart, err := g.deathCheckpoint(ctx, *s, p)
		if err != nil {
			return outcomeFailed, err
		}
		if restart {
			return outcomeRestart, nil
		}
	}
	for _, p := range died {
		if p.Role != RoleHunter || p.ID == s.WitchPoison {
			continue
		}
		if out, err := g.runHunter(ctx, s, p.ID); err != nil || out != outcomeContinue {
			return out, err
		}
	}
	return outcomeContinue, nil
}

func (g *Game) eliminateByVote(ctx context.Context, s *RoundState, id string) (roundOutcome, error) {
	victim, ok := killParticipant(s, id)
	if !ok {
		return outcomeContinue, nil
	}
	g.setState(*s)
	g.sink.PlayerEliminated(victim.ID, CauseVote)

	if g.lastWords {
		if err := g.sayLastWords(ctx, *s, victim); err != nil {
			return outcomeFailed, err
		}
	}
	if victim.Human {
		restart, err := g.deathCheckpoint(ctx, *s, victim)
		if err != nil {
			return outcomeFailed, err
		}
		if restart {
			return outcomeRestart, nil
		}
	}
	if victim.Role == RoleHunter {
		return g.runHunter(ctx, s, victim.ID)
	}
	return outcomeContinue, nil
}

func (g *Game) sayLastWords(ctx context.Context, s RoundState, victim Participant) error {
	prov, ok := g.provider(victim.ID)
	if !ok {
		return nil
	}
	text, err := prov.Speak(ctx, SpeechInput{TurnInfo: turnInfo(s, victim), Speeches: s.Speeches, LastWords: true})
	if err != nil {
		return fmt.Errorf("last words of %s: %w", victim.Name, err)
	}
	if err := g.record(ctx, s, ChannelLastWords, victim.ID, "", fmt.Sprintf("%s: %s", victim.Name, text)); err != nil {
		return err
	}
	g.sink.Speech(victim.ID, text)
	return nil
}

type checkpointInfo struct {
	Round int    `json:"round"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// deathCheckpoint asks a dead human whether to keep watching or restart the game.
func (g *Game) deathCheckpoint(ctx context.Context, s RoundState, p Participant) (bool, error) {
	g.sink.DeathCheckpoint(p.ID)
	info := checkpointInfo{Round: s.Round, Name: p.Name, Role: p.Role}
	d, err := askHuman[CheckpointDecision](ctx, g.slot, KindDeathCheckpoint, p.ID, info)
	if err != nil {
		return false, fmt.Errorf("death checkpoint for %s: %w", p.Name, err)
	}
	DebugLog("game.checkpoint", "%s chose %s", p.Name, d.Choice)
	return d.Choice == CheckpointRestart, nil
}

// finish marks the game ended and announces the winner.
func (g *Game) finish(s RoundState, winner Faction) RoundState {
	s.Winner = winner
	s.Phase = PhaseEnded
	g.setState(s)
	log.Printf("Game %s: %s wins after round %d", g.ID, winner, s.Round)
	g.sink.PhaseChanged(PhaseEnded, s.Round)
	g.sink.GameEnded(winner)
	return s
}
