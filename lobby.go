package main

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	errGameRunning   = errors.New("a game is already running")
	errNotYourTurn   = errors.New("the game is not waiting on you")
	errStaleDecision = errors.New("that decision is no longer pending")
)

// gameSettings is the table setup every new game starts from.
type gameSettings struct {
	Players    int
	Humans     int
	HumanName  string
	RetryBase  time.Duration
	PhaseDelay time.Duration
	LastWords  bool
}

// Server owns the current game and connects it to the database and the hub.
type Server struct {
	ctx      context.Context
	db       *sqlx.DB
	hub      *Hub
	reasoner Reasoner
	settings gameSettings
	intn     func(int) int

	mu      sync.Mutex
	game    *Game
	codes   map[string]string
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// StartResult is returned to whoever starts a game. JoinCodes maps human seats to their codes.
type StartResult struct {
	GameID    string            `json:"game_id"`
	Players   []PlayerRef       `json:"players"`
	JoinCodes map[string]string `json:"join_codes,omitempty"`
}

func newServer(ctx context.Context, conn *sqlx.DB, hub *Hub, reasoner Reasoner, settings gameSettings) *Server {
	s := &Server{
		ctx:      ctx,
		db:       conn,
		hub:      hub,
		reasoner: reasoner,
		settings: settings,
	}
	hub.onConnect = s.handleConnect
	hub.onMessage = s.handleWSMessage
	return s
}

func (s *Server) currentGame() *Game {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.game
}

// startGame seats a new table and runs it in the background.
func (s *Server) startGame(ctx context.Context) (StartResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return StartResult{}, errGameRunning
	}

	g, st, res, err := s.setupGameLocked(ctx)
	if err != nil {
		return StartResult{}, err
	}

	runCtx, cancel := context.WithCancel(s.ctx)
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.runLoop(runCtx, g, st, s.done)
	return res, nil
}

// setupGameLocked creates the participants, the database records and the Game. s.mu must be held.
func (s *Server) setupGameLocked(ctx context.Context) (*Game, RoundState, StartResult, error) {
	players, err := newParticipants(s.settings.Players, s.settings.Humans, s.settings.HumanName)
	if err != nil {
		return nil, RoundState{}, StartResult{}, err
	}
	codes, err := assignJoinCodes(players, s.codes)
	if err != nil {
		return nil, RoundState{}, StartResult{}, err
	}

	id := uuid.NewString()
	if err := insertGameRecord(ctx, s.db, id, players, codes); err != nil {
		logError("setupGame: insertGameRecord", err)
		return nil, RoundState{}, StartResult{}, err
	}
	LogDBState("after game setup")

	g, st := newGame(id, players, gameOptions{
		Store:      &sqlStore{db: s.db},
		Sink:       multiSink{&storeSink{db: s.db, gameID: id}, &hubSink{hub: s.hub}},
		Slot:       NewInterruptSlot(s.hub.notifyInterrupt),
		Reasoner:   s.reasoner,
		RetryBase:  s.settings.RetryBase,
		PhaseDelay: s.settings.PhaseDelay,
		LastWords:  s.settings.LastWords,
		Intn:       s.intn,
	})
	s.game = g
	s.codes = codes

	log.Printf("Game %s created: %d players, %d human", id, len(players), len(codes))
	for _, p := range players {
		if p.Human {
			s.hub.sendToPlayer(p.ID, roleReveal(st, p))
		}
	}
	return g, st, StartResult{GameID: id, Players: st.aliveRefs(), JoinCodes: codes}, nil
}

// runLoop plays games until one ends without a restart request.
func (s *Server) runLoop(ctx context.Context, g *Game, st RoundState, done chan struct{}) {
	defer close(done)
	for {
		_, out, err := g.runGame(ctx, st)
		if err != nil {
			logError("runLoop: game "+g.ID, err)
		}
		if out != outcomeRestart || ctx.Err() != nil {
			break
		}

		s.mu.Lock()
		g, st, _, err = s.setupGameLocked(ctx)
		s.mu.Unlock()
		if err != nil {
			logError("runLoop: restart", err)
			break
		}
		log.Printf("Game restarted as %s", g.ID)
		s.hub.Broadcast(HubEvent{Type: "restarted", Message: g.ID})
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// stop cancels the running game, if any, and waits for it to return.
func (s *Server) stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// resolveInterrupt answers the pending decision on behalf of playerID.
func (s *Server) resolveInterrupt(playerID, interruptID string, value []byte) error {
	g := s.currentGame()
	if g == nil {
		return errNoPendingInterrupt
	}
	return g.slot.ResolveIf(func(p InterruptPayload) error {
		if p.PlayerID != playerID {
			return errNotYourTurn
		}
		if interruptID != "" && interruptID != p.ID {
			return errStaleDecision
		}
		return validateResolution(p.Kind, value)
	}, value)
}

// pendingFor returns the outstanding interrupt if it belongs to playerID.
func (s *Server) pendingFor(playerID string) (InterruptPayload, bool) {
	g := s.currentGame()
	if g == nil {
		return InterruptPayload{}, false
	}
	p, ok := g.slot.Pending()
	if !ok || p.PlayerID != playerID {
		return InterruptPayload{}, false
	}
	return p, true
}

func roleReveal(s RoundState, p Participant) HubEvent {
	return HubEvent{
		Type:     "role",
		PlayerID: p.ID,
		Role:     p.Role,
		Team:     turnInfo(s, p).Team,
	}
}

// handleConnect catches a client up: the current phase, and for a seated human
// their role and any decision still waiting on them.
func (s *Server) handleConnect(c *Client) {
	g := s.currentGame()
	if g == nil {
		return
	}
	st := g.State()
	c.send(HubEvent{Type: "phase", Phase: st.Phase, Round: st.Round})
	if c.playerID == "" {
		return
	}
	if p, ok := st.player(c.playerID); ok {
		c.send(roleReveal(st, p))
	}
	if p, ok := s.pendingFor(c.playerID); ok {
		c.send(HubEvent{Type: "interrupt", Interrupt: &p})
	}
}

func (s *Server) handleWSMessage(c *Client, msg WSMessage) {
	switch msg.Action {
	case "resolve":
		if c.playerID == "" {
			sendErrorToast(c, "Spectators cannot act")
			return
		}
		if err := s.resolveInterrupt(c.playerID, msg.InterruptID, msg.Value); err != nil {
			DebugLog("handleWSMessage", "Resolve by %s rejected: %v", c.playerID, err)
			sendErrorToast(c, err.Error())
			return
		}
		sendToast(c, toastInfo, "Decision received")
	case "start_game":
		res, err := s.startGame(s.ctx)
		if err != nil {
			sendErrorToast(c, err.Error())
			return
		}
		sendToast(c, toastInfo, "Game "+res.GameID+" started")
	default:
		log.Printf("Unknown action: %q from player %q", msg.Action, c.playerID)
		sendErrorToast(c, "Unknown action")
	}
}
