package main

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// logError logs an error with context
func logError(context string, err error) {
	log.Printf("ERROR [%s]: %v", context, err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logError("writeJSON", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// PlayerView is a seat as shown to clients; roles stay hidden until the game ends.
type PlayerView struct {
	PlayerRef
	Alive bool `json:"alive"`
	Human bool `json:"human"`
	Role  Role `json:"role,omitempty"`
}

// StateView is the public snapshot served by GET /game/state.
type StateView struct {
	GameID  string       `json:"game_id"`
	Running bool         `json:"running"`
	Phase   Phase        `json:"phase"`
	Round   int          `json:"round"`
	Winner  Faction      `json:"winner,omitempty"`
	Players []PlayerView `json:"players"`
	Record  *GameRecord  `json:"record,omitempty"`
}

func (s *Server) stateView() (StateView, bool) {
	s.mu.Lock()
	g, running := s.game, s.running
	s.mu.Unlock()
	if g == nil {
		return StateView{}, false
	}

	st := g.State()
	view := StateView{
		GameID:  g.ID,
		Running: running,
		Phase:   st.Phase,
		Round:   st.Round,
		Winner:  st.Winner,
	}
	for _, p := range st.Players {
		pv := PlayerView{PlayerRef: p.Ref(), Alive: p.Alive, Human: p.Human}
		if st.Phase == PhaseEnded {
			pv.Role = p.Role
		}
		view.Players = append(view.Players, pv)
	}
	if rec, err := getGameRecord(s.db, g.ID); err == nil {
		view.Record = &rec
	} else {
		logError("stateView: getGameRecord", err)
	}
	return view, true
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	res, err := s.startGame(r.Context())
	if errors.Is(err, errGameRunning) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		logError("handleStart", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Printf("Game %s started via HTTP", res.GameID)
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	view, ok := s.stateView()
	if !ok {
		writeError(w, http.StatusNotFound, "no game")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ResolveRequest is the body of POST /game/interrupt.
type ResolveRequest struct {
	InterruptID string          `json:"interrupt_id"`
	Value       json.RawMessage `json:"value"`
}

// handleInterrupt serves the caller's pending decision (GET) and accepts its answer (POST).
func (s *Server) handleInterrupt(w http.ResponseWriter, r *http.Request) {
	p, err := s.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	switch r.Method {
	case http.MethodGet:
		pending, ok := s.pendingFor(p.ID)
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, pending)
	case http.MethodPost:
		var req ResolveRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
			return
		}
		err := s.resolveInterrupt(p.ID, req.InterruptID, req.Value)
		switch {
		case err == nil:
			w.WriteHeader(http.StatusNoContent)
		case errors.Is(err, errNoPendingInterrupt), errors.Is(err, errNotYourTurn), errors.Is(err, errStaleDecision):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleWebSocket binds the connection to a seat when a join code is given, otherwise to a spectator.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	playerID := ""
	if joinCode(r) != "" {
		p, err := s.authenticate(r)
		if err != nil {
			DebugLog("handleWebSocket", "Rejected WebSocket connection: %v", err)
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		playerID = p.ID
	}
	s.hub.serveWS(w, r, playerID)
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	wrap := func(pattern string, handler http.HandlerFunc) {
		var h http.Handler = handler
		if pattern != "/ws" {
			h = compress(h)
		}
		h = disableCaching(h)
		if appLogger != nil && appLogger.logRequests {
			h = &LoggingHandler{Handler: h, Logger: appLogger}
		}
		mux.Handle(pattern, h)
	}
	wrap("/game/start", s.handleStart)
	wrap("/game/state", s.handleState)
	wrap("/game/interrupt", s.handleInterrupt)
	wrap("/ws", s.handleWebSocket)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func disableCaching(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Cache-Control", "no-cache")
		next.ServeHTTP(w, r)
	})
}

// shouldCompress determines if a content type should be gzip compressed
func shouldCompress(contentType string) bool {
	for _, prefix := range []string{"text/", "application/json"} {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}

// responseWriter wraps http.ResponseWriter to handle conditional gzip compression
type responseWriter struct {
	http.ResponseWriter
	gz         *gzip.Writer
	acceptGzip bool
	headerSent bool
}

// WriteHeader checks content type and sets up compression if appropriate
func (w *responseWriter) WriteHeader(statusCode int) {
	if w.headerSent {
		return
	}
	w.headerSent = true

	if w.acceptGzip && statusCode != http.StatusNoContent && shouldCompress(w.Header().Get("Content-Type")) {
		w.gz = gzip.NewWriter(w.ResponseWriter)
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Del("Content-Length")
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.headerSent {
		w.WriteHeader(http.StatusOK)
	}
	if w.gz != nil {
		return w.gz.Write(b)
	}
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) Close() error {
	if w.gz != nil {
		return w.gz.Close()
	}
	return nil
}

// compress adds gzip compression to compressible responses
func compress(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := &responseWriter{
			ResponseWriter: w,
			acceptGzip:     strings.Contains(r.Header.Get("Accept-Encoding"), "gzip"),
		}
		defer wrapped.Close()
		next.ServeHTTP(wrapped, r)
	})
}

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fv := registerFlags(fs)
	fs.Parse(os.Args[1:])

	// Set up logging to both stdout and file
	logFile, err := os.OpenFile("werewolf.log", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		log.Fatal("Failed to open log file:", err)
	}
	defer logFile.Close()
	log.SetOutput(io.MultiWriter(os.Stdout, logFile))

	cfg := loadConfig(*fv.configPath, *fv.envPath)
	fv.applyTo(fs, &cfg)

	if err := InitAppLogger(cfg.toLogConfig()); err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer CloseAppLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDB(cfg.DB)
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}
	defer db.Close()
	appLogger.AttachDB(db)
	LogDBState("after initDB")

	reasoner, err := newReasoner(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize reasoner:", err)
	}

	hub := newHub()
	go hub.run()
	defer hub.stop()

	srv := newServer(ctx, db, hub, reasoner, cfg.gameSettings())
	defer srv.stop()
	if cfg.AutoStart {
		if _, err := srv.startGame(ctx); err != nil {
			log.Fatal("Failed to start game:", err)
		}
	}

	httpServer := &http.Server{Addr: cfg.Addr, Handler: srv.routes()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Printf("Server starting on %s", cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
