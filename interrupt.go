package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var errNoPendingInterrupt = errors.New("no pending interrupt")

// InterruptKind names the decision a human is asked for.
type InterruptKind string

const (
	KindWolfKill        InterruptKind = "wolf_kill"
	KindSeerInspect     InterruptKind = "seer_inspect"
	KindWitchAction     InterruptKind = "witch_action"
	KindHunterShot      InterruptKind = "hunter_shot"
	KindSpeech          InterruptKind = "speech"
	KindVote            InterruptKind = "vote"
	KindDeathCheckpoint InterruptKind = "player_death"
)

// public reports whether the whole table may know that a player owes this kind of decision.
func (k InterruptKind) public() bool {
	return k == KindSpeech || k == KindVote
}

// InterruptPayload is what a human participant is shown while the game waits on them.
type InterruptPayload struct {
	ID       string        `json:"id"`
	Kind     InterruptKind `json:"kind"`
	PlayerID string        `json:"player_id"`
	Context  any           `json:"context,omitempty"`
}

// InterruptSlot holds at most one outstanding interrupt. Publishing while one is pending
// is a programming error and panics.
type InterruptSlot struct {
	mu      sync.Mutex
	pending *InterruptPayload
	result  chan json.RawMessage
	notify  func(InterruptPayload)
}

// NewInterruptSlot creates an empty slot. notify, if set, is called after every publish.
func NewInterruptSlot(notify func(InterruptPayload)) *InterruptSlot {
	return &InterruptSlot{
		result: make(chan json.RawMessage, 1),
		notify: notify,
	}
}

// Publish occupies the slot and returns the stored payload with its id assigned.
func (s *InterruptSlot) Publish(p InterruptPayload) InterruptPayload {
	s.mu.Lock()
	if s.pending != nil {
		s.mu.Unlock()
		panic(fmt.Sprintf("interrupt slot occupied by %s (%s), cannot publish %s", s.pending.ID, s.pending.Kind, p.Kind))
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	stored := p
	s.pending = &stored
	s.mu.Unlock()

	interruptsPublished.WithLabelValues(string(p.Kind)).Inc()
	DebugLog("interrupt.publish", "%s for player %s (id %s)", p.Kind, p.PlayerID, p.ID)
	if s.notify != nil {
		s.notify(p)
	}
	return p
}

// Await blocks until the pending interrupt is resolved or ctx is done.
// A cancelled wait clears the slot.
func (s *InterruptSlot) Await(ctx context.Context) (json.RawMessage, error) {
	select {
	case v := <-s.result:
		return v, nil
	case <-ctx.Done():
		s.clear()
		return nil, ctx.Err()
	}
}

// Resolve delivers value to the waiter and empties the slot.
func (s *InterruptSlot) Resolve(value json.RawMessage) error {
	return s.ResolveIf(nil, value)
}

// ResolveIf resolves like Resolve, but only when check accepts the pending interrupt.
func (s *InterruptSlot) ResolveIf(check func(InterruptPayload) error, value json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return errNoPendingInterrupt
	}
	if check != nil {
		if err := check(*s.pending); err != nil {
			return err
		}
	}
	DebugLog("interrupt.resolve", "%s for player %s resolved", s.pending.Kind, s.pending.PlayerID)
	s.pending = nil
	s.result <- value
	return nil
}

// Pending returns the outstanding interrupt, if any.
func (s *InterruptSlot) Pending() (InterruptPayload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return InterruptPayload{}, false
	}
	return *s.pending, true
}

// Ask publishes p and waits for its resolution.
func (s *InterruptSlot) Ask(ctx context.Context, p InterruptPayload) (json.RawMessage, error) {
	s.Publish(p)
	return s.Await(ctx)
}

func (s *InterruptSlot) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
	select {
	case <-s.result:
	default:
	}
}
