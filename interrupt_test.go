package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestInterruptPublishResolve(t *testing.T) {
	logger := NewTestLogger(t)
	logger.Debug("=== Testing interrupt publish/resolve ===")

	var notified []InterruptPayload
	slot := NewInterruptSlot(func(p InterruptPayload) { notified = append(notified, p) })

	p := slot.Publish(InterruptPayload{Kind: KindVote, PlayerID: "p1"})
	if p.ID == "" {
		t.Fatal("Publish must assign an id")
	}
	if len(notified) != 1 || notified[0].ID != p.ID {
		t.Errorf("notify not called with the stored payload: %v", notified)
	}
	pending, ok := slot.Pending()
	if !ok || pending.ID != p.ID {
		t.Fatalf("Pending() = %v, %t", pending, ok)
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		if err := slot.Resolve(json.RawMessage(`{"target_id":"p2"}`)); err != nil {
			t.Errorf("Resolve: %v", err)
		}
	}()
	raw, err := slot.Await(context.Background())
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if string(raw) != `{"target_id":"p2"}` {
		logger.LogDB("FAIL: wrong resolution value")
		t.Errorf("got %s", raw)
	}
	if _, ok := slot.Pending(); ok {
		t.Errorf("slot should be empty after resolve")
	}
}

func TestInterruptResolveWithoutPending(t *testing.T) {
	slot := NewInterruptSlot(nil)
	if err := slot.Resolve(json.RawMessage(`{}`)); !errors.Is(err, errNoPendingInterrupt) {
		t.Errorf("expected errNoPendingInterrupt, got %v", err)
	}
}

func TestInterruptDoublePublishPanics(t *testing.T) {
	slot := NewInterruptSlot(nil)
	slot.Publish(InterruptPayload{Kind: KindSpeech, PlayerID: "p1"})
	defer func() {
		if recover() == nil {
			t.Error("second Publish should panic")
		}
	}()
	slot.Publish(InterruptPayload{Kind: KindVote, PlayerID: "p2"})
}

func TestInterruptAwaitCancelClearsSlot(t *testing.T) {
	slot := NewInterruptSlot(nil)
	slot.Publish(InterruptPayload{Kind: KindHunterShot, PlayerID: "p1"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := slot.Await(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if _, ok := slot.Pending(); ok {
		t.Error("cancelled wait must clear the slot")
	}
	// The slot is reusable afterwards.
	slot.Publish(InterruptPayload{Kind: KindVote, PlayerID: "p1"})
}

func TestInterruptResolveIfRejects(t *testing.T) {
	slot := NewInterruptSlot(nil)
	p := slot.Publish(InterruptPayload{Kind: KindVote, PlayerID: "p1"})

	errWrong := errors.New("wrong player")
	err := slot.ResolveIf(func(pending InterruptPayload) error {
		if pending.PlayerID != "p2" {
			return errWrong
		}
		return nil
	}, json.RawMessage(`{}`))
	if !errors.Is(err, errWrong) {
		t.Fatalf("expected check error, got %v", err)
	}
	if pending, ok := slot.Pending(); !ok || pending.ID != p.ID {
		t.Fatal("rejected resolution must leave the interrupt pending")
	}

	if err := slot.ResolveIf(func(InterruptPayload) error { return nil }, json.RawMessage(`{"target_id":"p3"}`)); err != nil {
		t.Fatalf("ResolveIf: %v", err)
	}
	raw, err := slot.Await(context.Background())
	if err != nil || string(raw) != `{"target_id":"p3"}` {
		t.Errorf("Await = %s, %v", raw, err)
	}
}

func TestAskHumanDecodesResolution(t *testing.T) {
	slot := autoAnswerSlot(func(p InterruptPayload) any {
		if p.Kind != KindSeerInspect {
			t.Errorf("unexpected kind %s", p.Kind)
		}
		return InspectDecision{TargetID: "p4"}
	})
	d, err := askHuman[InspectDecision](context.Background(), slot, KindSeerInspect, "p1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if d.TargetID != "p4" {
		t.Errorf("TargetID = %q", d.TargetID)
	}
}
