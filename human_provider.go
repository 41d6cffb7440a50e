package main

import (
	"context"
)

// humanProvider turns every decision into an interrupt and waits for the player.
type humanProvider struct {
	slot *InterruptSlot
}

func askHuman[T any](ctx context.Context, slot *InterruptSlot, kind InterruptKind, playerID string, info any) (T, error) {
	raw, err := slot.Ask(ctx, InterruptPayload{Kind: kind, PlayerID: playerID, Context: info})
	if err != nil {
		var zero T
		return zero, err
	}
	return decodeDecision[T](raw)
}

func (h *humanProvider) NightAction(ctx context.Context, in NightInput) (NightAction, error) {
	kind, interrupt := nightKind(in.Self.Role)
	id := in.Self.ID
	switch kind {
	case ActionKill:
		d, err := askHuman[KillDecision](ctx, h.slot, interrupt, id, in)
		return NightAction{Kind: ActionKill, TargetID: d.TargetID, Reasoning: d.Reasoning}, err
	case ActionInspect:
		d, err := askHuman[InspectDecision](ctx, h.slot, interrupt, id, in)
		return NightAction{Kind: ActionInspect, TargetID: d.TargetID}, err
	case ActionWitch:
		d, err := askHuman[WitchDecision](ctx, h.slot, interrupt, id, in)
		return NightAction{Kind: ActionWitch, Witch: d.Action, TargetID: d.TargetID}, err
	}
	return NightAction{Kind: ActionNone}, nil
}

func (h *humanProvider) Speak(ctx context.Context, in SpeechInput) (string, error) {
	d, err := askHuman[SpeechDecision](ctx, h.slot, KindSpeech, in.Self.ID, in)
	return d.Text, err
}

func (h *humanProvider) Vote(ctx context.Context, in VoteInput) (string, error) {
	d, err := askHuman[VoteDecision](ctx, h.slot, KindVote, in.Self.ID, in)
	return d.TargetID, err
}

func (h *humanProvider) HunterShot(ctx context.Context, in HunterInput) (string, error) {
	d, err := askHuman[HunterShotDecision](ctx, h.slot, KindHunterShot, in.Self.ID, in)
	return d.TargetID, err
}
