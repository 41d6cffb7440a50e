package main

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
)

// aiProvider plays a participant through the reasoner. Structured decisions are retried;
// speeches stream to the sink and are not.
type aiProvider struct {
	gameID   string
	reasoner Reasoner
	store    LogStore
	sink     EventSink
	retry    retryPolicy
}

// messages builds the role-scoped conversation for one decision.
func (a *aiProvider) messages(ctx context.Context, in TurnInfo, task string) ([]ChatMessage, error) {
	events, err := a.store.Events(ctx, a.gameID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	history := buildHistory(in.Self, events)
	return []ChatMessage{
		{Role: MessageSystem, Content: systemPrompt(in)},
		{Role: MessageUser, Content: "What you know so far:\n" + formatHistory(history) + "\n\n" + task},
	}, nil
}

func (a *aiProvider) decide(ctx context.Context, in TurnInfo, op, task string, schema *jsonschema.Schema, out any) error {
	msgs, err := a.messages(ctx, in, task)
	if err != nil {
		return err
	}
	return withRetry(ctx, a.retry, op, func(ctx context.Context) error {
		reflect.ValueOf(out).Elem().SetZero()
		return a.reasoner.SubmitStructured(ctx, msgs, schema, out)
	})
}

func (a *aiProvider) NightAction(ctx context.Context, in NightInput) (NightAction, error) {
	kind, _ := nightKind(in.Self.Role)
	switch kind {
	case ActionKill:
		var d KillDecision
		if err := a.decide(ctx, in.TurnInfo, "kill decision", killTask(in), killSchema, &d); err != nil {
			return NightAction{}, err
		}
		return NightAction{Kind: ActionKill, TargetID: d.TargetID, Reasoning: d.Reasoning}, nil
	case ActionInspect:
		var d InspectDecision
		if err := a.decide(ctx, in.TurnInfo, "inspect decision", inspectTask(in), inspectSchema, &d); err != nil {
			return NightAction{}, err
		}
		return NightAction{Kind: ActionInspect, TargetID: d.TargetID, Reasoning: d.Reasoning}, nil
	case ActionWitch:
		var d WitchDecision
		if err := a.decide(ctx, in.TurnInfo, "witch decision", witchTask(in), witchSchema, &d); err != nil {
			return NightAction{}, err
		}
		return NightAction{Kind: ActionWitch, Witch: d.Action, TargetID: d.TargetID, Reasoning: d.Reasoning}, nil
	}
	return NightAction{Kind: ActionNone}, nil
}

func (a *aiProvider) Speak(ctx context.Context, in SpeechInput) (string, error) {
	msgs, err := a.messages(ctx, in.TurnInfo, speechTask(in))
	if err != nil {
		return "", err
	}
	id := in.Self.ID
	text, err := a.reasoner.SubmitStreaming(ctx, msgs, func(chunk string) {
		a.sink.SpeechChunk(id, chunk)
	})
	if err != nil {
		return "", fmt.Errorf("speech: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func (a *aiProvider) Vote(ctx context.Context, in VoteInput) (string, error) {
	var d VoteDecision
	if err := a.decide(ctx, in.TurnInfo, "vote decision", voteTask(in), voteSchema, &d); err != nil {
		return "", err
	}
	return d.TargetID, nil
}

func (a *aiProvider) HunterShot(ctx context.Context, in HunterInput) (string, error) {
	var d HunterShotDecision
	if err := a.decide(ctx, in.TurnInfo, "hunter shot", hunterTask(in), hunterShotSchema, &d); err != nil {
		return "", err
	}
	return d.TargetID, nil
}
