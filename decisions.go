package main

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Structured decisions. The same shapes are requested from the language model and
// accepted from human players.

type KillDecision struct {
	TargetID  string `json:"target_id" jsonschema:"description=Id of the player the wolves should kill tonight"`
	Reasoning string `json:"reasoning" jsonschema:"description=Private reasoning shown only to the wolf team"`
}

type InspectDecision struct {
	TargetID  string `json:"target_id" jsonschema:"description=Id of the player to inspect"`
	Reasoning string `json:"reasoning" jsonschema:"description=Private reasoning"`
}

type WitchChoice string

const (
	WitchSave   WitchChoice = "save"
	WitchPoison WitchChoice = "poison"
	WitchSkip   WitchChoice = "skip"
)

type WitchDecision struct {
	Action    WitchChoice `json:"action" jsonschema:"enum=save,enum=poison,enum=skip,description=Which potion to use tonight"`
	TargetID  string      `json:"target_id,omitempty" jsonschema:"description=Id of the player to poison (poison only)"`
	Reasoning string      `json:"reasoning" jsonschema:"description=Private reasoning"`
}

func (d *WitchDecision) validate() error {
	switch d.Action {
	case WitchSave, WitchPoison, WitchSkip:
		return nil
	}
	return fmt.Errorf("invalid witch action %q", d.Action)
}

type VoteDecision struct {
	TargetID  string `json:"target_id" jsonschema:"description=Id of the player to vote out"`
	Reasoning string `json:"reasoning" jsonschema:"description=Private reasoning"`
}

type HunterShotDecision struct {
	TargetID  string `json:"target_id" jsonschema:"description=Id of the player to shoot"`
	Reasoning string `json:"reasoning" jsonschema:"description=Private reasoning"`
}

type SpeechDecision struct {
	Text string `json:"text"`
}

type CheckpointChoice string

const (
	CheckpointContinue CheckpointChoice = "continue"
	CheckpointRestart  CheckpointChoice = "restart"
)

type CheckpointDecision struct {
	Choice CheckpointChoice `json:"choice"`
}

func (d *CheckpointDecision) validate() error {
	switch d.Choice {
	case CheckpointContinue, CheckpointRestart:
		return nil
	}
	return fmt.Errorf("invalid checkpoint choice %q", d.Choice)
}

type validator interface {
	validate() error
}

// decisionSchema derives the output schema for a decision struct.
func decisionSchema(v any) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(v)
}

var (
	killSchema       = decisionSchema(&KillDecision{})
	inspectSchema    = decisionSchema(&InspectDecision{})
	witchSchema      = decisionSchema(&WitchDecision{})
	voteSchema       = decisionSchema(&VoteDecision{})
	hunterShotSchema = decisionSchema(&HunterShotDecision{})
)

func decodeDecision[T any](raw json.RawMessage) (T, error) {
	var d T
	if err := json.Unmarshal(raw, &d); err != nil {
		return d, fmt.Errorf("decode %T: %w", d, err)
	}
	if v, ok := any(&d).(validator); ok {
		if err := v.validate(); err != nil {
			return d, err
		}
	}
	return d, nil
}

// validateResolution checks that raw has the shape the given interrupt kind expects.
func validateResolution(kind InterruptKind, raw json.RawMessage) error {
	var err error
	switch kind {
	case KindWolfKill:
		_, err = decodeDecision[KillDecision](raw)
	case KindSeerInspect:
		_, err = decodeDecision[InspectDecision](raw)
	case KindWitchAction:
		_, err = decodeDecision[WitchDecision](raw)
	case KindHunterShot:
		_, err = decodeDecision[HunterShotDecision](raw)
	case KindSpeech:
		_, err = decodeDecision[SpeechDecision](raw)
	case KindVote:
		_, err = decodeDecision[VoteDecision](raw)
	case KindDeathCheckpoint:
		_, err = decodeDecision[CheckpointDecision](raw)
	default:
		err = fmt.Errorf("unknown interrupt kind %q", kind)
	}
	return err
}
