package main

import (
	"encoding/json"
	"testing"
)

func TestValidateResolution(t *testing.T) {
	cases := []struct {
		kind InterruptKind
		raw  string
		ok   bool
	}{
		{KindWolfKill, `{"target_id":"p1"}`, true},
		{KindSeerInspect, `{"target_id":"p1"}`, true},
		{KindWitchAction, `{"action":"save"}`, true},
		{KindWitchAction, `{"action":"poison","target_id":"p2"}`, true},
		{KindWitchAction, `{"action":"brew"}`, false},
		{KindHunterShot, `{"target_id":""}`, true},
		{KindSpeech, `{"text":"I trust P3"}`, true},
		{KindVote, `{"target_id":"p4"}`, true},
		{KindVote, `not json`, false},
		{KindDeathCheckpoint, `{"choice":"restart"}`, true},
		{KindDeathCheckpoint, `{"choice":"maybe"}`, false},
		{InterruptKind("dance"), `{}`, false},
	}
	for _, c := range cases {
		err := validateResolution(c.kind, json.RawMessage(c.raw))
		if (err == nil) != c.ok {
			t.Errorf("%s %s: err=%v, want ok=%t", c.kind, c.raw, err, c.ok)
		}
	}
}

func TestDecisionSchemasAreClosedObjects(t *testing.T) {
	for name, schema := range map[string]any{
		"kill": killSchema, "inspect": inspectSchema, "witch": witchSchema,
		"vote": voteSchema, "hunter": hunterShotSchema,
	} {
		raw, err := json.Marshal(schema)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		var doc struct {
			Type                 string         `json:"type"`
			Properties           map[string]any `json:"properties"`
			AdditionalProperties *bool          `json:"additionalProperties"`
		}
		if err := json.Unmarshal(raw, &doc); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if doc.Type != "object" || doc.Properties["reasoning"] == nil {
			t.Errorf("%s schema missing properties: %s", name, raw)
		}
	}
}
