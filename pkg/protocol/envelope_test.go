package protocol

import (
	"encoding/json"
	"testing"
)

func TestEnvelope_RoundTrip(t *testing.T) {
	env, err := NewEnvelope(TypeAnnounce, Announce{Addr: "203.0.113.7:4433"})
	if err != nil {
		t.Fatalf("NewEnvelope error: %v", err)
	}
	if err := env.ValidateBasic(); err != nil {
		t.Fatalf("ValidateBasic error: %v", err)
	}

	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	var got Envelope
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}

	if got.Type != TypeAnnounce {
		t.Errorf("Type = %q, want %q", got.Type, TypeAnnounce)
	}
	var ann Announce
	if err := got.DecodePayload(&ann); err != nil {
		t.Fatalf("DecodePayload error: %v", err)
	}
	if ann.Addr != "203.0.113.7:4433" {
		t.Errorf("Addr = %q", ann.Addr)
	}
}

func TestEnvelope_NilPayloadOmitted(t *testing.T) {
	env, err := NewEnvelope(TypePeerLeft, nil)
	if err != nil {
		t.Fatalf("NewEnvelope error: %v", err)
	}
	data, _ := json.Marshal(env)
	var asMap map[string]any
	json.Unmarshal(data, &asMap)
	if _, present := asMap["payload"]; present {
		t.Error("payload field should be omitted when nil")
	}
	if err := env.DecodePayload(&struct{}{}); err == nil {
		t.Error("DecodePayload on empty payload should fail")
	}
}

func TestEnvelope_ValidateBasic(t *testing.T) {
	cases := []struct {
		name string
		env  Envelope
	}{
		{"wrong version", Envelope{V: 99, Type: TypeAnnounce, MsgID: "abc"}},
		{"missing type", Envelope{V: ProtocolVersion, MsgID: "abc"}},
		{"missing msg_id", Envelope{V: ProtocolVersion, Type: TypeAnnounce}},
	}
	for _, tc := range cases {
		if err := tc.env.ValidateBasic(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestNewMsgID_Length(t *testing.T) {
	id := NewMsgID()
	if len(id) != 16 {
		t.Errorf("len = %d, want 16", len(id))
	}
	if id == NewMsgID() {
		t.Error("two generated ids collided")
	}
}
