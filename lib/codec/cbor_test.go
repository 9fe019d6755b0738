// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

// controlMessage is a representative control-socket message using cbor
// struct tags (the convention for Corral wire types).
type controlMessage struct {
	Action string            `cbor:"action"`
	Node   string            `cbor:"node,omitempty"`
	Env    map[string]string `cbor:"env,omitempty"`
}

func TestMarshalRoundTrip(t *testing.T) {
	t.Parallel()

	original := controlMessage{
		Action: "start-node",
		Node:   "banknote_recogniser",
		Env:    map[string]string{"DISPLAY": ":0"},
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded controlMessage
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if decoded.Action != original.Action || decoded.Node != original.Node {
		t.Errorf("round trip = %+v, want %+v", decoded, original)
	}
	if decoded.Env["DISPLAY"] != ":0" {
		t.Errorf("env round trip = %v", decoded.Env)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	t.Parallel()

	message := controlMessage{
		Action: "status",
		Env:    map[string]string{"B": "2", "A": "1", "C": "3"},
	}

	first, err := Marshal(message)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	second, err := Marshal(message)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Error("same logical data produced different bytes")
	}
}

func TestDecodeIntoAnyUsesStringKeys(t *testing.T) {
	t.Parallel()

	data, err := Marshal(map[string]any{"outer": map[string]any{"inner": 1}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded map[string]any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if _, ok := decoded["outer"].(map[string]any); !ok {
		t.Errorf("nested map decoded as %T, want map[string]any", decoded["outer"])
	}
}

func TestStreamEncoderDecoder(t *testing.T) {
	t.Parallel()

	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)

	for _, action := range []string{"status", "list-nodes", "shutdown"} {
		if err := encoder.Encode(controlMessage{Action: action}); err != nil {
			t.Fatalf("Encode(%s): %v", action, err)
		}
	}

	decoder := NewDecoder(&buffer)
	for _, want := range []string{"status", "list-nodes", "shutdown"} {
		var message controlMessage
		if err := decoder.Decode(&message); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if message.Action != want {
			t.Errorf("decoded action %q, want %q", message.Action, want)
		}
	}
}
