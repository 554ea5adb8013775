package event

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestUnmarshalKnownKinds(t *testing.T) {
	tests := []struct {
		name string
		wire string
		want Event
	}{
		{"move", `{"MoveTo":{"op_id":"crow1","pos":[10.0,20.5]}}`, MoveTo("crow1", 10, 20.5)},
		{"retreat", `{"Retreat":{"op_id":"crow1"}}`, Retreat("crow1")},
		{"skin", `{"SetSkin":{"op_id":"crow1","skin":"winter"}}`, SetSkin("crow1", "winter")},
		{"animation", `{"SetAnimation":{"op_id":"crow1","ani":"Move"}}`, SetAnimation("crow1", "Move")},
		{"sleep", `{"Sleep":{"op_id":"crow1"}}`, Sleep("crow1")},
		{"sit", `{"Sit":{"op_id":"crow1"}}`, Sit("crow1")},
		{"custom empty payload", `{"CustomEvent":{"op_id":"crow1","payload":""}}`, Custom("crow1", "")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got Event
			if err := json.Unmarshal([]byte(tc.wire), &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got.Kind != tc.want.Kind || got.OpID != tc.want.OpID || got.Skin != tc.want.Skin ||
				got.Animation != tc.want.Animation || got.Pos != tc.want.Pos || got.Payload != tc.want.Payload {
				t.Fatalf("event = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestMarshalUsesExternalTag(t *testing.T) {
	data, err := json.Marshal(MoveTo("crow", 5, 5))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"MoveTo":{"op_id":"crow","pos":[5,5]}}` {
		t.Fatalf("wire = %s", data)
	}

	data, err = json.Marshal(SetAnimation("crow", "Relax"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"SetAnimation":{"op_id":"crow","ani":"Relax"}}` {
		t.Fatalf("wire = %s", data)
	}
}

func TestUnknownKindIsKeptWhenAddressed(t *testing.T) {
	var got Event
	if err := json.Unmarshal([]byte(`{"Dance":{"op_id":"crow","tempo":3}}`), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Kind != "Dance" || got.Kind.Known() {
		t.Fatalf("kind = %q known=%v", got.Kind, got.Kind.Known())
	}
	if got.OperatorID() != "crow" {
		t.Fatalf("op id = %q, want crow", got.OperatorID())
	}

	data, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"Dance":{"op_id":"crow","tempo":3}}` {
		t.Fatalf("wire = %s", data)
	}
}

func TestUnmarshalKeepsBlankOperatorID(t *testing.T) {
	for _, wire := range []string{`{"Sleep":{"op_id":""}}`, `{"Sit":{"op_id":"  "}}`} {
		var got Event
		if err := json.Unmarshal([]byte(wire), &got); err != nil {
			t.Fatalf("unmarshal %s: %v", wire, err)
		}
		data, err := json.Marshal(got)
		if err != nil {
			t.Fatalf("marshal %s: %v", wire, err)
		}
		if string(data) != wire {
			t.Fatalf("wire = %s, want %s", data, wire)
		}
	}
}

func TestUnmarshalRejectsMalformedEvents(t *testing.T) {
	tests := []struct {
		name string
		wire string
		want error
	}{
		{"no kind", `{}`, ErrEventEmpty},
		{"two kinds", `{"Sit":{"op_id":"a"},"Sleep":{"op_id":"a"}}`, ErrEventEmpty},
		{"missing op id", `{"Sit":{}}`, ErrOperatorIDRequired},
		{"unknown without op id", `{"Dance":{"tempo":3}}`, ErrOperatorIDRequired},
		{"move without pos", `{"MoveTo":{"op_id":"a"}}`, ErrFieldRequired},
		{"skin without skin", `{"SetSkin":{"op_id":"a"}}`, ErrFieldRequired},
		{"custom without payload", `{"CustomEvent":{"op_id":"a"}}`, ErrFieldRequired},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got Event
			err := json.Unmarshal([]byte(tc.wire), &got)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}

	var got Event
	if err := json.Unmarshal([]byte(`"MoveTo"`), &got); err == nil {
		t.Fatal("expected error for non-object event")
	}
}
