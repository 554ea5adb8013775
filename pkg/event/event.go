package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEventEmpty indicates an event object without a behavior key.
	ErrEventEmpty = errors.New("event must name exactly one behavior")
	// ErrOperatorIDRequired indicates a missing op_id.
	ErrOperatorIDRequired = errors.New("event op_id is required")
	// ErrFieldRequired indicates a missing behavior-specific field.
	ErrFieldRequired = errors.New("event field is required")
)

// Kind names an event behavior.
type Kind string

// Kinds known to this build.
const (
	KindRetreat      Kind = "Retreat"
	KindSetSkin      Kind = "SetSkin"
	KindSetAnimation Kind = "SetAnimation"
	KindMoveTo       Kind = "MoveTo"
	KindSleep        Kind = "Sleep"
	KindSit          Kind = "Sit"
	KindCustomEvent  Kind = "CustomEvent"
)

// Known reports whether the kind is one this build understands.
func (k Kind) Known() bool {
	switch k {
	case KindRetreat, KindSetSkin, KindSetAnimation, KindMoveTo, KindSleep, KindSit, KindCustomEvent:
		return true
	}
	return false
}

// Event is one addressed behavior. Only the fields relevant to Kind are set.
type Event struct {
	Kind      Kind
	OpID      string
	Skin      string     // SetSkin
	Animation string     // SetAnimation
	Pos       [2]float32 // MoveTo
	Payload   string     // CustomEvent

	// Raw keeps the body of a kind this build does not know.
	Raw json.RawMessage
}

// OperatorID returns the id of the operator the event is addressed to.
func (e Event) OperatorID() string {
	return e.OpID
}

func (e Event) String() string {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf("%s(%s)", e.Kind, e.OpID)
	}
	return string(data)
}

// Retreat builds a Retreat event.
func Retreat(opID string) Event { return Event{Kind: KindRetreat, OpID: opID} }

// SetSkin builds a SetSkin event.
func SetSkin(opID, skin string) Event { return Event{Kind: KindSetSkin, OpID: opID, Skin: skin} }

// SetAnimation builds a SetAnimation event.
func SetAnimation(opID, animation string) Event {
	return Event{Kind: KindSetAnimation, OpID: opID, Animation: animation}
}

// MoveTo builds a MoveTo event.
func MoveTo(opID string, x, y float32) Event {
	return Event{Kind: KindMoveTo, OpID: opID, Pos: [2]float32{x, y}}
}

// Sleep builds a Sleep event.
func Sleep(opID string) Event { return Event{Kind: KindSleep, OpID: opID} }

// Sit builds a Sit event.
func Sit(opID string) Event { return Event{Kind: KindSit, OpID: opID} }

// Custom builds a CustomEvent event.
func Custom(opID, payload string) Event {
	return Event{Kind: KindCustomEvent, OpID: opID, Payload: payload}
}

type opBody struct {
	OpID string `json:"op_id"`
}

type skinBody struct {
	OpID string `json:"op_id"`
	Skin string `json:"skin"`
}

type animationBody struct {
	OpID string `json:"op_id"`
	Ani  string `json:"ani"`
}

type moveBody struct {
	OpID string     `json:"op_id"`
	Pos  [2]float32 `json:"pos"`
}

type customBody struct {
	OpID    string `json:"op_id"`
	Payload string `json:"payload"`
}

// wireBody is the union of every known body, with pointers to detect absent fields.
type wireBody struct {
	OpID    *string     `json:"op_id"`
	Skin    *string     `json:"skin"`
	Ani     *string     `json:"ani"`
	Pos     *[2]float32 `json:"pos"`
	Payload *string     `json:"payload"`
}

// MarshalJSON encodes the event in its externally tagged form.
func (e Event) MarshalJSON() ([]byte, error) {
	var body any
	switch e.Kind {
	case KindRetreat, KindSleep, KindSit:
		body = opBody{OpID: e.OpID}
	case KindSetSkin:
		body = skinBody{OpID: e.OpID, Skin: e.Skin}
	case KindSetAnimation:
		body = animationBody{OpID: e.OpID, Ani: e.Animation}
	case KindMoveTo:
		body = moveBody{OpID: e.OpID, Pos: e.Pos}
	case KindCustomEvent:
		body = customBody{OpID: e.OpID, Payload: e.Payload}
	default:
		if strings.TrimSpace(string(e.Kind)) == "" {
			return nil, ErrEventEmpty
		}
		if len(e.Raw) > 0 {
			body = e.Raw
		} else {
			body = opBody{OpID: e.OpID}
		}
	}
	return json.Marshal(map[string]any{string(e.Kind): body})
}

// UnmarshalJSON decodes an externally tagged event.
func (e *Event) UnmarshalJSON(data []byte) error {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	if len(tagged) != 1 {
		return ErrEventEmpty
	}

	var kind Kind
	var raw json.RawMessage
	for name, value := range tagged {
		kind, raw = Kind(name), value
	}

	var body wireBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return fmt.Errorf("decode %s event: %w", kind, err)
	}
	if body.OpID == nil {
		return fmt.Errorf("%s: %w", kind, ErrOperatorIDRequired)
	}

	decoded := Event{Kind: kind, OpID: *body.OpID}
	switch kind {
	case KindRetreat, KindSleep, KindSit:
	case KindSetSkin:
		if body.Skin == nil {
			return fieldRequired(kind, "skin")
		}
		decoded.Skin = *body.Skin
	case KindSetAnimation:
		if body.Ani == nil {
			return fieldRequired(kind, "ani")
		}
		decoded.Animation = *body.Ani
	case KindMoveTo:
		if body.Pos == nil {
			return fieldRequired(kind, "pos")
		}
		decoded.Pos = *body.Pos
	case KindCustomEvent:
		if body.Payload == nil {
			return fieldRequired(kind, "payload")
		}
		decoded.Payload = *body.Payload
	default:
		decoded.Raw = append(json.RawMessage(nil), bytes.TrimSpace(raw)...)
	}
	*e = decoded
	return nil
}

func fieldRequired(kind Kind, field string) error {
	return fmt.Errorf("%s.%s: %w", kind, field, ErrFieldRequired)
}
