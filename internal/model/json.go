package model

import "encoding/json"

// jsonAttributeValue is the wire shape for AttributeValue, letting Kind
// round-trip through JSONB without exposing the Go-only AttributeKind ints
// in storage.
type jsonAttributeValue struct {
	Kind     string                `json:"kind"`
	String   string                `json:"string,omitempty"`
	Number   float64               `json:"number,omitempty"`
	Sequence []jsonAttributeValue  `json:"sequence,omitempty"`
}

func (v AttributeValue) toWire() jsonAttributeValue {
	w := jsonAttributeValue{}
	switch v.Kind {
	case AttributeString:
		w.Kind = "string"
		w.String = v.String
	case AttributeNumber:
		w.Kind = "number"
		w.Number = v.Number
	case AttributeSequence:
		w.Kind = "sequence"
		w.Sequence = make([]jsonAttributeValue, len(v.Sequence))
		for i, s := range v.Sequence {
			w.Sequence[i] = s.toWire()
		}
	}
	return w
}

func (w jsonAttributeValue) fromWire() AttributeValue {
	switch w.Kind {
	case "number":
		return NumberValue(w.Number)
	case "sequence":
		vs := make([]AttributeValue, len(w.Sequence))
		for i, s := range w.Sequence {
			vs[i] = s.fromWire()
		}
		return SequenceValue(vs...)
	default:
		return StringValue(w.String)
	}
}

// MarshalJSON implements json.Marshaler so AttributeValue round-trips
// through JSONB columns without losing its Kind tag.
func (v AttributeValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.toWire())
}

// UnmarshalJSON implements json.Unmarshaler, the inverse of MarshalJSON.
func (v *AttributeValue) UnmarshalJSON(data []byte) error {
	var w jsonAttributeValue
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*v = w.fromWire()
	return nil
}

// AttributesJSON marshals an entity's attribute map for storage in a JSONB
// column.
func AttributesJSON(attrs map[string]AttributeValue) ([]byte, error) {
	if attrs == nil {
		attrs = map[string]AttributeValue{}
	}
	return json.Marshal(attrs)
}

// ParseAttributesJSON is the inverse of AttributesJSON.
func ParseAttributesJSON(data []byte) (map[string]AttributeValue, error) {
	if len(data) == 0 {
		return map[string]AttributeValue{}, nil
	}
	out := map[string]AttributeValue{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ContradictionsJSON marshals the contradiction list for storage in a JSONB
// column.
func ContradictionsJSON(cs []Contradiction) ([]byte, error) {
	if cs == nil {
		cs = []Contradiction{}
	}
	return json.Marshal(cs)
}

// ParseContradictionsJSON is the inverse of ContradictionsJSON.
func ParseContradictionsJSON(data []byte) ([]Contradiction, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var out []Contradiction
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SerializeEntity produces the byte-for-byte snapshot state stored in
// EntitySnapshot.SerializedEntityState, used by RollbackService to restore
// an entity to its pre-merge form.
func SerializeEntity(e Entity) ([]byte, error) {
	return json.Marshal(e)
}

// DeserializeEntity is the inverse of SerializeEntity.
func DeserializeEntity(data []byte) (Entity, error) {
	var e Entity
	if err := json.Unmarshal(data, &e); err != nil {
		return Entity{}, err
	}
	return e, nil
}
