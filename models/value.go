package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// ValueKind identifies the shape of a clinical field value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindSequence
	KindMapping
)

// Value is a typed-but-open representation of one clinical field value.
// Evidence payloads and criteria requirements arrive as free-form JSON;
// Value preserves that openness while letting the engine validate shape
// without knowing the scoring collaborator's schema.
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
	Bool bool
	Seq  []Value
	Map  map[string]Value
}

// StringValue creates a string Value.
func StringValue(s string) Value {
	return Value{Kind: KindString, Str: s}
}

// NumberValue creates a numeric Value.
func NumberValue(n float64) Value {
	return Value{Kind: KindNumber, Num: n}
}

// BoolValue creates a boolean Value.
func BoolValue(b bool) Value {
	return Value{Kind: KindBool, Bool: b}
}

// SequenceValue creates a sequence Value.
func SequenceValue(items ...Value) Value {
	return Value{Kind: KindSequence, Seq: items}
}

// MappingValue creates a mapping Value.
func MappingValue(m map[string]Value) Value {
	return Value{Kind: KindMapping, Map: m}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNull:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.Str)
	case KindNumber:
		return json.Marshal(v.Num)
	case KindBool:
		return json.Marshal(v.Bool)
	case KindSequence:
		if v.Seq == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.Seq)
	case KindMapping:
		if v.Map == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.Map)
	default:
		return nil, fmt.Errorf("unknown value kind: %d", v.Kind)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty value")
	}

	switch trimmed[0] {
	case 'n':
		*v = Value{Kind: KindNull}
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return err
		}
		*v = BoolValue(b)
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*v = StringValue(s)
		return nil
	case '[':
		var seq []Value
		if err := json.Unmarshal(trimmed, &seq); err != nil {
			return err
		}
		if seq == nil {
			seq = make([]Value, 0)
		}
		*v = Value{Kind: KindSequence, Seq: seq}
		return nil
	case '{':
		var m map[string]Value
		if err := json.Unmarshal(trimmed, &m); err != nil {
			return err
		}
		if m == nil {
			m = make(map[string]Value)
		}
		*v = Value{Kind: KindMapping, Map: m}
		return nil
	default:
		var n float64
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return err
		}
		*v = NumberValue(n)
		return nil
	}
}

// ClinicalData is the structured payload of one evidence item,
// keyed by clinical field name.
type ClinicalData map[string]Value

// Value implements driver.Valuer for JSONB
func (c ClinicalData) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements sql.Scanner for JSONB
func (c *ClinicalData) Scan(value interface{}) error {
	if value == nil {
		*c = make(ClinicalData)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*c = make(ClinicalData)
		return nil
	}

	if len(bytes) == 0 {
		*c = make(ClinicalData)
		return nil
	}

	return json.Unmarshal(bytes, c)
}

// Requirements is a policy criterion's requirement payload. The engine
// carries it opaquely; only the scoring collaborator interprets it.
type Requirements map[string]Value

// Value implements driver.Valuer for JSONB
func (r Requirements) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// Scan implements sql.Scanner for JSONB
func (r *Requirements) Scan(value interface{}) error {
	if value == nil {
		*r = make(Requirements)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*r = make(Requirements)
		return nil
	}

	if len(bytes) == 0 {
		*r = make(Requirements)
		return nil
	}

	return json.Unmarshal(bytes, r)
}

// Metadata holds free-form annotations attached to evidence.
type Metadata map[string]Value

// Value implements driver.Valuer for JSONB
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return json.Marshal(make(Metadata))
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for JSONB
func (m *Metadata) Scan(value interface{}) error {
	if value == nil {
		*m = make(Metadata)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*m = make(Metadata)
		return nil
	}

	if len(bytes) == 0 {
		*m = make(Metadata)
		return nil
	}

	return json.Unmarshal(bytes, m)
}
