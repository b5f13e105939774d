package store

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

type metaKind uint8

const (
	metaString metaKind = iota + 1
	metaNumber
	metaBool
)

// MetaValue is one scalar metadata value: a string, a number or a bool.
type MetaValue struct {
	kind metaKind
	s    string
	n    float64
	b    bool
}

func String(s string) MetaValue  { return MetaValue{kind: metaString, s: s} }
func Number(n float64) MetaValue { return MetaValue{kind: metaNumber, n: n} }
func Bool(b bool) MetaValue      { return MetaValue{kind: metaBool, b: b} }

// AsString returns the string variant.
func (v MetaValue) AsString() (string, bool) { return v.s, v.kind == metaString }

// AsNumber returns the number variant.
func (v MetaValue) AsNumber() (float64, bool) { return v.n, v.kind == metaNumber }

// AsBool returns the bool variant.
func (v MetaValue) AsBool() (bool, bool) { return v.b, v.kind == metaBool }

func (v MetaValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case metaString:
		return json.Marshal(v.s)
	case metaNumber:
		return json.Marshal(v.n)
	case metaBool:
		return json.Marshal(v.b)
	default:
		return []byte("null"), nil
	}
}

func (v *MetaValue) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case string:
		*v = String(x)
	case float64:
		*v = Number(x)
	case bool:
		*v = Bool(x)
	case nil:
		*v = MetaValue{}
	default:
		return fmt.Errorf("metadata value must be a string, number or bool, got %s", bytes.TrimSpace(data))
	}
	return nil
}

// Metadata is an open map of string keys to scalar values.
type Metadata map[string]MetaValue

// Value implements driver.Valuer; metadata is stored as JSON text.
func (m Metadata) Value() (driver.Value, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *Metadata) Scan(src any) error {
	var data []byte
	switch s := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		data = s
	case string:
		data = []byte(s)
	default:
		return fmt.Errorf("cannot scan %T into Metadata", src)
	}
	if len(data) == 0 {
		*m = nil
		return nil
	}
	var out Metadata
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*m = out
	return nil
}
