package component

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindString
	KindNumber
	KindBool
	KindStrings
	KindRecord
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindStrings:
		return "strings"
	case KindRecord:
		return "record"
	default:
		return "invalid"
	}
}

// Value is one node of a component tree: a string, a number, a bool, a list of
// strings or a nested Record. The zero Value is invalid and is never stored.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	strs []string
	rec  Record
}

// Record is a component observation: named values, possibly nested.
type Record map[string]Value

func String(s string) Value     { return Value{kind: KindString, str: s} }
func Number(f float64) Value    { return Value{kind: KindNumber, num: f} }
func Bool(b bool) Value         { return Value{kind: KindBool, b: b} }
func Strings(s ...string) Value { return Value{kind: KindStrings, strs: slices.Clone(s)} }
func Nested(r Record) Value     { return Value{kind: KindRecord, rec: r} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) Str() (string, bool)    { return v.str, v.kind == KindString }
func (v Value) Num() (float64, bool)   { return v.num, v.kind == KindNumber }
func (v Value) Boolean() (bool, bool)  { return v.b, v.kind == KindBool }
func (v Value) List() ([]string, bool) { return v.strs, v.kind == KindStrings }
func (v Value) Record() (Record, bool) { return v.rec, v.kind == KindRecord }
func (v Value) IsRecord() bool         { return v.kind == KindRecord }

// Any returns the plain Go representation of v: string, float64, bool,
// []any or map[string]any.
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindStrings:
		out := make([]any, len(v.strs))
		for i, s := range v.strs {
			out[i] = s
		}
		return out
	case KindRecord:
		return v.rec.Any()
	default:
		return nil
	}
}

// StableValue lets the stable serializer treat a Value as its plain form.
func (v Value) StableValue() any { return v.Any() }

// Equal reports whether v and o hold the same tree.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num || (math.IsNaN(v.num) && math.IsNaN(o.num))
	case KindBool:
		return v.b == o.b
	case KindStrings:
		return slices.Equal(v.strs, o.strs)
	case KindRecord:
		return v.rec.Equal(o.rec)
	default:
		return true
	}
}

// MarshalJSON writes non-finite numbers as null, like the stable serializer.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return []byte("null"), nil
		}
	case KindRecord:
		return json.Marshal(v.rec)
	}
	return json.Marshal(v.Any())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	val, ok, err := valueFromAny(raw)
	if err != nil {
		return err
	}
	if !ok {
		*v = Value{}
		return nil
	}
	*v = val
	return nil
}

// Any returns the plain map form of r.
func (r Record) Any() map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		out[k] = v.Any()
	}
	return out
}

// StableValue lets the stable serializer treat a Record as its plain form.
func (r Record) StableValue() any { return r.Any() }

// Clone deep-copies r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		switch v.kind {
		case KindRecord:
			out[k] = Nested(v.rec.Clone())
		case KindStrings:
			out[k] = Strings(v.strs...)
		default:
			out[k] = v
		}
	}
	return out
}

// Equal reports whether r and o hold the same keys and values.
func (r Record) Equal(o Record) bool {
	return maps.EqualFunc(r, o, Value.Equal)
}

// Keys returns the keys of r in sorted order.
func (r Record) Keys() []string {
	return slices.Sorted(maps.Keys(r))
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	rec, err := FromAny(raw)
	if err != nil {
		return err
	}
	*r = rec
	return nil
}

// FromAny converts decoded JSON into a Record. A nil input yields a nil Record;
// anything but an object is an error. Null members are dropped.
func FromAny(x any) (Record, error) {
	if x == nil {
		return nil, nil
	}
	m, ok := x.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("component record must be an object, got %T", x)
	}
	return recordFromMap(m)
}

func recordFromMap(m map[string]any) (Record, error) {
	rec := make(Record, len(m))
	for k, raw := range m {
		v, ok, err := valueFromAny(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		if ok {
			rec[k] = v
		}
	}
	return rec, nil
}

func valueFromAny(x any) (Value, bool, error) {
	switch t := x.(type) {
	case nil:
		return Value{}, false, nil
	case string:
		return String(t), true, nil
	case bool:
		return Bool(t), true, nil
	case float64:
		return Number(t), true, nil
	case float32:
		return Number(float64(t)), true, nil
	case int:
		return Number(float64(t)), true, nil
	case int64:
		return Number(float64(t)), true, nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, false, err
		}
		return Number(f), true, nil
	case []string:
		return Strings(t...), true, nil
	case []any:
		strs := make([]string, 0, len(t))
		for i, e := range t {
			s, err := listElement(e)
			if err != nil {
				return Value{}, false, fmt.Errorf("[%d]: %w", i, err)
			}
			strs = append(strs, s)
		}
		return Value{kind: KindStrings, strs: strs}, true, nil
	case map[string]any:
		rec, err := recordFromMap(t)
		if err != nil {
			return Value{}, false, err
		}
		return Nested(rec), true, nil
	case Record:
		return Nested(t), true, nil
	case Value:
		return t, t.kind != KindInvalid, nil
	default:
		return Value{}, false, fmt.Errorf("unsupported value of type %T", x)
	}
}

// listElement formats a list scalar; only flat lists are part of the model.
func listElement(e any) (string, error) {
	switch t := e.(type) {
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), nil
	case json.Number:
		return t.String(), nil
	case nil:
		return "null", nil
	default:
		return "", fmt.Errorf("unsupported list element of type %T", e)
	}
}
