// Package stablejson serializes arbitrary Go data into a canonical JSON string:
// object keys sorted, array order kept, undefined members dropped and
// non-finite numbers written as null. Equal trees always produce equal output,
// whatever order their maps were built in.
package stablejson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
)

// ErrCircular is returned when a map, slice or pointer contains itself.
var ErrCircular = errors.New("converting circular structure to JSON")

type undefined struct{}

// Undefined is dropped from objects and written as null inside arrays.
// Functions, channels and complex numbers are treated the same way.
var Undefined any = undefined{}

// Valuer is implemented by types that replace themselves before serialization.
type Valuer interface {
	StableValue() any
}

// Marshal returns the canonical JSON form of data. An undefined top-level
// value yields the empty string.
func Marshal(data any) (string, error) {
	w := walker{}
	plain, ok, err := w.normalize(reflect.ValueOf(data))
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode([]any{plain}); err != nil {
		return "", fmt.Errorf("encoding: %w", err)
	}

	// Wrapping in an array lets scalars go through the canonicalizer too.
	canonical, err := jsoncanonicalizer.Transform(bytes.TrimSpace(buf.Bytes()))
	if err != nil {
		return "", fmt.Errorf("canonicalizing: %w", err)
	}
	return string(canonical[1 : len(canonical)-1]), nil
}

type walker struct {
	seen []uintptr
}

func (w *walker) enter(p uintptr) error {
	for _, s := range w.seen {
		if s == p {
			return ErrCircular
		}
	}
	w.seen = append(w.seen, p)
	return nil
}

func (w *walker) leave() {
	w.seen = w.seen[:len(w.seen)-1]
}

var (
	valuerType    = reflect.TypeFor[Valuer]()
	marshalerType = reflect.TypeFor[json.Marshaler]()
	undefinedType = reflect.TypeFor[undefined]()
	numberType    = reflect.TypeFor[json.Number]()
)

// normalize converts v into plain JSON-ready data. ok is false for undefined.
func (w *walker) normalize(v reflect.Value) (out any, ok bool, err error) {
	if !v.IsValid() {
		return nil, true, nil
	}

	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, true, nil
		}
		return w.normalize(v.Elem())
	}

	if v.Type() == undefinedType {
		return nil, false, nil
	}

	if v.Type().Implements(valuerType) && !(v.Kind() == reflect.Pointer && v.IsNil()) {
		return w.transformed(v, v.Interface().(Valuer).StableValue())
	}

	if v.Type() == numberType {
		f, err := v.Interface().(json.Number).Float64()
		if err != nil {
			return nil, false, fmt.Errorf("invalid number %q: %w", v.String(), err)
		}
		return finite(f), true, nil
	}

	if v.Type().Implements(marshalerType) && !(v.Kind() == reflect.Pointer && v.IsNil()) {
		raw, err := v.Interface().(json.Marshaler).MarshalJSON()
		if err != nil {
			return nil, false, err
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var decoded any
		if err := dec.Decode(&decoded); err != nil {
			return nil, false, fmt.Errorf("decoding %s: %w", v.Type(), err)
		}
		return w.transformed(v, decoded)
	}

	switch v.Kind() {
	case reflect.Bool:
		return v.Bool(), true, nil
	case reflect.String:
		return v.String(), true, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(v.Uint()), true, nil
	case reflect.Float32, reflect.Float64:
		return finite(v.Float()), true, nil
	case reflect.Pointer:
		if v.IsNil() {
			return nil, true, nil
		}
		if err := w.enter(v.Pointer()); err != nil {
			return nil, false, err
		}
		defer w.leave()
		return w.normalize(v.Elem())
	case reflect.Map:
		return w.object(v)
	case reflect.Slice:
		if v.IsNil() {
			return nil, true, nil
		}
		if v.Len() > 0 {
			if err := w.enter(v.Pointer()); err != nil {
				return nil, false, err
			}
			defer w.leave()
		}
		return w.array(v)
	case reflect.Array:
		return w.array(v)
	case reflect.Struct:
		raw, err := json.Marshal(v.Interface())
		if err != nil {
			return nil, false, err
		}
		var decoded any
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&decoded); err != nil {
			return nil, false, err
		}
		return w.normalize(reflect.ValueOf(decoded))
	default:
		// func, chan, complex and unsafe pointers have no JSON form.
		return nil, false, nil
	}
}

// transformed normalizes the replacement produced by a hook. The source value
// stays on the cycle stack so a hook returning its own receiver is caught.
func (w *walker) transformed(src reflect.Value, replacement any) (any, bool, error) {
	if src.Kind() == reflect.Map || src.Kind() == reflect.Pointer {
		if src.IsNil() {
			return nil, true, nil
		}
		if err := w.enter(src.Pointer()); err != nil {
			return nil, false, err
		}
		defer w.leave()
	}
	return w.normalize(reflect.ValueOf(replacement))
}

func (w *walker) object(v reflect.Value) (any, bool, error) {
	if v.IsNil() {
		return nil, true, nil
	}
	if v.Type().Key().Kind() != reflect.String {
		return nil, false, fmt.Errorf("unsupported map key type %s", v.Type().Key())
	}
	if err := w.enter(v.Pointer()); err != nil {
		return nil, false, err
	}
	defer w.leave()

	out := make(map[string]any, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		val, ok, err := w.normalize(iter.Value())
		if err != nil {
			return nil, false, err
		}
		if ok {
			out[iter.Key().String()] = val
		}
	}
	return out, true, nil
}

func (w *walker) array(v reflect.Value) (any, bool, error) {
	out := make([]any, v.Len())
	for i := range v.Len() {
		val, ok, err := w.normalize(v.Index(i))
		if err != nil {
			return nil, false, err
		}
		if ok {
			out[i] = val
		}
	}
	return out, true, nil
}

func finite(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}
