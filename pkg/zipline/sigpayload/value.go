// Package sigpayload implements the signature payload canonicalizer: the
// deterministic transformation of a manifest's parsed JSON that blanks
// transport-mutable fields (module urls, signature values) while preserving
// everything else, including key order and unknown fields of any shape.
//
// It operates on a small ordered JSON value tree rather than Go's
// encoding/json map type, because map[string]any does not preserve object
// key order and this package's whole job depends on that order surviving.
package sigpayload

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind identifies the shape of a Value.
type Kind int

// JSON value kinds.
const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// Member is one (key, value) pair of a JSON object, in source order.
type Member struct {
	Key   string
	Value Value
}

// Value is a parsed JSON value that remembers object member order.
type Value struct {
	Kind   Kind
	Bool   bool
	Number json.Number
	String string
	Array  []Value
	Object []Member
}

// Parse decodes raw JSON bytes into an order-preserving Value tree. Numbers
// are kept as json.Number so re-serialization never alters their literal
// form.
func Parse(raw []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	v, err := parseValue(dec)
	if err != nil {
		return Value{}, err
	}
	if dec.More() {
		return Value{}, fmt.Errorf("sigpayload: trailing data after top-level value")
	}
	return v, nil
}

func parseValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	return parseToken(dec, tok)
}

func parseToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := Value{Kind: KindObject}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("sigpayload: expected object key, got %v", keyTok)
				}
				val, err := parseValue(dec)
				if err != nil {
					return Value{}, err
				}
				obj.Object = append(obj.Object, Member{Key: key, Value: val})
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return Value{}, err
			}
			return obj, nil
		case '[':
			arr := Value{Kind: KindArray}
			for dec.More() {
				val, err := parseValue(dec)
				if err != nil {
					return Value{}, err
				}
				arr.Array = append(arr.Array, val)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return Value{}, err
			}
			return arr, nil
		default:
			return Value{}, fmt.Errorf("sigpayload: unexpected delimiter %q", t)
		}
	case bool:
		return Value{Kind: KindBool, Bool: t}, nil
	case json.Number:
		return Value{Kind: KindNumber, Number: t}, nil
	case string:
		return Value{Kind: KindString, String: t}, nil
	case nil:
		return Value{Kind: KindNull}, nil
	default:
		return Value{}, fmt.Errorf("sigpayload: unexpected token %v", tok)
	}
}

// Field returns the value of the named member of an object Value, if present.
func (v Value) Field(key string) (Value, bool) {
	if v.Kind != KindObject {
		return Value{}, false
	}
	for _, m := range v.Object {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}
