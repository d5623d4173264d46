package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// ValueKind discriminates the variants of Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindList
	KindMap
)

// Value is a tagged union over the JSON data model
// (string | number | bool | null | ordered list | ordered map). It preserves
// map key order and the original number literals, so a decode/encode round
// trip reproduces the source document byte-for-byte up to whitespace.
//
// Conflict detection relies on Canonical, which re-encodes the value with
// map keys sorted so that two semantically equal documents compare equal
// regardless of field ordering.
type Value struct {
	Kind   ValueKind
	Str    string
	Num    json.Number
	Bool   bool
	List   []Value
	Keys   []string
	Fields map[string]Value
}

// DecodeValue parses a JSON document into a Value. Numbers are kept as
// literals (json.Number) and object key order is preserved.
func DecodeValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeNext(dec)
	if err != nil {
		return Value{}, err
	}
	if dec.More() {
		return Value{}, fmt.Errorf("trailing data after JSON value")
	}
	return v, nil
}

func decodeNext(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, fmt.Errorf("decode json value: %w", err)
	}
	return decodeToken(dec, tok)
}

func decodeToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return Value{Kind: KindNull}, nil
	case string:
		return Value{Kind: KindString, Str: t}, nil
	case json.Number:
		return Value{Kind: KindNumber, Num: t}, nil
	case bool:
		return Value{Kind: KindBool, Bool: t}, nil
	case json.Delim:
		switch t {
		case '[':
			list := []Value{}
			for dec.More() {
				item, err := decodeNext(dec)
				if err != nil {
					return Value{}, err
				}
				list = append(list, item)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return Value{}, fmt.Errorf("decode json list: %w", err)
			}
			return Value{Kind: KindList, List: list}, nil
		case '{':
			v := Value{Kind: KindMap, Fields: map[string]Value{}}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, fmt.Errorf("decode json key: %w", err)
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("non-string json key %v", keyTok)
				}
				field, err := decodeNext(dec)
				if err != nil {
					return Value{}, err
				}
				if _, seen := v.Fields[key]; !seen {
					v.Keys = append(v.Keys, key)
				}
				v.Fields[key] = field
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return Value{}, fmt.Errorf("decode json map: %w", err)
			}
			return v, nil
		default:
			return Value{}, fmt.Errorf("unexpected delimiter %q", t)
		}
	default:
		return Value{}, fmt.Errorf("unexpected json token %v", tok)
	}
}

// Encode serializes the value, preserving the original map key order.
func (v Value) Encode() []byte {
	var buf bytes.Buffer
	v.appendTo(&buf, false)
	return buf.Bytes()
}

// Canonical serializes the value with map keys sorted lexicographically.
// Two values represent the same document iff their canonical forms are
// byte-identical.
func (v Value) Canonical() []byte {
	var buf bytes.Buffer
	v.appendTo(&buf, true)
	return buf.Bytes()
}

func (v Value) appendTo(buf *bytes.Buffer, canonical bool) {
	switch v.Kind {
	case KindNull:
		buf.WriteString("null")
	case KindString:
		encoded, _ := json.Marshal(v.Str)
		buf.Write(encoded)
	case KindNumber:
		buf.WriteString(v.Num.String())
	case KindBool:
		if v.Bool {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindList:
		buf.WriteByte('[')
		for i, item := range v.List {
			if i > 0 {
				buf.WriteByte(',')
			}
			item.appendTo(buf, canonical)
		}
		buf.WriteByte(']')
	case KindMap:
		keys := v.Keys
		if canonical {
			keys = append([]string(nil), v.Keys...)
			sort.Strings(keys)
		}
		buf.WriteByte('{')
		for i, key := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			encodedKey, _ := json.Marshal(key)
			buf.Write(encodedKey)
			buf.WriteByte(':')
			v.Fields[key].appendTo(buf, canonical)
		}
		buf.WriteByte('}')
	}
}

// Equal compares two values by canonical form.
func (v Value) Equal(other Value) bool {
	return bytes.Equal(v.Canonical(), other.Canonical())
}

// CanonicalJSON decodes data and re-encodes it in canonical form.
func CanonicalJSON(data []byte) ([]byte, error) {
	v, err := DecodeValue(data)
	if err != nil {
		return nil, err
	}
	return v.Canonical(), nil
}
