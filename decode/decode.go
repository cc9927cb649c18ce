// Copyright (C) 2025 M. Felden. All Rights Reserved.

// Package decode loads documents into treewalk values.
//
// JSON input may carry comments and trailing commas (the HuJSON
// extensions); it is standardized before decoding. Object member order
// is preserved in both formats, which matters because wildcard
// enumeration follows insertion order.
package decode

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	yaml "github.com/goccy/go-yaml"
	"github.com/tailscale/hujson"

	"github.com/mfelden/treewalk/value"
)

// JSON decodes a JSON or HuJSON document into a value.
func JSON(data []byte) (value.Value, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("standardize input: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(std))
	dec.UseNumber()
	v, err := decodeNext(dec)
	if err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after document")
	}
	return v, nil
}

func decodeNext(dec *json.Decoder) (value.Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return decodeToken(dec, tok)
}

func decodeToken(dec *json.Decoder, tok json.Token) (value.Value, error) {
	switch t := tok.(type) {
	case nil:
		return value.Null, nil
	case bool:
		return value.Bool(t), nil
	case string:
		return value.String(t), nil
	case json.Number:
		if z, err := t.Int64(); err == nil {
			return value.Int(z), nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", t)
		}
		return value.Float(f), nil
	case json.Delim:
		switch t {
		case '{':
			out := value.NewObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("object key is %T, want string", keyTok)
				}
				val, err := decodeNext(dec)
				if err != nil {
					return nil, err
				}
				out.Set(key, val)
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return nil, err
			}
			return out, nil
		case '[':
			out := value.NewArray()
			for dec.More() {
				elt, err := decodeNext(dec)
				if err != nil {
					return nil, err
				}
				out.Append(elt)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return nil, err
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

// YAML decodes a YAML document into a value, preserving mapping order.
func YAML(data []byte) (value.Value, error) {
	var doc any
	if err := yaml.UnmarshalWithOptions(data, &doc, yaml.UseOrderedMap()); err != nil {
		return nil, err
	}
	return fromYAML(doc)
}

func fromYAML(v any) (value.Value, error) {
	switch t := v.(type) {
	case nil:
		return value.Null, nil
	case bool:
		return value.Bool(t), nil
	case int:
		return value.Int(t), nil
	case int64:
		return value.Int(t), nil
	case uint64:
		return value.Int(t), nil
	case float64:
		return value.Float(t), nil
	case string:
		return value.String(t), nil
	case time.Time:
		return value.Time{T: t}, nil
	case []any:
		out := value.NewArray()
		for _, elt := range t {
			ev, err := fromYAML(elt)
			if err != nil {
				return nil, err
			}
			out.Append(ev)
		}
		return out, nil
	case yaml.MapSlice:
		out := value.NewObject()
		for _, item := range t {
			key, ok := item.Key.(string)
			if !ok {
				return nil, fmt.Errorf("mapping key is %T, want string", item.Key)
			}
			ev, err := fromYAML(item.Value)
			if err != nil {
				return nil, err
			}
			out.Set(key, ev)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported YAML value %T", v)
}
