package workflow

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

var knownKeyCache sync.Map // reflect.Type -> map[string]struct{}

// knownKeys lists the JSON keys modelled by struct type t, following
// embedded structs the same way encoding/json does.
func knownKeys(t reflect.Type) map[string]struct{} {
	if cached, ok := knownKeyCache.Load(t); ok {
		return cached.(map[string]struct{})
	}
	keys := make(map[string]struct{})
	collectKeys(t, keys)
	knownKeyCache.Store(t, keys)
	return keys
}

func collectKeys(t reflect.Type, keys map[string]struct{}) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return
	}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if field.Anonymous && name == "" {
			collectKeys(field.Type, keys)
			continue
		}
		if !field.IsExported() {
			continue
		}
		if name == "" {
			name = field.Name
		}
		keys[name] = struct{}{}
	}
}

// marshalWithExtra encodes plain and adds any extra keys it does not model.
// Modelled keys win over extras with the same name.
func marshalWithExtra(plain any, extra map[string]any) ([]byte, error) {
	encoded, err := json.Marshal(plain)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return encoded, nil
	}
	merged := make(map[string]json.RawMessage, len(extra)+8)
	if err := json.Unmarshal(encoded, &merged); err != nil {
		return nil, err
	}
	for key, value := range extra {
		if _, exists := merged[key]; exists {
			continue
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode key %q: %w", key, err)
		}
		merged[key] = raw
	}
	return json.Marshal(merged)
}

// unmarshalWithExtra decodes data into plain and returns the keys plain does
// not model.
func unmarshalWithExtra(data []byte, plain any) (map[string]any, error) {
	if err := json.Unmarshal(data, plain); err != nil {
		return nil, err
	}
	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	known := knownKeys(reflect.TypeOf(plain))
	for key := range known {
		delete(all, key)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// decodeParams picks the variant for kind and decodes raw into it. A null or
// absent params object yields nil.
func decodeParams(kind Kind, raw json.RawMessage) (Params, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	info, ok := catalog[kind]
	if !ok {
		return nil, fmt.Errorf("unknown step type %q", kind)
	}
	params := info.newParams()
	resetParams(params)
	if err := json.Unmarshal(raw, params); err != nil {
		return nil, fmt.Errorf("decode %s params: %w", kind, err)
	}
	return params, nil
}

// resetParams zeroes a freshly built variant so decoding does not inherit
// default values for keys missing from the input.
func resetParams(p Params) {
	v := reflect.ValueOf(p)
	if v.Kind() == reflect.Pointer && !v.IsNil() {
		v.Elem().Set(reflect.Zero(v.Elem().Type()))
	}
}

// paramsToMap renders p as a generic JSON object.
func paramsToMap(p Params) (map[string]any, error) {
	if isNilParams(p) {
		return map[string]any{}, nil
	}
	encoded, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s params: %w", p.Kind(), err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, fmt.Errorf("decode %s params: %w", p.Kind(), err)
	}
	return out, nil
}

func isNilParams(p Params) bool {
	if p == nil {
		return true
	}
	v := reflect.ValueOf(p)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
