package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Document is a JSON-shaped configuration document
type Document map[string]interface{}

// Clone returns a deep copy of the document
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return nil
	}
	out := Document{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// Lookup walks the path and returns the raw value
func (d Document) Lookup(path ...string) (interface{}, bool) {
	var cur interface{} = map[string]interface{}(d)
	for _, key := range path {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Section returns the nested object at key
func (d Document) Section(key string) (Document, bool) {
	v, ok := d[key]
	if !ok {
		return nil, false
	}
	m, ok := asMap(v)
	if !ok {
		return nil, false
	}
	return Document(m), true
}

// String returns the scalar at path rendered as a string
func (d Document) String(path ...string) (string, error) {
	v, ok := d.Lookup(path...)
	if !ok || v == nil {
		return "", fmt.Errorf("missing key '%s'", strings.Join(path, "."))
	}
	switch val := v.(type) {
	case string:
		return val, nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case bool, int, int64, json.Number:
		return fmt.Sprint(val), nil
	}
	return "", fmt.Errorf("key '%s' is not a scalar", strings.Join(path, "."))
}

// StringOr returns the scalar at path or def when it is absent
func (d Document) StringOr(def string, path ...string) string {
	v, err := d.String(path...)
	if err != nil {
		return def
	}
	return v
}

// Int returns the integer at path, numeric strings are accepted
func (d Document) Int(path ...string) (int, error) {
	v, ok := d.Lookup(path...)
	if !ok || v == nil {
		return 0, fmt.Errorf("missing key '%s'", strings.Join(path, "."))
	}
	switch val := v.(type) {
	case float64:
		if val != math.Trunc(val) {
			return 0, fmt.Errorf("key '%s' is not an integer: %v", strings.Join(path, "."), val)
		}
		return int(val), nil
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case json.Number:
		n, err := val.Int64()
		return int(n), err
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, fmt.Errorf("key '%s' is not an integer: %q", strings.Join(path, "."), val)
		}
		return n, nil
	}
	return 0, fmt.Errorf("key '%s' is not an integer", strings.Join(path, "."))
}

// Set assigns value at path, creating intermediate objects
func (d Document) Set(value interface{}, path ...string) error {
	if len(path) == 0 {
		return fmt.Errorf("empty path")
	}
	cur := map[string]interface{}(d)
	for _, key := range path[:len(path)-1] {
		next, ok := cur[key]
		if !ok {
			created := map[string]interface{}{}
			cur[key] = created
			cur = created
			continue
		}
		m, ok := asMap(next)
		if !ok {
			return fmt.Errorf("key '%s' is not an object", key)
		}
		cur = m
	}
	cur[path[len(path)-1]] = value
	return nil
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case Document:
		return m, true
	}
	return nil, false
}
