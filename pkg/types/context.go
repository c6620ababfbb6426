package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// ExecutionContext is an ordered mapping of variable names to string values,
// handed to the workload launcher as its process environment
type ExecutionContext struct {
	keys   []string
	values map[string]string
}

// NewExecutionContext returns an empty context
func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{values: map[string]string{}}
}

// Set assigns name, keeping the position of the first assignment
func (e *ExecutionContext) Set(name, value string) {
	if e.values == nil {
		e.values = map[string]string{}
	}
	if _, ok := e.values[name]; !ok {
		e.keys = append(e.keys, name)
	}
	e.values[name] = value
}

// Setf assigns the formatted value of v
func (e *ExecutionContext) Setf(name string, v interface{}) {
	e.Set(name, fmt.Sprint(v))
}

// Get returns the value of name
func (e *ExecutionContext) Get(name string) (string, bool) {
	v, ok := e.values[name]
	return v, ok
}

// Keys returns the names in assignment order
func (e *ExecutionContext) Keys() []string {
	return append([]string(nil), e.keys...)
}

// Len returns the number of variables
func (e *ExecutionContext) Len() int {
	return len(e.keys)
}

// Environ renders the context as KEY=VALUE pairs in assignment order
func (e *ExecutionContext) Environ() []string {
	env := make([]string, 0, len(e.keys))
	for _, k := range e.keys {
		env = append(env, k+"="+e.values[k])
	}
	return env
}

// ProcessEnv returns the parent process environment followed by the context,
// later entries win for duplicate names
func (e *ExecutionContext) ProcessEnv() []string {
	return append(os.Environ(), e.Environ()...)
}

// MarshalJSON keeps the assignment order
func (e ExecutionContext) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range e.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON restores the order found in the document
func (e *ExecutionContext) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("execution context must be a JSON object")
	}
	*e = ExecutionContext{values: map[string]string{}}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected key %v in execution context", tok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("value of %s: %v", key, err)
		}
		e.Set(key, value)
	}
	_, err = dec.Token()
	return err
}
