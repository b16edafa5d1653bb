package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// ExecutionContext is a key-value store for state that must survive a restart.
// The engine treats its content as opaque.
type ExecutionContext map[string]interface{}

// NewExecutionContext creates an empty ExecutionContext.
func NewExecutionContext() ExecutionContext {
	return make(ExecutionContext)
}

// Value implements the `driver.Valuer` interface, converting the ExecutionContext to a JSON string.
func (ec ExecutionContext) Value() (driver.Value, error) {
	if ec == nil {
		return "{}", nil
	}
	data, err := json.Marshal(ec)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the `sql.Scanner` interface, converting a JSON string to an ExecutionContext.
func (ec *ExecutionContext) Scan(value interface{}) error {
	b, err := scanBytes(value, "ExecutionContext")
	if err != nil {
		return err
	}
	*ec = make(ExecutionContext)
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, ec); err != nil {
		return fmt.Errorf("failed to unmarshal ExecutionContext JSON: %w", err)
	}
	return nil
}

func scanBytes(value interface{}, typeName string) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported Scan type for %s: %T", typeName, value)
	}
}

// Put sets a value in the ExecutionContext.
func (ec ExecutionContext) Put(key string, value interface{}) {
	ec[key] = value
}

// Get retrieves the value for the specified key.
func (ec ExecutionContext) Get(key string) (interface{}, bool) {
	val, ok := ec[key]
	return val, ok
}

// GetString retrieves the value for the specified key as a string.
func (ec ExecutionContext) GetString(key string) (string, bool) {
	str, ok := ec[key].(string)
	return str, ok
}

// GetInt retrieves the value for the specified key as an int.
// Numbers decoded from JSON arrive as float64 and are converted.
func (ec ExecutionContext) GetInt(key string) (int, bool) {
	switch v := ec[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case json.Number:
		i, err := v.Int64()
		return int(i), err == nil
	default:
		return 0, false
	}
}

// GetBool retrieves the value for the specified key as a bool.
func (ec ExecutionContext) GetBool(key string) (bool, bool) {
	b, ok := ec[key].(bool)
	return b, ok
}

// Copy creates a shallow copy of the ExecutionContext. A nil context copies to nil.
func (ec ExecutionContext) Copy() ExecutionContext {
	if ec == nil {
		return nil
	}
	newEC := make(ExecutionContext, len(ec))
	for k, v := range ec {
		newEC[k] = v
	}
	return newEC
}

// GetNested retrieves a nested value using a dot-separated key such as "reader.position".
// A top-level key containing dots takes precedence.
func (ec ExecutionContext) GetNested(key string) (interface{}, bool) {
	if val, ok := ec[key]; ok {
		return val, true
	}

	var current interface{} = ec
	for _, part := range strings.Split(key, ".") {
		var m map[string]interface{}
		switch v := current.(type) {
		case ExecutionContext:
			m = v
		case map[string]interface{}:
			m = v
		default:
			return nil, false
		}
		next, ok := m[part]
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

// PutNested sets a value using a dot-separated key, creating intermediate maps as needed.
// A non-map value on the path is replaced.
func (ec ExecutionContext) PutNested(key string, value interface{}) {
	parts := strings.Split(key, ".")
	current := ec
	for i, part := range parts {
		if i == len(parts)-1 {
			current[part] = value
			return
		}
		var next ExecutionContext
		switch v := current[part].(type) {
		case ExecutionContext:
			next = v
		case map[string]interface{}:
			next = ExecutionContext(v)
		default:
			next = NewExecutionContext()
		}
		current[part] = next
		current = next
	}
}

// Remove removes the specified key from the ExecutionContext.
func (ec ExecutionContext) Remove(key string) {
	delete(ec, key)
}

// FailureList holds the failure messages recorded on an execution.
type FailureList []string

// Value implements the `driver.Valuer` interface, converting FailureList to a JSON string.
func (fl FailureList) Value() (driver.Value, error) {
	if fl == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(fl))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the `sql.Scanner` interface, converting a JSON string to FailureList.
func (fl *FailureList) Scan(value interface{}) error {
	b, err := scanBytes(value, "FailureList")
	if err != nil {
		return err
	}
	*fl = make(FailureList, 0)
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, (*[]string)(fl)); err != nil {
		return fmt.Errorf("failed to unmarshal FailureList JSON: %w", err)
	}
	return nil
}

// Add appends msg unless it is already present.
func (fl *FailureList) Add(msg string) bool {
	for _, existing := range *fl {
		if existing == msg {
			return false
		}
	}
	*fl = append(*fl, msg)
	return true
}
