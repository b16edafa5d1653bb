// Package serialization provides JSON helpers for persisting job parameters, definitions,
// failure lists and checkpoint payloads.
package serialization

import (
	"encoding/json"

	"github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
)

const module = "serialization"

// MaskValue replaces the values of masked parameter keys.
const MaskValue = "********"

// GetMaskedParametersMap returns a copy of params with the values of maskedKeys replaced by MaskValue.
func GetMaskedParametersMap(params map[string]interface{}, maskedKeys []string) map[string]interface{} {
	masked := make(map[string]interface{}, len(params))
	for k, v := range params {
		masked[k] = v
	}
	for _, key := range maskedKeys {
		if _, ok := masked[key]; ok {
			masked[key] = MaskValue
		}
	}
	return masked
}

// Marshal serializes v into JSON. A nil map or slice is written as its empty literal
// so stored columns never contain "null".
func Marshal(v interface{}) ([]byte, error) {
	switch val := v.(type) {
	case map[string]interface{}:
		if val == nil {
			return []byte("{}"), nil
		}
	case []string:
		if val == nil {
			return []byte("[]"), nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, exception.NewBatchError(module, "failed to serialize value", err, false, false)
	}
	return data, nil
}

// Unmarshal deserializes JSON data into target. Empty or "null" data leaves target untouched.
func Unmarshal(data []byte, target interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return exception.NewBatchError(module, "failed to deserialize value", err, false, false)
	}
	return nil
}

// MarshalFailures serializes a slice of failure messages.
func MarshalFailures(failures []string) ([]byte, error) {
	return Marshal(failures)
}

// UnmarshalFailures deserializes a slice of failure messages.
func UnmarshalFailures(data []byte) ([]string, error) {
	msgs := []string{}
	if err := Unmarshal(data, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}
