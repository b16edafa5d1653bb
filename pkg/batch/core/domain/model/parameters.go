package model

import (
	"crypto/sha256"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
	"github.com/bryant1410/jsr352/pkg/batch/support/util/serialization"

	"github.com/google/uuid"
)

var (
	maskedKeysMu        sync.RWMutex
	maskedParameterKeys []string
)

// SetMaskedParameterKeys sets the parameter keys whose values are hidden by JobParameters.String.
func SetMaskedParameterKeys(keys []string) {
	maskedKeysMu.Lock()
	defer maskedKeysMu.Unlock()
	maskedParameterKeys = append([]string(nil), keys...)
}

// JobParameters is a structure holding parameters for job execution.
type JobParameters struct {
	Params map[string]interface{}
}

// NewJobParameters creates a new instance of JobParameters.
func NewJobParameters() JobParameters {
	return JobParameters{Params: make(map[string]interface{})}
}

// JobParametersOf builds JobParameters from string properties.
func JobParametersOf(props map[string]string) JobParameters {
	jp := NewJobParameters()
	for k, v := range props {
		jp.Params[k] = v
	}
	return jp
}

// Value implements the `driver.Valuer` interface, converting JobParameters to a JSON string.
func (jp JobParameters) Value() (driver.Value, error) {
	if jp.Params == nil {
		return "{}", nil
	}
	data, err := json.Marshal(jp.Params)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the `sql.Scanner` interface, converting a JSON string to JobParameters.
func (jp *JobParameters) Scan(value interface{}) error {
	b, err := scanBytes(value, "JobParameters")
	if err != nil {
		return err
	}
	jp.Params = make(map[string]interface{})
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, &jp.Params); err != nil {
		return fmt.Errorf("failed to unmarshal JobParameters JSON: %w", err)
	}
	return nil
}

// Put sets a value in JobParameters.
func (jp JobParameters) Put(key string, value interface{}) {
	jp.Params[key] = value
}

// Get retrieves the value for the specified key. Returns nil if the value does not exist.
func (jp JobParameters) Get(key string) interface{} {
	return jp.Params[key]
}

// GetString retrieves the value for the specified key as a string.
func (jp JobParameters) GetString(key string) (string, bool) {
	str, ok := jp.Params[key].(string)
	return str, ok
}

// GetInt retrieves the value for the specified key as an int.
func (jp JobParameters) GetInt(key string) (int, bool) {
	switch v := jp.Params[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// Copy returns an independent copy of the parameters.
func (jp JobParameters) Copy() JobParameters {
	cp := NewJobParameters()
	for k, v := range jp.Params {
		cp.Params[k] = v
	}
	return cp
}

// Merge returns a copy of jp overridden by override: keys present in override replace
// the old values, keys absent from override are inherited.
func (jp JobParameters) Merge(override JobParameters) JobParameters {
	merged := jp.Copy()
	for k, v := range override.Params {
		merged.Params[k] = v
	}
	return merged
}

// Strings renders every parameter with fmt, for handing to property binding.
func (jp JobParameters) Strings() map[string]string {
	out := make(map[string]string, len(jp.Params))
	for k, v := range jp.Params {
		out[k] = fmt.Sprint(v)
	}
	return out
}

// Equal compares if two JobParameters are equal.
func (jp JobParameters) Equal(other JobParameters) bool {
	if len(jp.Params) == 0 && len(other.Params) == 0 {
		return true
	}
	return reflect.DeepEqual(jp.Params, other.Params)
}

// Contains reports whether jp holds all keys and values of partialParams.
// Numeric values compare equal regardless of their Go type.
func (jp JobParameters) Contains(partialParams JobParameters) bool {
	for key, partialValue := range partialParams.Params {
		actualValue, ok := jp.Params[key]
		if !ok || !deepEqualWithNumericTolerance(actualValue, partialValue) {
			return false
		}
	}
	return true
}

func deepEqualWithNumericTolerance(a, b interface{}) bool {
	af, aok := toFloat64(a)
	bf, bok := toFloat64(b)
	if aok && bok {
		return af == bf
	}
	return reflect.DeepEqual(a, b)
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// Hash calculates the hash value of JobParameters over a canonical JSON rendering with sorted keys.
func (jp JobParameters) Hash() (string, error) {
	normalizedJSON, err := canonicalJSON(jp.Params)
	if err != nil {
		return "", exception.NewBatchError("job_parameters", "Failed to marshal JobParameters to canonical JSON for hash calculation", err, false, false)
	}
	sum := sha256.Sum256(normalizedJSON)
	return hex.EncodeToString(sum[:]), nil
}

func canonicalJSON(val interface{}) ([]byte, error) {
	m, ok := val.(map[string]interface{})
	if !ok {
		if f, isNum := toFloat64(val); isNum {
			return json.Marshal(f)
		}
		return json.Marshal(val)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("{")
	for i, k := range keys {
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		valBytes, err := canonicalJSON(m[k])
		if err != nil {
			return nil, err
		}
		if i > 0 {
			sb.WriteString(",")
		}
		sb.Write(keyBytes)
		sb.WriteString(":")
		sb.Write(valBytes)
	}
	sb.WriteString("}")
	return []byte(sb.String()), nil
}

// String returns the JSON form of the parameters with masked keys hidden.
func (jp JobParameters) String() string {
	maskedKeysMu.RLock()
	keys := maskedParameterKeys
	maskedKeysMu.RUnlock()

	data, err := json.Marshal(serialization.GetMaskedParametersMap(jp.Params, keys))
	if err != nil {
		return fmt.Sprintf("{[ERROR: Failed to marshal masked parameters: %v]}", err)
	}
	return string(data)
}

// NewID generates a new UUID string.
func NewID() string {
	return uuid.New().String()
}
