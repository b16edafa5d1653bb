// Package configbinder binds string properties from job and step definitions onto
// artifact structs.
package configbinder

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// TagName is the struct tag consulted when binding properties.
const TagName = "batch"

// BindProperties binds string properties to target, converting values to the field types.
// Fields are matched by their `batch` tag, or by name when untagged.
func BindProperties(props map[string]string, target interface{}) error {
	if len(props) == 0 {
		return nil
	}

	intermediate := make(map[string]interface{}, len(props))
	for k, v := range props {
		intermediate[k] = v
	}
	return BindMap(intermediate, target)
}

// BindMap binds arbitrary values to target with the same rules as BindProperties.
func BindMap(values map[string]interface{}, target interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		TagName:          TagName,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(values); err != nil {
		targetType := reflect.TypeOf(target)
		if targetType.Kind() == reflect.Ptr {
			targetType = targetType.Elem()
		}
		return fmt.Errorf("failed to bind properties to struct %s: %w", targetType.Name(), err)
	}
	return nil
}
