package serialization_test

import (
	"testing"

	"github.com/bryant1410/jsr352/pkg/batch/support/util/serialization"

	"github.com/stretchr/testify/assert"
)

func TestGetMaskedParametersMap(t *testing.T) {
	params := map[string]interface{}{"user": "batch", "password": "secret"}
	masked := serialization.GetMaskedParametersMap(params, []string{"password", "missing"})

	assert.Equal(t, "batch", masked["user"])
	assert.Equal(t, serialization.MaskValue, masked["password"])
	assert.NotContains(t, masked, "missing")
	assert.Equal(t, "secret", params["password"], "input must not be modified")
}

func TestMarshalNilValues(t *testing.T) {
	data, err := serialization.Marshal(map[string]interface{}(nil))
	assert.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	data, err = serialization.MarshalFailures(nil)
	assert.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestFailuresRoundTrip(t *testing.T) {
	data, err := serialization.MarshalFailures([]string{"a", "b"})
	assert.NoError(t, err)

	msgs, err := serialization.UnmarshalFailures(data)
	assert.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, msgs)

	msgs, err = serialization.UnmarshalFailures(nil)
	assert.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestUnmarshalInvalid(t *testing.T) {
	var target map[string]interface{}
	err := serialization.Unmarshal([]byte("{not json"), &target)
	assert.Error(t, err)
}
