package configbinder_test

import (
	"testing"
	"time"

	"github.com/bryant1410/jsr352/pkg/batch/support/util/configbinder"

	"github.com/stretchr/testify/assert"
)

type readerProps struct {
	FailAt    int           `batch:"reader.fail.at"`
	DataCount int           `batch:"data.count"`
	Sleep     time.Duration `batch:"writer.sleep.time"`
	Verbose   bool          `batch:"verbose"`
	Name      string
}

func TestBindProperties(t *testing.T) {
	props := readerProps{FailAt: -1}
	err := configbinder.BindProperties(map[string]string{
		"reader.fail.at":    "13",
		"data.count":        "20",
		"writer.sleep.time": "500ms",
		"verbose":           "true",
		"Name":              "chunkStop",
	}, &props)

	assert.NoError(t, err)
	assert.Equal(t, 13, props.FailAt)
	assert.Equal(t, 20, props.DataCount)
	assert.Equal(t, 500*time.Millisecond, props.Sleep)
	assert.True(t, props.Verbose)
	assert.Equal(t, "chunkStop", props.Name)
}

func TestBindPropertiesEmptyKeepsDefaults(t *testing.T) {
	props := readerProps{FailAt: -1}
	assert.NoError(t, configbinder.BindProperties(nil, &props))
	assert.Equal(t, -1, props.FailAt)
}

func TestBindPropertiesRejectsBadValue(t *testing.T) {
	var props readerProps
	err := configbinder.BindProperties(map[string]string{"data.count": "twenty"}, &props)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "readerProps")
}
