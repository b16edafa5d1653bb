package logger_test

import (
	"bytes"
	"os"
	"testing"

	"github.com/bryant1410/jsr352/pkg/batch/support/util/logger"

	"github.com/stretchr/testify/assert"
)

func TestSetLogLevelFiltersMessages(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(os.Stderr)
	defer logger.SetLogLevel("INFO")

	logger.SetLogLevel("warn")
	assert.Equal(t, logger.LevelWarn, logger.GetLogLevel())

	logger.Infof("hidden %d", 1)
	logger.Warnf("shown %d", 2)
	assert.NotContains(t, buf.String(), "hidden 1")
	assert.Contains(t, buf.String(), "shown 2")

	logger.SetLogLevel("DEBUG")
	logger.Debugf("debug line")
	assert.Contains(t, buf.String(), "debug line")
}

func TestSetLogLevelUnknownDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(os.Stderr)

	logger.SetLogLevel("verbose")
	assert.Equal(t, logger.LevelInfo, logger.GetLogLevel())
	assert.Contains(t, buf.String(), "Unknown log level 'verbose'")
}
