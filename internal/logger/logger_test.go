package logger

import (
	"testing"

	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zap.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zap.WarnLevel, ParseLevel(" WARN "))
	assert.Equal(t, zap.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zap.InfoLevel, ParseLevel("info"))
	assert.Equal(t, zap.InfoLevel, ParseLevel("verbose"))
}

func TestEchoLevel(t *testing.T) {
	assert.Equal(t, log.DEBUG, EchoLevel("debug"))
	assert.Equal(t, log.ERROR, EchoLevel("error"))
	assert.Equal(t, log.INFO, EchoLevel(""))
}
