package logging

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{" warn ", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), "level %q", tt.in)
	}
}

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("SKETCHFLOW_TEST_VALUE", "")
	assert.Equal(t, "fallback", EnvOrDefault("SKETCHFLOW_TEST_VALUE", "fallback"))

	t.Setenv("SKETCHFLOW_TEST_VALUE", "set")
	assert.Equal(t, "set", EnvOrDefault("SKETCHFLOW_TEST_VALUE", "fallback"))
}

func TestStartupLoggerSkipsEmptyEndpoints(t *testing.T) {
	s := NewStartupLogger("convert").
		Endpoint("api", "http://localhost:8000").
		Endpoint("auth", "")

	assert.Len(t, s.endpoints, 1)
	assert.Equal(t, "http://localhost:8000", s.endpoints["api"])
}
