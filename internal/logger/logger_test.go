package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/yvm/internal/logger"
)

func TestComponentLoggerFollowsInitialize(t *testing.T) {
	// Created before Initialize, like the package-level loggers.
	componentLogger := logger.GetForComponent("test_component")

	var buf bytes.Buffer
	logger.InitializeWithWriter("debug", &buf)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	componentLogger.Info().Str("vault", "v1").Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "test_component", line["component"])
	require.Equal(t, "v1", line["vault"])
	require.Equal(t, "hello", line["message"])
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, zerolog.DebugLevel, logger.ParseLevel("debug"))
	require.Equal(t, zerolog.ErrorLevel, logger.ParseLevel("error"))
	require.Equal(t, zerolog.Disabled, logger.ParseLevel("disabled"))
	require.Equal(t, zerolog.InfoLevel, logger.ParseLevel("bogus"))
}
