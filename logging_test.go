package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gregoryjjb/glowchain/pubsub"
)

func TestInitializeLogger_ComponentLoggers(t *testing.T) {
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	var buf bytes.Buffer
	initializeLogger(&buf, zerolog.InfoLevel, true)

	srvlog().Info().Msg("server line")

	// A full subscriber makes pubsub warn from its own package
	ps := pubsub.New[int](0)
	_, ch := ps.Subscribe()
	ps.Publish(1)
	assert.Empty(t, ch)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	assert.Contains(t, lines[0], "| INFO  |")
	assert.Contains(t, lines[0], "server line")
	assert.Contains(t, lines[0], "component=server")

	assert.Contains(t, lines[1], "| WARN  |")
	assert.Contains(t, lines[1], "component=pubsub")

	assert.NotContains(t, buf.String(), `"level"`, "lines must not fall back to JSON")
}
