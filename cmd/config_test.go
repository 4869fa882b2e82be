package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"firestige.xyz/airsniff/internal/config"
)

func TestRunConfig(t *testing.T) {
	c := config.Default()
	c.Device.Port = "/dev/ttyACM0"

	var buf bytes.Buffer
	require.NoError(t, runConfig(c, &buf))

	out := buf.String()
	assert.Contains(t, out, "airsniff:\n  device:\n    port: /dev/ttyACM0\n")
	assert.Contains(t, out, "command_timeout: 3s")

	var decoded map[string]map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	capture, ok := decoded["airsniff"]["capture"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "all", capture["filter"])
	assert.Equal(t, []any{"flock"}, capture["watch"])
}
