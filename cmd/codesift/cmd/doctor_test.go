package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoctorCmd_JSONOutput(t *testing.T) {
	setTestEnv(t)

	out, err := runCLI(t, "doctor", "--json")
	require.NoError(t, err, "no critical check should fail in an offline static setup")

	var results []checkResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))

	names := make(map[string]checkResult, len(results))
	for _, res := range results {
		names[res.Name] = res
	}

	require.Contains(t, names, "configuration")
	assert.True(t, names["configuration"].OK)
	require.Contains(t, names, "metadata store")
	assert.True(t, names["metadata store"].OK)
	require.Contains(t, names, "embedder")
	assert.True(t, names["embedder"].OK, "static embedder is always available")

	// The summarizer host points at a closed port; this is a warning,
	// not a failure.
	require.Contains(t, names, "summarizer")
	assert.False(t, names["summarizer"].OK)
	assert.False(t, names["summarizer"].Critical)
}

func TestDoctorCmd_TextOutput(t *testing.T) {
	setTestEnv(t)

	out, err := runCLI(t, "doctor")
	require.NoError(t, err)
	assert.Contains(t, out, "codesift doctor")
	assert.Contains(t, out, "configuration")
}
