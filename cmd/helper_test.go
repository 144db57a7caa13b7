package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHexID(t *testing.T) {
	id, err := parseHexID("")
	require.NoError(t, err)
	assert.Zero(t, id)

	id, err = parseHexID("0x0004000000055D00")
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0004000000055D00), id)

	id, err = parseHexID("ff")
	require.NoError(t, err)
	assert.Equal(t, uint64(0xFF), id)

	_, err = parseHexID("zz")
	assert.Error(t, err)
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "1.5kB", formatSize(1500))
}

func TestCommandTree(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "saves", "driver", "title", "version"} {
		assert.True(t, names[want], want)
	}
}
