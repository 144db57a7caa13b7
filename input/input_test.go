package input

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerLifecycle(t *testing.T) {
	m := NewManager()
	assert.False(t, m.Initialized())
	assert.False(t, m.SetButton(ButtonA, true))

	require.NoError(t, m.Init(context.Background()))
	assert.True(t, m.Initialized())
	assert.True(t, m.SensorsEnabled())

	assert.True(t, m.SetButton(ButtonA, true))
	assert.True(t, m.Pressed(ButtonA))
	assert.True(t, m.SetButton(ButtonA, false))
	assert.False(t, m.Pressed(ButtonA))

	m.SetButton(ButtonStart, true)
	m.Shutdown()
	assert.False(t, m.Initialized())
	assert.False(t, m.Pressed(ButtonStart))
	assert.False(t, m.SensorsEnabled())
}

func TestManagerSensors(t *testing.T) {
	m := NewManager()
	m.EnableSensors()
	assert.False(t, m.SensorsEnabled(), "sensors stay off before Init")

	require.NoError(t, m.Init(context.Background()))
	m.DisableSensors()
	assert.False(t, m.SensorsEnabled())
	m.EnableSensors()
	assert.True(t, m.SensorsEnabled())
}

func TestParseButton(t *testing.T) {
	for _, b := range Buttons() {
		got, err := ParseButton(string(b))
		require.NoError(t, err)
		assert.Equal(t, b, got)
	}
	_, err := ParseButton("home")
	assert.ErrorIs(t, err, ErrUnknownButton)
}
