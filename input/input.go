// Package input manages the emulated input devices attached to a session.
package input

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/projecteru2/core/log"
)

// Subsystem is the input boundary the session controller drives.
type Subsystem interface {
	Init(ctx context.Context) error
	Shutdown()
	// EnableSensors and DisableSensors toggle motion/accelerometer input.
	EnableSensors()
	DisableSensors()
}

// Button is an emulated pad button.
type Button string

const (
	ButtonA      Button = "a"
	ButtonB      Button = "b"
	ButtonX      Button = "x"
	ButtonY      Button = "y"
	ButtonStart  Button = "start"
	ButtonSelect Button = "select"
	ButtonL      Button = "l"
	ButtonR      Button = "r"
	ButtonUp     Button = "up"
	ButtonDown   Button = "down"
	ButtonLeft   Button = "left"
	ButtonRight  Button = "right"
)

// ErrUnknownButton is returned by ParseButton for names outside the pad.
var ErrUnknownButton = errors.New("unknown button")

var buttons = []Button{
	ButtonA, ButtonB, ButtonX, ButtonY,
	ButtonStart, ButtonSelect, ButtonL, ButtonR,
	ButtonUp, ButtonDown, ButtonLeft, ButtonRight,
}

// Buttons returns every pad button.
func Buttons() []Button { return append([]Button(nil), buttons...) }

// ParseButton maps a button name to a Button.
func ParseButton(name string) (Button, error) {
	for _, b := range buttons {
		if string(b) == name {
			return b, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownButton, name)
}

// Pad is the read side of the emulated pad, sampled by the engine.
type Pad interface {
	Pressed(b Button) bool
}

// Gamepad is a Subsystem that also accepts button events from the host.
type Gamepad interface {
	Subsystem
	Pad
	// SetButton reports whether the event was consumed.
	SetButton(b Button, pressed bool) bool
}

var _ Gamepad = (*Manager)(nil)

// Manager is the default Subsystem. It tracks pad state and the motion
// sensor gate; button state is only accepted between Init and Shutdown.
type Manager struct {
	initialized atomic.Bool
	sensors     atomic.Bool

	mu      sync.Mutex
	pressed map[Button]bool
}

// NewManager returns an uninitialized Manager.
func NewManager() *Manager {
	return &Manager{pressed: make(map[Button]bool)}
}

// Init attaches the input devices. Sensors start enabled.
func (m *Manager) Init(ctx context.Context) error {
	m.mu.Lock()
	clear(m.pressed)
	m.mu.Unlock()
	m.sensors.Store(true)
	m.initialized.Store(true)
	log.WithFunc("input.Init").Debugf(ctx, "input devices attached")
	return nil
}

// Shutdown releases every device and forgets pressed buttons.
func (m *Manager) Shutdown() {
	m.initialized.Store(false)
	m.sensors.Store(false)
	m.mu.Lock()
	clear(m.pressed)
	m.mu.Unlock()
}

func (m *Manager) EnableSensors() {
	if m.initialized.Load() {
		m.sensors.Store(true)
	}
}

func (m *Manager) DisableSensors() { m.sensors.Store(false) }

// SensorsEnabled reports whether motion input is delivered.
func (m *Manager) SensorsEnabled() bool { return m.sensors.Load() }

// Initialized reports whether Init ran without a later Shutdown.
func (m *Manager) Initialized() bool { return m.initialized.Load() }

// SetButton records a press or release. It reports false when no session owns
// the input devices.
func (m *Manager) SetButton(b Button, pressed bool) bool {
	if !m.initialized.Load() {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if pressed {
		m.pressed[b] = true
	} else {
		delete(m.pressed, b)
	}
	return true
}

// Pressed reports whether b is held.
func (m *Manager) Pressed(b Button) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pressed[b]
}
