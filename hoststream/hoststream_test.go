package hoststream

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cocoonstack/emuhost/input"
	"github.com/cocoonstack/emuhost/session"
	"github.com/cocoonstack/emuhost/types"
)

type fakeController struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeController) record(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, s)
}

func (f *fakeController) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeController) Pause() { f.record("pause") }
func (f *fakeController) Resume() { f.record("resume") }
func (f *fakeController) Stop() { f.record("stop") }

func (f *fakeController) RequestSave(slot int) error {
	if slot == 0 {
		return errors.New("bad slot")
	}
	f.record("save")
	return nil
}

func (f *fakeController) RequestLoad(int) error { f.record("load"); return nil }

func (f *fakeController) SetButton(b input.Button, pressed bool) error {
	f.record(fmt.Sprintf("button %s %t", b, pressed))
	return nil
}

func (f *fakeController) ToggleTurbo(enabled bool) { f.record(fmt.Sprintf("turbo %t", enabled)) }

func (f *fakeController) SetTurboSpeed(percent int) error {
	if percent < 0 {
		return session.ErrInvalidSpeed
	}
	f.record(fmt.Sprintf("speed %d", percent))
	return nil
}

func (f *fakeController) GetPerfStats() types.PerfSnapshot {
	return types.PerfSnapshot{GameFPS: 59.9}
}

func (f *fakeController) SessionID() string { return "sess-1" }

func dial(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 5*time.Second, time.Millisecond)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

// --- Events ---

func TestPublish(t *testing.T) {
	hub := NewHub(&fakeController{})
	conn := dial(t, hub)

	hub.Publish(Event{Type: EventState, State: types.SessionRunning.String()})
	ev := readEvent(t, conn)
	assert.Equal(t, EventState, ev.Type)
	assert.Equal(t, "running", ev.State)
	assert.Equal(t, "sess-1", ev.Session)
	assert.False(t, ev.Time.IsZero())
}

func TestCallbacksPublishAndChain(t *testing.T) {
	hub := NewHub(&fakeController{})
	conn := dial(t, hub)

	var exited types.Status
	cb := hub.Callbacks(session.Callbacks{OnExit: func(s types.Status) { exited = s }})

	cb.OnExit(types.StatusErrorSystemFiles)
	ev := readEvent(t, conn)
	assert.Equal(t, EventExit, ev.Type)
	assert.Equal(t, "ErrorSystemFiles", ev.Status)
	assert.Equal(t, types.StatusErrorSystemFiles, exited)

	assert.False(t, cb.OnCoreError(types.ErrorKindSavestate, "corrupt"), "no next handler aborts")
	ev = readEvent(t, conn)
	assert.Equal(t, EventError, ev.Type)
	assert.Equal(t, types.ErrorKindSavestate, ev.Kind)

	cb.OnDiskCacheProgress(types.LoadStageBuild, 2, 5)
	ev = readEvent(t, conn)
	assert.Equal(t, "build", ev.Stage)
	assert.Equal(t, 5, ev.Max)

	cb.OnStateChange(types.SessionPaused)
	ev = readEvent(t, conn)
	assert.Equal(t, "paused", ev.State)
}

func TestRunPerf(t *testing.T) {
	hub := NewHub(&fakeController{})
	conn := dial(t, hub)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.RunPerf(ctx, 10*time.Millisecond)

	ev := readEvent(t, conn)
	assert.Equal(t, EventPerf, ev.Type)
	require.NotNil(t, ev.Perf)
	assert.InDelta(t, 59.9, ev.Perf.GameFPS, 0.001)
}

// --- Commands ---

func TestCommands(t *testing.T) {
	ctrl := &fakeController{}
	hub := NewHub(ctrl)
	conn := dial(t, hub)

	for _, op := range []string{OpPause, OpResume, OpStop} {
		require.NoError(t, conn.WriteJSON(Command{Op: op}))
		ev := readEvent(t, conn)
		assert.Equal(t, EventAck, ev.Type)
		assert.Equal(t, op, ev.Op)
	}
	require.NoError(t, conn.WriteJSON(Command{Op: OpSave, Slot: 2}))
	assert.Equal(t, EventAck, readEvent(t, conn).Type)
	require.NoError(t, conn.WriteJSON(Command{Op: OpLoad, Slot: 2}))
	assert.Equal(t, EventAck, readEvent(t, conn).Type)

	assert.Equal(t, []string{"pause", "resume", "stop", "save", "load"}, ctrl.snapshot())
}

func TestPadAndTurboCommands(t *testing.T) {
	ctrl := &fakeController{}
	hub := NewHub(ctrl)
	conn := dial(t, hub)

	for _, cmd := range []Command{
		{Op: OpButton, Button: "a", Pressed: true},
		{Op: OpButton, Button: "a"},
		{Op: OpTurbo, Enabled: true, Speed: 300},
		{Op: OpTurbo},
	} {
		require.NoError(t, conn.WriteJSON(cmd))
		assert.Equal(t, EventAck, readEvent(t, conn).Type, "%+v", cmd)
	}
	assert.Equal(t, []string{"button a true", "button a false", "speed 300", "turbo true", "turbo false"}, ctrl.snapshot())

	require.NoError(t, conn.WriteJSON(Command{Op: OpButton, Button: "home", Pressed: true}))
	ev := readEvent(t, conn)
	assert.Equal(t, EventReject, ev.Type)
	assert.Contains(t, ev.Details, "unknown button")

	require.NoError(t, conn.WriteJSON(Command{Op: OpTurbo, Enabled: true, Speed: -1}))
	assert.Equal(t, EventReject, readEvent(t, conn).Type)
	assert.Len(t, ctrl.snapshot(), 5, "rejected turbo does not toggle")
}

func TestCommandRejected(t *testing.T) {
	hub := NewHub(&fakeController{})
	conn := dial(t, hub)

	require.NoError(t, conn.WriteJSON(Command{Op: OpSave, Slot: 0}))
	ev := readEvent(t, conn)
	assert.Equal(t, EventReject, ev.Type)
	assert.Equal(t, "bad slot", ev.Details)

	require.NoError(t, conn.WriteJSON(Command{Op: "rewind"}))
	ev = readEvent(t, conn)
	assert.Equal(t, EventReject, ev.Type)
	assert.Contains(t, ev.Details, "rewind")
}

func TestNoController(t *testing.T) {
	hub := NewHub(nil)
	conn := dial(t, hub)
	require.NoError(t, conn.WriteJSON(Command{Op: OpPause}))
	assert.Equal(t, EventReject, readEvent(t, conn).Type)

	hub.SetController(&fakeController{})
	require.NoError(t, conn.WriteJSON(Command{Op: OpPause}))
	assert.Equal(t, EventAck, readEvent(t, conn).Type)
}

func TestDisconnectUnregisters(t *testing.T) {
	hub := NewHub(&fakeController{})
	conn := dial(t, hub)
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 5*time.Second, time.Millisecond)
	hub.Publish(Event{Type: EventState})
}
