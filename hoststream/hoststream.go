// Package hoststream exposes a running session to remote hosts over a
// websocket. Lifecycle, progress, error, perf and exit events go out;
// session controls, pad buttons and turbo commands come in.
package hoststream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/projecteru2/core/log"

	"github.com/cocoonstack/emuhost/input"
	"github.com/cocoonstack/emuhost/session"
	"github.com/cocoonstack/emuhost/types"
)

const (
	sendBuffer = 64
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = pongWait * 9 / 10 //nolint:mnd
)

// Event types.
const (
	EventState     = "state"
	EventProgress  = "progress"
	EventError     = "error"
	EventPerf      = "perf"
	EventExit      = "exit"
	EventSaveState = "savestate"
	EventAck       = "ack"
	EventReject    = "reject"
)

// Command ops.
const (
	OpPause  = "pause"
	OpResume = "resume"
	OpStop   = "stop"
	OpSave   = "save"
	OpLoad   = "load"
	OpButton = "button"
	OpTurbo  = "turbo"
)

// Event is one message to the host.
type Event struct {
	Type     string              `json:"type"`
	Session  string              `json:"session,omitempty"`
	State    string              `json:"state,omitempty"`
	Stage    string              `json:"stage,omitempty"`
	Progress int                 `json:"progress,omitempty"`
	Max      int                 `json:"max,omitempty"`
	Kind     types.ErrorKind     `json:"kind,omitempty"`
	Details  string              `json:"details,omitempty"`
	Status   string              `json:"status,omitempty"`
	Perf     *types.PerfSnapshot `json:"perf,omitempty"`
	Slot     int                 `json:"slot,omitempty"`
	Op       string              `json:"op,omitempty"`
	Time     time.Time           `json:"time"`
}

// Command is one message from the host.
type Command struct {
	Op   string `json:"op"`
	Slot int    `json:"slot,omitempty"`
	// Button and Pressed carry OpButton.
	Button  string `json:"button,omitempty"`
	Pressed bool   `json:"pressed,omitempty"`
	// Enabled and Speed carry OpTurbo. A zero Speed keeps the current one.
	Enabled bool `json:"enabled,omitempty"`
	Speed   int  `json:"speed,omitempty"`
}

// Controller is the part of the session controller commands reach.
type Controller interface {
	Pause()
	Resume()
	Stop()
	RequestSave(slot int) error
	RequestLoad(slot int) error
	SetButton(b input.Button, pressed bool) error
	ToggleTurbo(enabled bool)
	SetTurboSpeed(percent int) error
	GetPerfStats() types.PerfSnapshot
	SessionID() string
}

var _ Controller = (*session.Controller)(nil)

type client struct {
	conn *websocket.Conn
	send chan Event
}

// Hub fans events out to every connected host.
type Hub struct {
	ctrl     Controller
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub returns a Hub driving ctrl. Wire it into the controller with
// Callbacks before the first Start.
func NewHub(ctrl Controller) *Hub {
	return &Hub{
		ctrl: ctrl,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// SetController binds the controller after construction. Hub callbacks must
// exist before the controller does, so hosts build the Hub first.
func (h *Hub) SetController(ctrl Controller) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ctrl = ctrl
}

func (h *Hub) controller() Controller {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ctrl
}

// Clients returns the number of connected hosts.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish sends ev to every host. Hosts that fall behind lose events.
func (h *Hub) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	if ctrl := h.controller(); ctrl != nil && ev.Session == "" {
		ev.Session = ctrl.SessionID()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
		}
	}
}

// Callbacks wraps next so every notification is also published. Error
// decisions stay with next.
func (h *Hub) Callbacks(next session.Callbacks) session.Callbacks {
	return session.Callbacks{
		OnDiskCacheProgress: func(stage types.LoadStage, progress, total int) {
			h.Publish(Event{Type: EventProgress, Stage: stage.String(), Progress: progress, Max: total})
			if next.OnDiskCacheProgress != nil {
				next.OnDiskCacheProgress(stage, progress, total)
			}
		},
		OnCoreError: func(kind types.ErrorKind, details string) bool {
			h.Publish(Event{Type: EventError, Kind: kind, Details: details})
			if next.OnCoreError != nil {
				return next.OnCoreError(kind, details)
			}
			return false
		},
		OnExit: func(status types.Status) {
			h.Publish(Event{Type: EventExit, Status: status.String()})
			if next.OnExit != nil {
				next.OnExit(status)
			}
		},
		OnStateChange: func(state types.SessionState) {
			h.Publish(Event{Type: EventState, State: state.String()})
			if next.OnStateChange != nil {
				next.OnStateChange(state)
			}
		},
	}
}

// RunPerf publishes a perf event every interval until ctx is done.
func (h *Hub) RunPerf(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ctrl := h.controller()
			if ctrl == nil || h.Clients() == 0 {
				continue
			}
			perf := ctrl.GetPerfStats()
			h.Publish(Event{Type: EventPerf, Perf: &perf})
		}
	}
}

// ServeHTTP upgrades one host connection and serves it until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.WithFunc("hoststream.ServeHTTP")
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf(ctx, "upgrade %s: %v", r.RemoteAddr, err)
		return
	}
	c := &client{conn: conn, send: make(chan Event, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	logger.Infof(ctx, "host connected: %s", r.RemoteAddr)

	go h.writePump(ctx, c)
	h.readPump(ctx, c)

	h.mu.Lock()
	delete(h.clients, c)
	close(c.send)
	h.mu.Unlock()
	logger.Infof(ctx, "host disconnected: %s", r.RemoteAddr)
}

func (h *Hub) readPump(ctx context.Context, c *client) {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var cmd Command
		if err := c.conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithFunc("hoststream.readPump").Warnf(ctx, "read: %v", err)
			}
			return
		}
		reply := h.handle(cmd)
		select {
		case c.send <- reply:
		default:
		}
	}
}

func (h *Hub) writePump(ctx context.Context, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close() //nolint:errcheck,gosec
	}()
	for {
		select {
		case ev, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				log.WithFunc("hoststream.writePump").Warnf(ctx, "marshal %s: %v", ev.Type, err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handle runs one command and returns the reply.
func (h *Hub) handle(cmd Command) Event {
	ctrl := h.controller()
	if ctrl == nil {
		return Event{Type: EventReject, Op: cmd.Op, Details: "no controller", Time: time.Now()}
	}
	var err error
	switch cmd.Op {
	case OpPause:
		ctrl.Pause()
	case OpResume:
		ctrl.Resume()
	case OpStop:
		ctrl.Stop()
	case OpSave:
		err = ctrl.RequestSave(cmd.Slot)
	case OpLoad:
		err = ctrl.RequestLoad(cmd.Slot)
	case OpButton:
		var b input.Button
		if b, err = input.ParseButton(cmd.Button); err == nil {
			err = ctrl.SetButton(b, cmd.Pressed)
		}
	case OpTurbo:
		if cmd.Speed != 0 {
			err = ctrl.SetTurboSpeed(cmd.Speed)
		}
		if err == nil {
			ctrl.ToggleTurbo(cmd.Enabled)
		}
	default:
		err = fmt.Errorf("unknown op %q", cmd.Op)
	}
	if err != nil {
		return Event{Type: EventReject, Op: cmd.Op, Slot: cmd.Slot, Details: err.Error(), Time: time.Now()}
	}
	return Event{Type: EventAck, Op: cmd.Op, Slot: cmd.Slot, Time: time.Now()}
}
