// Package console turns the terminal into a remote control for the running
// session: single keys pause, resume, stop, toggle turbo, and save or load
// a slot.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/moby/term"
	"github.com/projecteru2/core/log"
)

// Target is the session surface the keys drive.
type Target interface {
	Pause()
	Resume()
	Stop()
	IsPaused() bool
	RequestSave(slot int) error
	RequestLoad(slot int) error
	ToggleTurbo(enabled bool)
	TurboEnabled() bool
}

const defaultSlot = 1

func isControlKey(b byte) bool {
	switch b {
	case 'p', ' ', 'r', 'q', 's', 'l', 't', '?':
		return true
	}
	return b >= '0' && b <= '9'
}

// Controls maps key presses to Target calls.
type Controls struct {
	target Target
	out    io.Writer
	slot   int
}

// New returns Controls writing feedback to out.
func New(target Target, out io.Writer) *Controls {
	return &Controls{target: target, out: out, slot: defaultSlot}
}

// Slot returns the selected save slot.
func (c *Controls) Slot() int { return c.slot }

// Run reads keys from in until the detach key, q, EOF, or ctx is done. q
// stops the session; detaching leaves it running.
func (c *Controls) Run(ctx context.Context, in io.Reader, detach byte) error {
	r := term.NewEscapeProxy(in, []byte{detach})
	buf := make([]byte, 1)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := r.Read(buf)
		if n > 0 {
			if stop := c.handle(ctx, buf[0]); stop {
				return nil
			}
		}
		if err != nil {
			var esc term.EscapeError
			if errors.As(err, &esc) || isCleanExit(err) {
				return nil
			}
			return err
		}
	}
}

// handle runs one key and reports whether the session was stopped.
func (c *Controls) handle(ctx context.Context, b byte) bool {
	logger := log.WithFunc("console.handle")
	switch {
	case b == 'p' || b == ' ':
		if c.target.IsPaused() {
			c.target.Resume()
			c.printf("resumed")
		} else {
			c.target.Pause()
			c.printf("paused")
		}
	case b == 'r':
		c.target.Resume()
		c.printf("resumed")
	case b == 'q':
		c.target.Stop()
		c.printf("stopping")
		return true
	case b >= '0' && b <= '9':
		c.slot = int(b - '0')
		if c.slot == 0 {
			c.slot = 10
		}
		c.printf("slot %d selected", c.slot)
	case b == 's':
		if err := c.target.RequestSave(c.slot); err != nil {
			logger.Warnf(ctx, "save slot %d: %v", c.slot, err)
			c.printf("save failed: %v", err)
			break
		}
		c.printf("saving slot %d", c.slot)
	case b == 'l':
		if err := c.target.RequestLoad(c.slot); err != nil {
			logger.Warnf(ctx, "load slot %d: %v", c.slot, err)
			c.printf("load failed: %v", err)
			break
		}
		c.printf("loading slot %d", c.slot)
	case b == 't':
		on := !c.target.TurboEnabled()
		c.target.ToggleTurbo(on)
		if on {
			c.printf("turbo on")
		} else {
			c.printf("turbo off")
		}
	case b == '?':
		c.printf("keys: p/space pause, r resume, q stop, t turbo, 0-9 slot, s save, l load")
	}
	return false
}

func (c *Controls) printf(format string, args ...any) {
	if c.out == nil {
		return
	}
	_, _ = fmt.Fprintf(c.out, "\r"+format+"\r\n", args...)
}

// MakeRaw puts f into raw mode and returns the restore func. Non-terminals
// are left alone.
func MakeRaw(f *os.File) (func(), error) {
	fd, isTerm := term.GetFdInfo(f)
	if !isTerm {
		return func() {}, nil
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("set raw mode: %w", err)
	}
	return func() { _ = term.RestoreTerminal(fd, state) }, nil
}

// isCleanExit returns true for errors that indicate the input closed.
func isCleanExit(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, syscall.EIO)
}
