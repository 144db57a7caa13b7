// Package corerror escalates run-time engine failures to the host. The host
// decision is authoritative: the bridge never retries.
package corerror

import (
	"context"

	"github.com/projecteru2/core/log"

	"github.com/cocoonstack/emuhost/types"
)

// DecideFunc answers whether emulation should continue after a failure.
type DecideFunc func(kind types.ErrorKind, details string) bool

// Bridge maps result codes to error kinds and asks the host.
type Bridge struct {
	decide DecideFunc
}

// New returns a Bridge. A nil decide aborts on every failure.
func New(decide DecideFunc) *Bridge {
	return &Bridge{decide: decide}
}

// KindOf maps a result code to the host taxonomy. Unmapped codes are Unknown.
func KindOf(s types.Status) types.ErrorKind {
	switch s {
	case types.StatusErrorSystemFiles:
		return types.ErrorKindSystemFiles
	case types.StatusErrorSavestate:
		return types.ErrorKindSavestate
	case types.StatusErrorArticDisconnected:
		return types.ErrorKindRemoteDisconnected
	default:
		return types.ErrorKindUnknown
	}
}

// Escalate reports one failure and returns true to continue.
func (b *Bridge) Escalate(ctx context.Context, s types.Status, details string) bool {
	kind := KindOf(s)
	logger := log.WithFunc("corerror.Escalate")
	if b == nil || b.decide == nil {
		logger.Warnf(ctx, "%s (%s): %s, no handler, aborting", kind, s, details)
		return false
	}
	cont := b.decide(kind, details)
	if cont {
		logger.Warnf(ctx, "%s (%s): %s, host continues", kind, s, details)
	} else {
		logger.Warnf(ctx, "%s (%s): %s, host aborts", kind, s, details)
	}
	return cont
}
