package corerror

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cocoonstack/emuhost/types"
)

func TestKindOf(t *testing.T) {
	cases := map[types.Status]types.ErrorKind{
		types.StatusErrorSystemFiles:       types.ErrorKindSystemFiles,
		types.StatusErrorSavestate:         types.ErrorKindSavestate,
		types.StatusErrorArticDisconnected: types.ErrorKindRemoteDisconnected,
		types.StatusErrorUnknown:           types.ErrorKindUnknown,
		types.StatusErrorLoader:            types.ErrorKindUnknown,
		types.Status(999):                  types.ErrorKindUnknown,
	}
	for s, want := range cases {
		assert.Equal(t, want, KindOf(s), s.String())
	}
}

func TestEscalateAsksHost(t *testing.T) {
	var gotKind types.ErrorKind
	var gotDetails string
	calls := 0
	b := New(func(kind types.ErrorKind, details string) bool {
		calls++
		gotKind, gotDetails = kind, details
		return true
	})

	assert.True(t, b.Escalate(context.Background(), types.StatusErrorSavestate, "slot 3 corrupt"))
	assert.Equal(t, 1, calls)
	assert.Equal(t, types.ErrorKindSavestate, gotKind)
	assert.Equal(t, "slot 3 corrupt", gotDetails)
}

func TestEscalateWithoutHandlerAborts(t *testing.T) {
	assert.False(t, New(nil).Escalate(context.Background(), types.StatusErrorSystemFiles, ""))
	var b *Bridge
	assert.False(t, b.Escalate(context.Background(), types.StatusErrorSystemFiles, ""))
}
