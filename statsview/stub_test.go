//go:build !statsview

package statsview

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStubUnavailable(t *testing.T) {
	assert.False(t, Available())
	assert.ErrorIs(t, Launch(context.Background(), "localhost:0", io.Discard), ErrUnavailable)
}
