//go:build !statsview

package statsview

import (
	"context"
	"errors"
	"io"
)

// ErrUnavailable is returned by Launch in builds without the statsview tag.
var ErrUnavailable = errors.New("statsview not compiled in (build with -tags statsview)")

// Launch is unavailable in this build.
func Launch(context.Context, string, io.Writer) error { return ErrUnavailable }

// Available reports whether Launch does anything.
func Available() bool { return false }
