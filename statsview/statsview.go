//go:build statsview

package statsview

import (
	"context"
	"fmt"
	"io"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
)

// Launch starts the stats server on addr until ctx is done.
func Launch(ctx context.Context, addr string, out io.Writer) error {
	viewer.SetConfiguration(viewer.WithAddr(addr))
	mgr := statsview.New()
	go mgr.Start()
	go func() {
		<-ctx.Done()
		mgr.Stop()
	}()
	_, _ = fmt.Fprintf(out, "stats server available at http://%s/debug/statsview\n", addr)
	return nil
}

// Available reports whether Launch does anything.
func Available() bool { return true }
