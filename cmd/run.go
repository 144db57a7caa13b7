package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/projecteru2/core/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cocoonstack/emuhost/console"
	"github.com/cocoonstack/emuhost/driver"
	"github.com/cocoonstack/emuhost/engine/headless"
	"github.com/cocoonstack/emuhost/hoststream"
	"github.com/cocoonstack/emuhost/lock"
	"github.com/cocoonstack/emuhost/lock/flock"
	"github.com/cocoonstack/emuhost/savestate"
	"github.com/cocoonstack/emuhost/session"
	"github.com/cocoonstack/emuhost/statsview"
	"github.com/cocoonstack/emuhost/types"
	"github.com/cocoonstack/emuhost/utils"
	"github.com/cocoonstack/emuhost/window"
	whl "github.com/cocoonstack/emuhost/window/headless"
)

const (
	surfaceWidth  = 400
	surfaceHeight = 480
	perfInterval  = 5 * time.Second
	bootTimeout   = 2 * time.Minute
	bootPoll      = 50 * time.Millisecond
)

var runCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [flags] TITLE",
		Short: "Boot a title and run it until stopped",
		Args:  cobra.ExactArgs(1),
		RunE:  runRun,
	}
	cmd.Flags().Uint64("frames", 0, "stop after this many frames (0 runs until stopped)")
	cmd.Flags().Int("fps", headless.TargetFPS, "frame pacing rate")
	cmd.Flags().String("movie-id", "", "active input recording id (hex), scopes save slots")
	cmd.Flags().String("listen", "", "serve the host websocket on this address (e.g. 127.0.0.1:7711)")
	cmd.Flags().Bool("keys", true, "read key controls from stdin when it is a terminal")
	cmd.Flags().String("detach-char", "^]", "stop reading key controls on this key (single char or ^X caret notation)")
	cmd.Flags().Bool("continue-on-error", false, "keep running after recoverable engine errors")
	cmd.Flags().Int("turbo-speed", session.DefaultTurboSpeed, "speed limit in percent while turbo is on")
	cmd.Flags().Bool("turbo", false, "start with turbo on")
	cmd.Flags().String("statsview", "", "serve runtime stats on this address (statsview builds only)")
	return cmd
}()

func runRun(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	logger := log.WithFunc("cmd.run")

	frames, _ := cmd.Flags().GetUint64("frames")
	fps, _ := cmd.Flags().GetInt("fps")
	movieStr, _ := cmd.Flags().GetString("movie-id")
	listen, _ := cmd.Flags().GetString("listen")
	keys, _ := cmd.Flags().GetBool("keys")
	detachStr, _ := cmd.Flags().GetString("detach-char")
	continueOnError, _ := cmd.Flags().GetBool("continue-on-error")
	statsAddr, _ := cmd.Flags().GetString("statsview")
	turboSpeed, _ := cmd.Flags().GetInt("turbo-speed")
	turbo, _ := cmd.Flags().GetBool("turbo")

	if fps <= 0 {
		return fmt.Errorf("invalid --fps %d", fps)
	}
	movieID, err := parseHexID(movieStr)
	if err != nil {
		return err
	}
	detach, err := console.ParseEscapeChar(detachStr)
	if err != nil {
		return err
	}
	if err := conf.EnsureDirs(); err != nil {
		return err
	}
	path, _, err := resolveTitle(ctx, args[0])
	if err != nil {
		return err
	}

	eng := headless.New(
		headless.WithFrameInterval(time.Second/time.Duration(fps)),
		headless.WithFrameLimit(frames),
		headless.WithMovieID(movieID),
	)
	windows := window.NewRegistry()
	windows.Register(types.GraphicsSoftware, whl.Factory)

	drivers := driver.New()
	if h := drivers.Load(ctx, driver.RequestFromConfig(conf)); h != nil && h.Err != nil {
		logger.Warnf(ctx, "no usable graphics driver: %v", h.Err)
	}

	hub := hoststream.NewHub(nil)
	ctrl := session.New(store, eng, windows,
		session.WithDriverLoader(drivers),
		session.WithLocker(lock.Chain(lock.NewMutex(), flock.New(conf.SessionLock(), flock.NonBlocking()))),
		session.WithCallbacks(hub.Callbacks(session.Callbacks{
			OnCoreError: func(kind types.ErrorKind, details string) bool {
				logger.Warnf(ctx, "engine error %s: %s", kind, details)
				return continueOnError
			},
		})),
	)
	hub.SetController(ctrl)
	if err := ctrl.SetTurboSpeed(turboSpeed); err != nil {
		return fmt.Errorf("invalid --turbo-speed %d: %w", turboSpeed, err)
	}
	ctrl.ToggleTurbo(turbo)
	ctrl.OnSurfaceChanged(&window.Surface{Handle: 1, Width: surfaceWidth, Height: surfaceHeight})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	var status types.Status
	g.Go(func() error {
		defer cancel()
		status = ctrl.Start(ctx, path)
		return status.Err()
	})

	// SIGINT/SIGTERM or a failed helper stops the session cooperatively.
	g.Go(func() error {
		<-gctx.Done()
		ctrl.Stop()
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(time.Second / time.Duration(fps))
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				ctrl.PresentFrame()
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(perfInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				p := ctrl.GetPerfStats()
				logger.Infof(ctx, "fps %.1f, frame %.2fms, speed %.0f%%", p.GameFPS, p.FrameTimeMs, p.EmulationSpeed*100) //nolint:mnd
			}
		}
	})

	g.Go(func() error {
		return savestate.Watch(gctx, conf.SaveStateDir(), func(name string) {
			logger.Infof(ctx, "save state written: %s", name)
			hub.Publish(hoststream.Event{Type: hoststream.EventSaveState, Details: name})
		})
	})

	if listen != "" {
		srv := &http.Server{Addr: listen, Handler: hub, ReadHeaderTimeout: 5 * time.Second} //nolint:mnd
		g.Go(func() error {
			logger.Infof(ctx, "host stream listening on ws://%s", listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("host stream: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return srv.Close()
		})
		g.Go(func() error {
			hub.RunPerf(gctx, time.Second)
			return nil
		})
	}

	if statsAddr != "" {
		if err := statsview.Launch(gctx, statsAddr, os.Stderr); err != nil {
			logger.Warnf(ctx, "statsview: %v", err)
		}
	}

	if keys {
		restore, err := console.MakeRaw(os.Stdin)
		if err != nil {
			logger.Warnf(ctx, "key controls disabled: %v", err)
		} else {
			defer restore()
			// Not in the group: a blocked stdin read must not hold up exit.
			go func() {
				if err := utils.WaitFor(gctx, bootTimeout, bootPoll, func() (bool, error) {
					return ctrl.IsRunning(), gctx.Err()
				}); err != nil {
					logger.Warnf(ctx, "key controls not started: %v", err)
					return
				}
				fmt.Fprintf(os.Stderr, "keys: p pause, r resume, q stop, t turbo, 0-9 slot, s save, l load (%s detaches)\r\n", console.FormatEscapeChar(detach))
				if err := console.New(ctrl, os.Stderr).Run(gctx, os.Stdin, detach); err != nil {
					logger.Warnf(ctx, "key controls: %v", err)
				}
			}()
		}
	}

	err = g.Wait()
	logger.Infof(ctx, "session ended: %s", status)
	return err
}
