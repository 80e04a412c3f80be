// File: cmd/run.go
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/bidrunner/api/schemas"
	"github.com/xkilldash9x/bidrunner/internal/calibration"
	"github.com/xkilldash9x/bidrunner/internal/config"
	"github.com/xkilldash9x/bidrunner/internal/engine"
	"github.com/xkilldash9x/bidrunner/internal/observability"
	"github.com/xkilldash9x/bidrunner/internal/stats"
	"github.com/xkilldash9x/bidrunner/internal/store"
)

const historySaveTimeout = 10 * time.Second

const controlHelp = "commands: p=pause r=resume s=stop"

// newRunCmd creates the `run` command.
func newRunCmd(factory ComponentFactory) *cobra.Command {
	var (
		modeName    string
		interactive bool
	)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run an automation session until the list ends or it is stopped",
		Long: `Run taps through the buy-order rows of the current screen in the selected mode:

  create   outbid the top buy order of every row (create sweep)
  edit     raise your existing orders to the market price (edit update)

While the session runs, type p, r or s followed by Enter to pause, resume or stop it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if err := applyRunFlagOverrides(cmd, cfg); err != nil {
				return err
			}

			mode, err := schemas.ParseOperationMode(modeName)
			if err != nil {
				return err
			}
			if mode == schemas.ModeIdle {
				return errors.New("--mode must select create or edit")
			}

			var in io.Reader
			if interactive {
				in = cmd.InOrStdin()
			}
			return runSession(ctx, cfg, factory, mode, in, cmd.OutOrStdout(), logger)
		},
	}

	runCmd.Flags().StringVarP(&modeName, "mode", "m", "create", "Operation mode: create or edit.")
	runCmd.Flags().BoolVar(&interactive, "interactive", true, "Read pause/resume/stop commands from stdin.")
	runCmd.Flags().String("profile", "", "Calibration profile path. (Overrides config/env)")
	runCmd.Flags().Int("max-rows", 0, "Stop after this many rows. (Overrides config/env)")
	runCmd.Flags().Bool("dry-run", false, "Log gestures instead of sending them.")
	return runCmd
}

// applyRunFlagOverrides copies explicitly set flags over the loaded config.
func applyRunFlagOverrides(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("profile") {
		cfg.Calibration.ProfilePath, _ = flags.GetString("profile")
	}
	if flags.Changed("max-rows") {
		cfg.Session.MaxRows, _ = flags.GetInt("max-rows")
	}
	if dry, _ := flags.GetBool("dry-run"); dry {
		cfg.Device.Kind = config.DeviceDryRun
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flag overrides: %w", err)
	}
	return nil
}

// runSession drives one controller session to completion and records its history.
func runSession(ctx context.Context, cfg *config.Config, factory ComponentFactory, mode schemas.OperationMode, in io.Reader, out io.Writer, logger *zap.Logger) error {
	out = &lockedWriter{w: out}
	profile := calibration.Load(cfg.Calibration.ProfilePath, logger)

	components, err := factory.NewSession(ctx, cfg, profile, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize session components: %w", err)
	}
	defer components.Shutdown()

	recorder := stats.NewRecorder(cfg.Stats.QueueSize, logger)
	defer recorder.Close()

	controller, err := engine.New(engine.Dependencies{
		Gestures:   components.Gestures,
		Text:       components.Text,
		Capturer:   components.Capturer,
		Recognizer: components.Recognizer,
		Stats:      recorder,
	}, engine.Options{
		Profile:       profile,
		Randomization: cfg.Randomization,
		Session:       cfg.Session,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create controller: %w", err)
	}

	unsubscribe := controller.Subscribe(func(s schemas.ControlState) { printState(out, s) })
	defer unsubscribe()

	if err := controller.Start(ctx, mode); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	logger.Info("Session started.", zap.String("mode", string(mode)), zap.String("profile", profile.Name))

	g, gctx := errgroup.WithContext(ctx)
	controlCtx, stopControl := context.WithCancel(gctx)
	defer stopControl()
	g.Go(func() error {
		defer stopControl()
		select {
		case <-controller.Done():
		case <-gctx.Done():
			controller.Stop()
			<-controller.Done()
		}
		return nil
	})
	if in != nil {
		fmt.Fprintln(out, controlHelp)
		g.Go(func() error { return controlLoop(controlCtx, controller, in, out) })
	}
	if err := g.Wait(); err != nil {
		logger.Warn("Control channel failed; session stopped.", zap.Error(err))
	}

	sessionErr := controller.Wait()
	snapshot := recorder.Close()
	stats.LogSummary(logger, snapshot)
	fmt.Fprintf(out, "rows: %d  successes: %d  failures: %d\n",
		snapshot.Cycles, snapshot.TotalSuccesses(), snapshot.Failures[schemas.KindRowError])

	if components.History != nil {
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historySaveTimeout)
		defer cancel()
		rec := store.NewSessionRecord(mode, snapshot, sessionErr)
		if err := components.History.SaveSession(saveCtx, rec, recorder.Events()); err != nil {
			logger.Error("Failed to save session history", zap.Error(err))
		} else {
			fmt.Fprintf(out, "session id: %s\n", rec.ID)
		}
	}

	if sessionErr != nil {
		return fmt.Errorf("session failed: %w", sessionErr)
	}
	if ctx.Err() != nil {
		logger.Info("Session stopped by signal.")
	}
	return nil
}

// controlLoop maps stdin lines onto controller calls until ctx ends or input closes.
func controlLoop(ctx context.Context, controller *engine.Controller, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	// The reader may stay blocked on a terminal after the session ends; it exits
	// with the process.
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					if err != nil {
						return fmt.Errorf("failed to read control input: %w", err)
					}
				default:
				}
				return nil
			}
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "":
			case "p", "pause":
				controller.Pause()
				fmt.Fprintln(out, "paused")
			case "r", "resume":
				controller.Resume()
				fmt.Fprintln(out, "resumed")
			case "s", "stop", "q", "quit":
				controller.Stop()
			case "h", "help", "?":
				fmt.Fprintln(out, controlHelp)
			default:
				fmt.Fprintf(out, "unknown command %q; %s\n", line, controlHelp)
			}
		}
	}
}

func printState(out io.Writer, s schemas.ControlState) {
	line := fmt.Sprintf("%s row=%d phase=%s", s.At.Format("15:04:05.000"), s.RowIndex, s.Phase)
	if s.ErrorMessage != "" {
		line += " error=" + s.ErrorMessage
	}
	fmt.Fprintln(out, line)
}

// lockedWriter serializes writes from the controller goroutine and the control loop.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
