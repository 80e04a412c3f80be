// internal/engine/controller.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/bidrunner/api/schemas"
	"github.com/xkilldash9x/bidrunner/internal/calibration"
	"github.com/xkilldash9x/bidrunner/internal/config"
	"github.com/xkilldash9x/bidrunner/internal/humanoid"
)

// Dependencies are the collaborators a Controller drives. Stats is optional.
type Dependencies struct {
	Gestures   schemas.GestureDispatcher
	Text       schemas.TextInjector
	Capturer   schemas.ScreenCapturer
	Recognizer schemas.TextRecognizer
	Stats      schemas.StatsSink
}

// Options tune a Controller. Zero values select sensible defaults.
type Options struct {
	Profile       calibration.Profile
	Randomization config.RandomizationConfig
	Session       config.SessionConfig

	// Sleeper performs every wait of the session. Defaults to humanoid.ContextSleeper.
	Sleeper humanoid.Sleeper
	// Rand seeds the randomization engine of each session. Nil uses the clock.
	Rand *rand.Rand
	// OnError receives the error that ended a session abnormally.
	OnError func(error)
	// Clock stamps emitted states. Defaults to time.Now.
	Clock func() time.Time
}

// Controller runs at most one automation session at a time.
type Controller struct {
	deps    Dependencies
	logger  *zap.Logger
	sleeper humanoid.Sleeper
	rng     *rand.Rand
	onError func(error)
	clock   func() time.Time
	session config.SessionConfig

	// stateLock protects everything below.
	stateLock     sync.Mutex
	isRunning     bool
	profile       calibration.Profile
	randomization config.RandomizationConfig
	state         schemas.ControlState
	cancel        context.CancelFunc
	done          chan struct{}
	lastErr       error
	paused        bool
	resume        chan struct{}
	subscribers   map[int]func(schemas.ControlState)
	nextSubID     int
}

// New validates the dependencies and builds an idle Controller.
func New(deps Dependencies, opts Options, logger *zap.Logger) (*Controller, error) {
	if deps.Gestures == nil {
		return nil, errors.New("gesture dispatcher cannot be nil")
	}
	if deps.Text == nil {
		return nil, errors.New("text injector cannot be nil")
	}
	if deps.Capturer == nil {
		return nil, errors.New("screen capturer cannot be nil")
	}
	if deps.Recognizer == nil {
		return nil, errors.New("text recognizer cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if deps.Stats == nil {
		deps.Stats = nopStats{}
	}
	if err := opts.Profile.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Randomization.Validate(); err != nil {
		return nil, fmt.Errorf("invalid randomization: %w", err)
	}
	if opts.Sleeper == nil {
		opts.Sleeper = humanoid.ContextSleeper{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	done := make(chan struct{})
	close(done)

	c := &Controller{
		deps:          deps,
		logger:        logger.Named("engine"),
		sleeper:       opts.Sleeper,
		rng:           opts.Rand,
		onError:       opts.OnError,
		clock:         opts.Clock,
		session:       opts.Session,
		profile:       opts.Profile,
		randomization: opts.Randomization,
		done:          done,
		subscribers:   make(map[int]func(schemas.ControlState)),
	}
	c.state = schemas.ControlState{Phase: schemas.PhaseIdle, Mode: schemas.ModeIdle, At: c.clock()}
	return c, nil
}

// -- Lifecycle --

// Start begins a session in mode on its own goroutine. Idle mode is terminal and
// starts nothing. The profile and randomization are snapshotted here; session
// resources are acquired before Start returns.
func (c *Controller) Start(ctx context.Context, mode schemas.OperationMode) error {
	c.stateLock.Lock()
	if c.isRunning {
		c.stateLock.Unlock()
		c.logger.Warn("Start called while a session is running.", zap.String("mode", string(mode)))
		return ErrAlreadyRunning
	}
	if mode == schemas.ModeIdle {
		c.stateLock.Unlock()
		c.logger.Info("Idle mode requested; nothing to run.")
		return nil
	}
	if mode != schemas.ModeCreateSweep && mode != schemas.ModeEditUpdate {
		c.stateLock.Unlock()
		return fmt.Errorf("unsupported operation mode %q", mode)
	}

	resources := c.sessionResources()
	if err := acquireAll(ctx, resources); err != nil {
		c.stateLock.Unlock()
		return fmt.Errorf("failed to acquire session resources: %w", err)
	}

	sessCtx, cancel := context.WithCancel(ctx)
	sess := newSession(c, mode, c.profile, humanoid.New(c.randomization, c.sessionRand()))

	c.isRunning = true
	c.paused = false
	c.resume = nil
	c.cancel = cancel
	c.done = make(chan struct{})
	c.lastErr = nil
	done := c.done
	c.stateLock.Unlock()

	c.logger.Info("Automation session started.",
		zap.String("mode", string(mode)),
		zap.String("profile", sess.profile.Name))

	go c.run(sessCtx, sess, resources, done)
	return nil
}

// Stop cancels the running session at its next suspension point. It does not wait;
// use Wait or Done for that. Calling Stop when idle is a no-op.
func (c *Controller) Stop() {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	if !c.isRunning || c.cancel == nil {
		return
	}
	c.logger.Info("Stop requested.")
	c.cancel()
}

// Pause holds the session at the next phase boundary.
func (c *Controller) Pause() {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	if !c.isRunning || c.paused {
		return
	}
	c.paused = true
	c.resume = make(chan struct{})
	c.logger.Info("Session paused.")
}

// Resume releases a paused session. Row index and mode are unchanged.
func (c *Controller) Resume() {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	if !c.paused {
		return
	}
	c.paused = false
	close(c.resume)
	c.resume = nil
	c.logger.Info("Session resumed.")
}

// Done is closed when the current (or last) session has fully ended.
func (c *Controller) Done() <-chan struct{} {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	return c.done
}

// Wait blocks until the current session ends and returns the error that ended it,
// or nil for a normal stop.
func (c *Controller) Wait() error {
	<-c.Done()
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	return c.lastErr
}

// Running reports whether a session is active.
func (c *Controller) Running() bool {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	return c.isRunning
}

// Paused reports whether the session is held at a phase boundary.
func (c *Controller) Paused() bool {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	return c.paused
}

// State returns the last emitted state.
func (c *Controller) State() schemas.ControlState {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	return c.state
}

// Subscribe registers fn to receive every state transition synchronously, on the
// session goroutine. The returned function unregisters it.
func (c *Controller) Subscribe(fn func(schemas.ControlState)) (unsubscribe func()) {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = fn
	return func() {
		c.stateLock.Lock()
		defer c.stateLock.Unlock()
		delete(c.subscribers, id)
	}
}

// SetProfile replaces the calibration profile for the next session.
func (c *Controller) SetProfile(p calibration.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	if c.isRunning {
		return ErrSessionActive
	}
	c.profile = p
	return nil
}

// Profile returns the profile the next session will use.
func (c *Controller) Profile() calibration.Profile {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	return c.profile
}

// SetRandomization replaces the randomization profile for the next session.
func (c *Controller) SetRandomization(r config.RandomizationConfig) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid randomization: %w", err)
	}
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	if c.isRunning {
		return ErrSessionActive
	}
	c.randomization = r
	return nil
}

// -- Session goroutine --

func (c *Controller) run(ctx context.Context, sess *session, resources []schemas.SessionResource, done chan struct{}) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrSessionPanic, r)
		}
		releaseAll(resources, c.logger)
		c.finish(sess, err, done)
	}()
	err = sess.loop(ctx)
}

func (c *Controller) finish(sess *session, err error, done chan struct{}) {
	final := schemas.ControlState{
		Phase:          schemas.PhaseIdle,
		Mode:           sess.mode,
		RowIndex:       sess.rowIndex,
		LastCoordinate: sess.lastCoord,
	}
	if err != nil {
		final.ErrorMessage = err.Error()
		sess.stats.RecordFailure(schemas.KindSessionAborted)
		c.logger.Error("Automation session ended with a fatal error.", zap.Error(err), zap.Int("rows", sess.rowIndex))
	} else {
		c.logger.Info("Automation session stopped.", zap.Int("rows", sess.rowIndex))
	}

	// Final state and error go out before isRunning clears.
	c.emit(final)
	if err != nil && c.onError != nil {
		c.onError(err)
	}

	c.stateLock.Lock()
	c.cancel()
	c.isRunning = false
	c.cancel = nil
	c.lastErr = err
	if c.paused {
		c.paused = false
		close(c.resume)
		c.resume = nil
	}
	c.stateLock.Unlock()
	close(done)
}

// emit records state and notifies subscribers and the stats sink outside the lock.
func (c *Controller) emit(state schemas.ControlState) {
	state.At = c.clock()

	c.stateLock.Lock()
	c.state = state
	subs := make([]func(schemas.ControlState), 0, len(c.subscribers))
	for id := 0; id < c.nextSubID; id++ {
		if fn, ok := c.subscribers[id]; ok {
			subs = append(subs, fn)
		}
	}
	c.stateLock.Unlock()

	for _, fn := range subs {
		fn(state)
	}
	c.deps.Stats.UpdateState(string(state.Phase))
}

// checkpoint blocks while paused and reports cancellation. It is the only place a
// pause takes effect.
func (c *Controller) checkpoint(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.stateLock.Lock()
		resume := c.resume
		paused := c.paused
		c.stateLock.Unlock()
		if !paused {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-resume:
		}
	}
}

func (c *Controller) sessionRand() *rand.Rand {
	if c.rng == nil {
		return nil
	}
	return rand.New(rand.NewSource(c.rng.Int63()))
}

// -- Session resources --

// sessionResources lists the distinct collaborators that hold an exclusive handle.
func (c *Controller) sessionResources() []schemas.SessionResource {
	var out []schemas.SessionResource
	for _, dep := range []interface{}{c.deps.Gestures, c.deps.Text, c.deps.Capturer, c.deps.Recognizer} {
		res, ok := dep.(schemas.SessionResource)
		if !ok {
			continue
		}
		duplicate := false
		for _, seen := range out {
			if sameResource(seen, res) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			out = append(out, res)
		}
	}
	return out
}

func sameResource(a, b schemas.SessionResource) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	return ta == tb && ta.Comparable() && a == b
}

func acquireAll(ctx context.Context, resources []schemas.SessionResource) error {
	for i, r := range resources {
		if err := r.Acquire(ctx); err != nil {
			for _, held := range resources[:i] {
				_ = held.Release()
			}
			return err
		}
	}
	return nil
}

func releaseAll(resources []schemas.SessionResource, logger *zap.Logger) {
	for i := len(resources) - 1; i >= 0; i-- {
		if err := resources[i].Release(); err != nil {
			logger.Warn("Failed to release session resource.", zap.Error(err))
		}
	}
}

type nopStats struct{}

func (nopStats) RecordSuccess(string, int64) {}
func (nopStats) RecordFailure(string)        {}
func (nopStats) RecordCycle()                {}
func (nopStats) UpdateState(string)          {}
