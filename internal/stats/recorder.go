// internal/stats/recorder.go
package stats

import (
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/bidrunner/api/schemas"
)

// EventType distinguishes the StatsSink calls.
type EventType string

const (
	EventSuccess EventType = "success"
	EventFailure EventType = "failure"
	EventCycle   EventType = "cycle"
	EventState   EventType = "state"
)

const (
	defaultQueueSize = 256
	historyLimit     = 10000
)

// Event is one StatsSink call. Kind holds the phase name for state events.
type Event struct {
	At    time.Time
	Type  EventType
	Kind  string
	Price int64
}

// Snapshot is the aggregate view of a session's events.
type Snapshot struct {
	Successes map[string]int
	Failures  map[string]int
	Cycles    int
	// ConsecutiveFailures counts failed rows since the last successful outcome.
	ConsecutiveFailures int
	LastPrice           int64
	LastState           string
	Dropped             int64
	StartedAt           time.Time
	UpdatedAt           time.Time
}

// TotalSuccesses sums the success counters.
func (s Snapshot) TotalSuccesses() int {
	n := 0
	for _, v := range s.Successes {
		n += v
	}
	return n
}

// TotalFailures sums the failure counters.
func (s Snapshot) TotalFailures() int {
	n := 0
	for _, v := range s.Failures {
		n += v
	}
	return n
}

// Recorder is a schemas.StatsSink that never blocks its caller. Events are queued on a
// buffered channel and folded into a Snapshot by a single goroutine; when the queue
// is full the event is dropped and counted.
type Recorder struct {
	events chan Event
	logger *zap.Logger
	clock  func() time.Time

	dropped atomic.Int64

	mu      sync.Mutex
	snap    Snapshot
	history []Event

	stopSignal chan struct{}
	done       chan struct{}
	stopOnce   sync.Once
}

// NewRecorder starts a recorder with a queue of queueSize events.
func NewRecorder(queueSize int, logger *zap.Logger) *Recorder {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	r := &Recorder{
		events:     make(chan Event, queueSize),
		logger:     logger.Named("stats"),
		clock:      time.Now,
		stopSignal: make(chan struct{}),
		done:       make(chan struct{}),
	}
	r.snap = Snapshot{
		Successes: make(map[string]int),
		Failures:  make(map[string]int),
		StartedAt: r.clock(),
	}
	go r.run()
	return r
}

// -- StatsSink --

func (r *Recorder) RecordSuccess(kind string, price int64) {
	r.enqueue(Event{Type: EventSuccess, Kind: kind, Price: price})
}

func (r *Recorder) RecordFailure(kind string) {
	r.enqueue(Event{Type: EventFailure, Kind: kind})
}

func (r *Recorder) RecordCycle() {
	r.enqueue(Event{Type: EventCycle})
}

func (r *Recorder) UpdateState(name string) {
	r.enqueue(Event{Type: EventState, Kind: name})
}

func (r *Recorder) enqueue(e Event) {
	e.At = r.clock()
	select {
	case r.events <- e:
	default:
		if r.dropped.Add(1) == 1 {
			r.logger.Warn("Statistics queue full; dropping events.", zap.Int("queue_size", cap(r.events)))
		}
	}
}

// -- Processing loop --

func (r *Recorder) run() {
	defer close(r.done)
	for {
		select {
		case e := <-r.events:
			r.apply(e)
		case <-r.stopSignal:
			r.drainChannel()
			return
		}
	}
}

func (r *Recorder) drainChannel() {
	for {
		select {
		case e := <-r.events:
			r.apply(e)
		default:
			return
		}
	}
}

func (r *Recorder) apply(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &r.snap
	s.UpdatedAt = e.At
	switch e.Type {
	case EventSuccess:
		s.Successes[e.Kind]++
		s.ConsecutiveFailures = 0
		if e.Price > 0 {
			s.LastPrice = e.Price
		}
	case EventFailure:
		s.Failures[e.Kind]++
		if e.Kind == schemas.KindRowError {
			s.ConsecutiveFailures++
		}
	case EventCycle:
		s.Cycles++
	case EventState:
		s.LastState = e.Kind
		return
	}
	if len(r.history) < historyLimit {
		r.history = append(r.history, e)
	}
}

// -- Accessors --

// Snapshot returns a copy of the current aggregate.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.snap
	out.Successes = maps.Clone(r.snap.Successes)
	out.Failures = maps.Clone(r.snap.Failures)
	out.Dropped = r.dropped.Load()
	return out
}

// Events returns the recorded outcome and cycle events in arrival order. State
// transitions are not kept.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.history...)
}

// Close processes every queued event, stops the loop and returns the final snapshot.
// Events recorded after Close are dropped.
func (r *Recorder) Close() Snapshot {
	r.stopOnce.Do(func() { close(r.stopSignal) })
	<-r.done
	return r.Snapshot()
}

// LogSummary writes the snapshot as one structured log line.
func LogSummary(logger *zap.Logger, s Snapshot) {
	logger.Info("Session statistics.",
		zap.Any("successes", s.Successes),
		zap.Any("failures", s.Failures),
		zap.Int("cycles", s.Cycles),
		zap.Int("consecutive_failures", s.ConsecutiveFailures),
		zap.Int64("last_price", s.LastPrice),
		zap.Int64("dropped", s.Dropped),
		zap.Duration("elapsed", s.UpdatedAt.Sub(s.StartedAt)))
}
