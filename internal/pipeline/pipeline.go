package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"logtrigger/internal/logger"
	"logtrigger/internal/queue"
	"logtrigger/internal/rules"
	apperrors "logtrigger/pkg/errors"
	"logtrigger/pkg/health"
	"logtrigger/pkg/tracing"
)

type State int32

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type Evaluator interface {
	Evaluate(line string) []rules.Firing
}

type Gate interface {
	ShouldFire(rule string, cooldown time.Duration) bool
}

// Executor performs the side effects of one firing. The pipeline calls it
// from a single goroutine only.
type Executor interface {
	Execute(ctx context.Context, steps []rules.ActionStep) bool
}

type Config struct {
	// Parallel spreads matching over Workers goroutines while keeping
	// execution in arrival order.
	Parallel bool
	// Workers defaults to runtime.NumCPU() when not positive.
	Workers int
	// StallThreshold is how long one executor call may run before the
	// pipeline reports itself degraded. Zero disables stall detection.
	StallThreshold time.Duration
}

type Option func(*Pipeline)

func WithStats(stats *Stats) Option {
	return func(p *Pipeline) {
		p.stats = stats
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

type matchResult struct {
	seq     uint64
	firings []rules.Firing
}

// Pipeline moves lines from the ingestion queue through rule evaluation to
// the executor, preserving arrival order of execution in both modes.
type Pipeline struct {
	cfg    Config
	input  *queue.Queue[LogLine]
	engine Evaluator
	gate   Gate
	exec   Executor
	stats  *Stats
	logger logger.Logger
	now    func() time.Time
	tracer trace.Tracer

	state        atomic.Int32
	seq          SequenceCounter
	nextExpected atomic.Uint64
	tasks        *queue.Queue[LogLine]
	results      *queue.Queue[matchResult]
	reorder      *ReorderBuffer

	abort       atomic.Bool
	execStarted atomic.Int64
	execRule    atomic.Pointer[string]

	cancelMu sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
	doneOnce sync.Once
}

func New(input *queue.Queue[LogLine], engine Evaluator, gate Gate, exec Executor, cfg Config, log logger.Logger, opts ...Option) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}

	p := &Pipeline{
		cfg:     cfg,
		input:   input,
		engine:  engine,
		gate:    gate,
		exec:    exec,
		stats:   NewStats(),
		logger:  log,
		now:     time.Now,
		tracer:  tracing.GetTracer("logtrigger-pipeline"),
		tasks:   queue.New[LogLine](),
		results: queue.New[matchResult](),
		reorder: NewReorderBuffer(),
		cancel:  func() {},
		done:    make(chan struct{}),
	}
	p.nextExpected.Store(1)

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Start launches the pipeline goroutines. Cancelling ctx begins a graceful
// drain, the same as Stop without waiting.
func (p *Pipeline) Start(ctx context.Context) error {
	if !p.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return apperrors.ErrInvalidState.WithDetail("state", p.State().String())
	}

	// Draining still executes queued firings after ctx is cancelled, so the
	// executor context is only cancelled by a forced shutdown.
	execCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancelMu.Lock()
	p.cancel = cancel
	p.cancelMu.Unlock()

	var wg sync.WaitGroup
	if p.cfg.Parallel {
		p.startParallel(execCtx, &wg)
	} else {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.runSequential(execCtx)
		}()
	}

	go func() {
		wg.Wait()
		p.state.Store(int32(StateStopped))
		cancel()
		p.closeDone()
		p.logger.Infow("Pipeline stopped", "stats", p.stats.Snapshot())
	}()

	go func() {
		select {
		case <-ctx.Done():
			p.requestStop()
		case <-p.done:
		}
	}()

	go p.watchStall()

	p.logger.Infow("Pipeline started",
		"parallel", p.cfg.Parallel,
		"workers", p.workerCount(),
		"stall_threshold", p.cfg.StallThreshold.String(),
	)
	return nil
}

func (p *Pipeline) startParallel(ctx context.Context, wg *sync.WaitGroup) {
	var workers sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.runSequencer()
	}()

	for i := 0; i < p.cfg.Workers; i++ {
		workers.Add(1)
		go func(id int) {
			defer workers.Done()
			p.runWorker(id)
		}(i)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		workers.Wait()
		p.results.Stop()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.runDispatcher(ctx)
	}()
}

// Stop requests a graceful drain and waits until every goroutine has exited.
// It is safe to call more than once and before Start.
func (p *Pipeline) Stop() {
	if p.state.CompareAndSwap(int32(StateIdle), int32(StateStopped)) {
		p.closeDone()
		return
	}
	p.requestStop()
	<-p.done
}

// Shutdown drains like Stop until ctx expires. On expiry the pipeline
// discards queued lines and buffered results, cancels the executor context
// and returns ctx.Err() without waiting for a hung executor call.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	if p.state.CompareAndSwap(int32(StateIdle), int32(StateStopped)) {
		p.closeDone()
		return nil
	}
	p.requestStop()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
	}

	p.forceAbort()
	return ctx.Err()
}

func (p *Pipeline) requestStop() {
	p.stopOnce.Do(func() {
		p.state.CompareAndSwap(int32(StateRunning), int32(StateDraining))
		p.input.Stop()
		p.logger.Infow("Pipeline draining", "pending_lines", p.input.Len()+p.tasks.Len())
	})
}

func (p *Pipeline) forceAbort() {
	if !p.abort.CompareAndSwap(false, true) {
		return
	}

	dropped := p.input.Clear() + p.tasks.Clear()
	for i := 0; i < dropped; i++ {
		p.stats.lineDropped()
	}
	p.cancelMu.Lock()
	p.cancel()
	p.cancelMu.Unlock()

	p.logger.Warnw("Forced shutdown, discarding pending work",
		"dropped_lines", dropped,
		"reorder_pending", p.reorder.Len(),
	)
}

func (p *Pipeline) closeDone() {
	p.doneOnce.Do(func() {
		close(p.done)
	})
}

// Done is closed once the pipeline has fully stopped.
func (p *Pipeline) Done() <-chan struct{} {
	return p.done
}

func (p *Pipeline) State() State {
	return State(p.state.Load())
}

func (p *Pipeline) Stats() *Stats {
	return p.stats
}

func (p *Pipeline) workerCount() int {
	if !p.cfg.Parallel {
		return 1
	}
	return p.cfg.Workers
}

type Progress struct {
	State          string `json:"state"`
	Parallel       bool   `json:"parallel"`
	Workers        int    `json:"workers"`
	LastSequence   uint64 `json:"last_sequence"`
	NextExpected   uint64 `json:"next_expected"`
	QueueDepth     int    `json:"queue_depth"`
	MatchQueue     int    `json:"match_queue_depth"`
	ReorderPending int    `json:"reorder_pending"`
	Stalled        bool   `json:"stalled"`
	StalledFor     string `json:"stalled_for,omitempty"`
}

func (p *Pipeline) Progress() Progress {
	stalled, d := p.Stalled()
	pr := Progress{
		State:          p.State().String(),
		Parallel:       p.cfg.Parallel,
		Workers:        p.workerCount(),
		LastSequence:   p.seq.Last(),
		NextExpected:   p.nextExpected.Load(),
		QueueDepth:     p.input.Len(),
		MatchQueue:     p.tasks.Len(),
		ReorderPending: p.reorder.Len(),
		Stalled:        stalled,
	}
	if stalled {
		pr.StalledFor = d.String()
	}
	return pr
}

// Stalled reports whether the current executor call has been running longer
// than the stall threshold, and for how long it has been running.
func (p *Pipeline) Stalled() (bool, time.Duration) {
	started := p.execStarted.Load()
	if started == 0 || p.cfg.StallThreshold <= 0 {
		return false, 0
	}
	d := p.now().Sub(time.Unix(0, started))
	return d >= p.cfg.StallThreshold, d
}

func (p *Pipeline) Name() string {
	return "pipeline"
}

// Check implements health.Checker.
func (p *Pipeline) Check(ctx context.Context) error {
	switch p.State() {
	case StateIdle:
		return health.Degraded(errors.New("pipeline not started"))
	case StateDraining:
		return health.Degraded(errors.New("pipeline draining"))
	case StateStopped:
		return errors.New("pipeline stopped")
	}

	if stalled, d := p.Stalled(); stalled {
		rule := ""
		if r := p.execRule.Load(); r != nil {
			rule = *r
		}
		return health.Degraded(fmt.Errorf("executor busy for %s on rule %q, ordered dispatch is blocked", d.Round(time.Millisecond), rule))
	}
	return nil
}
