package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"logtrigger/internal/rules"
	apperrors "logtrigger/pkg/errors"
	"logtrigger/pkg/logging"
	"logtrigger/pkg/metrics"
)

func (p *Pipeline) runSequential(ctx context.Context) {
	for {
		line, ok := p.input.WaitAndPop()
		if !ok {
			p.state.CompareAndSwap(int32(StateRunning), int32(StateDraining))
			return
		}
		line.Sequence = p.seq.Next()

		if p.abort.Load() {
			p.stats.lineDropped()
			continue
		}

		firings := p.evaluate(line)
		p.dispatch(ctx, line.Sequence, firings)
		p.nextExpected.Store(line.Sequence + 1)
	}
}

// runSequencer numbers lines in arrival order and hands them to the workers.
func (p *Pipeline) runSequencer() {
	defer p.tasks.Stop()

	for {
		line, ok := p.input.WaitAndPop()
		if !ok {
			// the source may stop the input queue before Stop is called
			p.state.CompareAndSwap(int32(StateRunning), int32(StateDraining))
			return
		}
		line.Sequence = p.seq.Next()
		p.tasks.Push(line)
		metrics.SetQueueDepth("match", p.tasks.Len())
	}
}

// runWorker evaluates lines in whatever order they are picked up. Every line
// yields exactly one result, possibly empty, so the dispatcher never waits on
// a missing sequence number.
func (p *Pipeline) runWorker(id int) {
	for {
		line, ok := p.tasks.WaitAndPop()
		if !ok {
			return
		}

		var firings []rules.Firing
		if !p.abort.Load() {
			firings = p.evaluate(line)
		}
		p.results.Push(matchResult{seq: line.Sequence, firings: firings})
	}
}

// runDispatcher restores arrival order. It is the only goroutine that gates
// cooldowns and calls the executor.
func (p *Pipeline) runDispatcher(ctx context.Context) {
	next := uint64(1)

	for {
		res, ok := p.results.WaitAndPop()
		if !ok {
			break
		}

		if p.abort.Load() {
			p.drop(res.firings)
			continue
		}

		switch {
		case res.seq > next:
			p.reorder.Put(res.seq, res.firings)
			metrics.SetReorderBufferPending(p.reorder.Len())
			continue
		case res.seq < next:
			p.logger.Errorw("Discarding result for already dispatched sequence",
				"line_seq", res.seq,
				"next_expected", next,
			)
			continue
		}

		p.dispatch(ctx, res.seq, res.firings)
		next++

		for {
			firings, ok := p.reorder.Take(next)
			if !ok {
				break
			}
			p.dispatch(ctx, next, firings)
			next++
		}

		p.nextExpected.Store(next)
		metrics.SetReorderBufferPending(p.reorder.Len())
	}

	if n := p.reorder.Drop(); n > 0 {
		for i := 0; i < n; i++ {
			p.stats.lineDropped()
		}
		p.logger.Warnw("Dropped buffered results at shutdown",
			"dropped", n,
			"next_expected", next,
		)
	}
	metrics.SetReorderBufferPending(0)
}

func (p *Pipeline) evaluate(line LogLine) []rules.Firing {
	start := time.Now()

	var firings []rules.Firing
	if err := apperrors.Guard(func() {
		firings = p.engine.Evaluate(line.Text)
	}); err != nil {
		p.stats.workerPanic()
		p.logger.Errorw("Rule evaluation panicked, treating line as unmatched",
			"line_seq", line.Sequence,
			"error", err,
		)
		firings = nil
	}

	metrics.ObserveEvaluateDuration(time.Since(start))
	return firings
}

// dispatch gates and executes the firings of one line in evaluation order.
func (p *Pipeline) dispatch(ctx context.Context, seq uint64, firings []rules.Firing) {
	ctx = logging.WithLineSeq(ctx, seq)
	p.stats.matchedFirings(len(firings))

	for _, f := range firings {
		if p.abort.Load() {
			p.stats.firing(f.RuleName, outcomeDropped)
			continue
		}

		if !p.gate.ShouldFire(f.RuleName, f.Cooldown) {
			p.stats.firing(f.RuleName, outcomeSuppressed)
			p.logger.DebugwCtx(ctx, "Firing suppressed by cooldown",
				"rule", f.RuleName,
				"cooldown_ms", f.Cooldown.Milliseconds(),
			)
			continue
		}

		if p.execute(ctx, seq, f) {
			p.stats.firing(f.RuleName, outcomeExecuted)
			continue
		}
		p.stats.firing(f.RuleName, outcomeFailed)
		p.logger.WarnwCtx(ctx, "Action sequence completed with failures",
			"rule", f.RuleName,
			"steps", len(f.Steps),
		)
	}

	p.stats.lineProcessed()
}

func (p *Pipeline) drop(firings []rules.Firing) {
	p.stats.lineDropped()
	for _, f := range firings {
		p.stats.firing(f.RuleName, outcomeDropped)
	}
}

func (p *Pipeline) execute(ctx context.Context, seq uint64, f rules.Firing) (ok bool) {
	ctx, span := p.tracer.Start(ctx, "pipeline.execute", trace.WithAttributes(
		attribute.String("rule", f.RuleName),
		attribute.Int64("line_seq", int64(seq)),
		attribute.Int("steps", len(f.Steps)),
	))
	defer span.End()

	if sc := span.SpanContext(); sc.HasTraceID() {
		ctx = logging.WithTraceID(ctx, sc.TraceID().String())
	}

	start := p.now()
	rule := f.RuleName
	p.execRule.Store(&rule)
	p.execStarted.Store(start.UnixNano())
	defer p.execStarted.Store(0)

	if err := apperrors.Guard(func() {
		ok = p.exec.Execute(ctx, f.Steps)
	}); err != nil {
		ok = false
		span.RecordError(err)
		p.logger.ErrorwCtx(ctx, "Action executor panicked", "rule", f.RuleName, "error", err)
	}

	status := "success"
	if !ok {
		status = "failure"
		span.SetStatus(codes.Error, "action sequence failed")
	}
	metrics.ObserveExecuteDuration(p.now().Sub(start), status)

	return ok
}

func (p *Pipeline) watchStall() {
	if p.cfg.StallThreshold <= 0 {
		return
	}

	interval := p.cfg.StallThreshold / 2
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	reported := false
	for {
		select {
		case <-p.done:
			metrics.SetDispatchStalled(false)
			return
		case <-ticker.C:
			stalled, d := p.Stalled()
			metrics.SetDispatchStalled(stalled)

			switch {
			case stalled && !reported:
				rule := ""
				if r := p.execRule.Load(); r != nil {
					rule = *r
				}
				p.logger.Warnw("Action executor is blocking ordered dispatch",
					"rule", rule,
					"elapsed", d.String(),
					"queue_depth", p.input.Len(),
					"reorder_pending", p.reorder.Len(),
				)
				reported = true
			case !stalled && reported:
				p.logger.Infow("Action executor resumed")
				reported = false
			}
		}
	}
}
