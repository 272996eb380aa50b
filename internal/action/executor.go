package action

import (
	"context"
	"errors"
	"fmt"
	"time"

	"logtrigger/internal/logger"
	"logtrigger/internal/rules"
	"logtrigger/pkg/logging"
	"logtrigger/pkg/models"
)

var ErrUnsupportedAction = errors.New("unsupported action type")

// StepRecorder counts per-step outcomes.
type StepRecorder interface {
	RecordStep(actionType string, ok bool)
}

type Option func(*Executor)

func WithRecorder(r StepRecorder) Option {
	return func(e *Executor) {
		e.recorder = r
	}
}

func WithSubject(subject string) Option {
	return func(e *Executor) {
		e.subject = subject
	}
}

// WithSleep replaces the inter-step pause, mainly for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) {
		e.sleep = sleep
	}
}

// Executor performs the steps of a firing against a Sink and a Notifier. It
// is not safe for concurrent use; the pipeline calls it from one goroutine.
type Executor struct {
	sink     Sink
	notifier Notifier
	recorder StepRecorder
	subject  string
	sleep    func(ctx context.Context, d time.Duration) error
	logger   logger.Logger
}

func NewExecutor(sink Sink, notifier Notifier, log logger.Logger, opts ...Option) *Executor {
	e := &Executor{
		sink:     sink,
		notifier: notifier,
		subject:  models.DefaultNotificationSubject,
		sleep:    sleepCtx,
		logger:   log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs steps in order and reports whether all of them succeeded. A
// failed step does not stop the remaining ones. A step's delay is observed
// after the step, before the next begins.
func (e *Executor) Execute(ctx context.Context, steps []rules.ActionStep) bool {
	allOK := true

	for i, step := range steps {
		if !step.Enabled {
			continue
		}

		stepCtx := logging.WithRule(ctx, step.RuleName)
		err := e.run(stepCtx, step)
		ok := err == nil
		if e.recorder != nil {
			e.recorder.RecordStep(step.Type.String(), ok)
		}

		if ok {
			e.logger.DebugwCtx(stepCtx, "Action step executed",
				"step", i,
				"type", step.Type.String(),
				"value", step.ResolvedValue,
			)
		} else {
			allOK = false
			e.logger.WarnwCtx(stepCtx, "Action step failed",
				"step", i,
				"type", step.Type.String(),
				"value", step.ResolvedValue,
				"error", err,
			)
		}

		if d := step.Delay(); d > 0 && i < len(steps)-1 {
			if err := e.sleep(ctx, d); err != nil {
				e.logger.WarnwCtx(stepCtx, "Action sequence interrupted", "error", err)
				e.failRemaining(steps[i+1:])
				return false
			}
		}
	}

	return allOK
}

func (e *Executor) failRemaining(steps []rules.ActionStep) {
	if e.recorder == nil {
		return
	}
	for _, s := range steps {
		if s.Enabled {
			e.recorder.RecordStep(s.Type.String(), false)
		}
	}
}

func (e *Executor) run(ctx context.Context, step rules.ActionStep) error {
	switch step.Type {
	case rules.ActionKeystroke:
		ks, err := ParseKeystroke(step.ResolvedValue, step.Modifiers)
		if err != nil {
			return err
		}
		return e.sink.SendKeys(ctx, ks.TmuxKeys()...)
	case rules.ActionText:
		return e.sink.SendText(ctx, step.ResolvedValue)
	case rules.ActionCommand:
		if err := e.sink.SendText(ctx, "/"+step.ResolvedValue); err != nil {
			return err
		}
		return e.sink.SendKeys(ctx, "Enter")
	case rules.ActionSms:
		body := step.ResolvedValue
		if body == "" {
			body = step.Line
		}
		return e.notifier.Notify(ctx, models.NewNotification(step.RuleName, e.subject, body, step.Line))
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedAction, step.Type)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
