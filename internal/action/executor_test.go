package action

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logtrigger/internal/logger"
	"logtrigger/internal/rules"
	"logtrigger/pkg/models"
)

// recordingSink records sends as "keys:<k1 k2>" or "text:<t>".
type recordingSink struct {
	sent    []string
	failOn  string
	failErr error
}

func (s *recordingSink) SendKeys(ctx context.Context, keys ...string) error {
	entry := fmt.Sprintf("keys:%v", keys)
	s.sent = append(s.sent, entry)
	if s.failOn != "" && s.failOn == entry {
		return s.failErr
	}
	return nil
}

func (s *recordingSink) SendText(ctx context.Context, text string) error {
	entry := "text:" + text
	s.sent = append(s.sent, entry)
	if s.failOn != "" && s.failOn == entry {
		return s.failErr
	}
	return nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
	err  error
}

func (n *recordingNotifier) Notify(ctx context.Context, notification models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return n.err
}

type stepCounter struct {
	ok, failed map[string]int
}

func newStepCounter() *stepCounter {
	return &stepCounter{ok: map[string]int{}, failed: map[string]int{}}
}

func (c *stepCounter) RecordStep(actionType string, ok bool) {
	if ok {
		c.ok[actionType]++
		return
	}
	c.failed[actionType]++
}

func step(t rules.ActionType, value string) rules.ActionStep {
	return rules.ActionStep{RuleName: "r", Type: t, ResolvedValue: value, Enabled: true}
}

func TestExecutor_DispatchesByType(t *testing.T) {
	sink := &recordingSink{}
	notifier := &recordingNotifier{}
	counter := newStepCounter()
	exec := NewExecutor(sink, notifier, logger.NopLogger(), WithRecorder(counter), WithSubject("Tell"))

	smsFromLine := step(rules.ActionSms, "")
	smsFromLine.Line = "Bob tells you, 'hi'"

	ok := exec.Execute(context.Background(), []rules.ActionStep{
		step(rules.ActionKeystroke, "ctrl+f1"),
		step(rules.ActionText, "hello there"),
		step(rules.ActionCommand, "reply hello"),
		step(rules.ActionSms, "tell from Bob"),
		smsFromLine,
	})

	require.True(t, ok)
	assert.Equal(t, []string{
		"keys:[C-F1]",
		"text:hello there",
		"text:/reply hello",
		"keys:[Enter]",
	}, sink.sent)

	require.Len(t, notifier.sent, 2)
	assert.Equal(t, "tell from Bob", notifier.sent[0].Body)
	assert.Equal(t, "Tell", notifier.sent[0].Subject)
	assert.Equal(t, "r", notifier.sent[0].Rule)
	assert.Equal(t, "Bob tells you, 'hi'", notifier.sent[1].Body)

	assert.Equal(t, map[string]int{"keystroke": 1, "text": 1, "command": 1, "sms": 2}, counter.ok)
	assert.Empty(t, counter.failed)
}

func TestExecutor_FailedStepDoesNotAbortSequence(t *testing.T) {
	sink := &recordingSink{failOn: "text:boom", failErr: errors.New("pane gone")}
	counter := newStepCounter()
	exec := NewExecutor(sink, &recordingNotifier{}, logger.NopLogger(), WithRecorder(counter))

	ok := exec.Execute(context.Background(), []rules.ActionStep{
		step(rules.ActionText, "boom"),
		step(rules.ActionKeystroke, "nosuchkey"),
		step(rules.ActionText, "after"),
	})

	assert.False(t, ok)
	assert.Equal(t, []string{"text:boom", "text:after"}, sink.sent)
	assert.Equal(t, 1, counter.ok["text"])
	assert.Equal(t, 1, counter.failed["text"])
	assert.Equal(t, 1, counter.failed["keystroke"])
}

func TestExecutor_UnknownTypeFails(t *testing.T) {
	counter := newStepCounter()
	exec := NewExecutor(&recordingSink{}, &recordingNotifier{}, logger.NopLogger(), WithRecorder(counter))

	ok := exec.Execute(context.Background(), []rules.ActionStep{step(rules.ActionUnknown, "x")})

	assert.False(t, ok)
	assert.Equal(t, 1, counter.failed["unknown"])
}

func TestExecutor_NotifierFailure(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("smtp down")}
	exec := NewExecutor(&recordingSink{}, notifier, logger.NopLogger())

	assert.False(t, exec.Execute(context.Background(), []rules.ActionStep{step(rules.ActionSms, "x")}))
}

func TestExecutor_DisabledStepsSkipped(t *testing.T) {
	sink := &recordingSink{}
	disabled := step(rules.ActionText, "skip")
	disabled.Enabled = false

	exec := NewExecutor(sink, &recordingNotifier{}, logger.NopLogger())
	require.True(t, exec.Execute(context.Background(), []rules.ActionStep{disabled, step(rules.ActionText, "run")}))
	assert.Equal(t, []string{"text:run"}, sink.sent)
}

func TestExecutor_DelayBetweenSteps(t *testing.T) {
	var slept []time.Duration
	sleep := func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	first := step(rules.ActionText, "a")
	first.DelayMs = 150
	last := step(rules.ActionText, "b")
	last.DelayMs = 900

	exec := NewExecutor(&recordingSink{}, &recordingNotifier{}, logger.NopLogger(), WithSleep(sleep))
	require.True(t, exec.Execute(context.Background(), []rules.ActionStep{first, last}))

	assert.Equal(t, []time.Duration{150 * time.Millisecond}, slept)
}

func TestExecutor_CancelDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	first := step(rules.ActionText, "a")
	first.DelayMs = 10_000
	sink := &recordingSink{}
	counter := newStepCounter()

	exec := NewExecutor(sink, &recordingNotifier{}, logger.NopLogger(), WithRecorder(counter))
	start := time.Now()
	ok := exec.Execute(ctx, []rules.ActionStep{first, step(rules.ActionText, "b")})

	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, []string{"text:a"}, sink.sent)
	assert.Equal(t, 1, counter.failed["text"])
}
