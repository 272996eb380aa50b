package action

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"logtrigger/internal/logger"
)

// Sink delivers keystrokes and literal text to the target program.
type Sink interface {
	// SendKeys presses keys in order. Keys use tmux key names such as
	// "Enter", "F1" or "C-a".
	SendKeys(ctx context.Context, keys ...string) error
	// SendText types text literally.
	SendText(ctx context.Context, text string) error
}

type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type OSRunner struct{}

func (OSRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// TmuxSink drives a tmux pane with send-keys.
type TmuxSink struct {
	binary  string
	target  string
	timeout time.Duration
	runner  Runner
}

func NewTmuxSink(binary, target string, timeout time.Duration) *TmuxSink {
	if binary == "" {
		binary = "tmux"
	}
	return &TmuxSink{
		binary:  binary,
		target:  target,
		timeout: timeout,
		runner:  OSRunner{},
	}
}

func NewTmuxSinkWithRunner(binary, target string, timeout time.Duration, runner Runner) *TmuxSink {
	s := NewTmuxSink(binary, target, timeout)
	s.runner = runner
	return s
}

func (s *TmuxSink) SendKeys(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	args := append([]string{"send-keys", "-t", s.target}, keys...)
	return s.run(ctx, args...)
}

// SendText types text literally. The -- keeps text that starts with a dash
// from being read as a flag.
func (s *TmuxSink) SendText(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	return s.run(ctx, "send-keys", "-t", s.target, "-l", "--", text)
}

func (s *TmuxSink) Name() string {
	return "tmux"
}

// Check verifies that the target pane exists.
func (s *TmuxSink) Check(ctx context.Context) error {
	return s.run(ctx, "display-message", "-p", "-t", s.target, "#{pane_id}")
}

func (s *TmuxSink) run(ctx context.Context, args ...string) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	out, err := s.runner.Run(ctx, s.binary, args...)
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return fmt.Errorf("%s %s: %w: %s", s.binary, args[0], err, msg)
		}
		return fmt.Errorf("%s %s: %w", s.binary, args[0], err)
	}
	return nil
}

// DryRunSink logs what would have been sent.
type DryRunSink struct {
	logger logger.Logger
}

func NewDryRunSink(log logger.Logger) *DryRunSink {
	return &DryRunSink{logger: log}
}

func (s *DryRunSink) SendKeys(ctx context.Context, keys ...string) error {
	s.logger.InfowCtx(ctx, "Dry run: send keys", "keys", keys)
	return nil
}

func (s *DryRunSink) SendText(ctx context.Context, text string) error {
	s.logger.InfowCtx(ctx, "Dry run: send text", "text", text)
	return nil
}
