package action

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runnerCall struct {
	name string
	args []string
}

type fakeRunner struct {
	calls []runnerCall
	out   []byte
	err   error
}

func (r *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.calls = append(r.calls, runnerCall{name: name, args: append([]string(nil), args...)})
	return r.out, r.err
}

func TestTmuxSink_SendTextIsNeverParsedAsFlags(t *testing.T) {
	tests := []string{"-5 platinum", "--help", "-", "-l", "/sit"}

	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			runner := &fakeRunner{}
			sink := NewTmuxSinkWithRunner("", "%1", time.Second, runner)

			require.NoError(t, sink.SendText(context.Background(), text))
			require.Len(t, runner.calls, 1)
			assert.Equal(t, []string{"send-keys", "-t", "%1", "-l", "--", text}, runner.calls[0].args)
		})
	}
}

func TestTmuxSink_Commands(t *testing.T) {
	runner := &fakeRunner{}
	sink := NewTmuxSinkWithRunner("", "%1", time.Second, runner)
	ctx := context.Background()

	require.NoError(t, sink.SendKeys(ctx, "C-a", "F1"))
	require.NoError(t, sink.SendText(ctx, "/sit"))
	require.NoError(t, sink.SendText(ctx, ""))
	require.NoError(t, sink.SendKeys(ctx))
	require.NoError(t, sink.Check(ctx))

	require.Len(t, runner.calls, 3)
	assert.Equal(t, "tmux", runner.calls[0].name)
	assert.Equal(t, "send-keys -t %1 C-a F1", strings.Join(runner.calls[0].args, " "))
	assert.Equal(t, "send-keys -t %1 -l -- /sit", strings.Join(runner.calls[1].args, " "))
	assert.Equal(t, "display-message", runner.calls[2].args[0])
}

func TestTmuxSink_ErrorIncludesOutput(t *testing.T) {
	runner := &fakeRunner{out: []byte("can't find pane: %9\n"), err: errors.New("exit status 1")}
	sink := NewTmuxSinkWithRunner("tmux", "%9", 0, runner)

	err := sink.SendKeys(context.Background(), "Enter")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "can't find pane")
}
