package action

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logtrigger/internal/logger"
	"logtrigger/pkg/circuitbreaker"
	"logtrigger/pkg/models"
	"logtrigger/pkg/retry"
)

type fakeProducer struct {
	topic, key string
	value      any
	err        error
}

func (p *fakeProducer) Publish(ctx context.Context, topic, key string, value any) error {
	p.topic, p.key, p.value = topic, key, value
	return p.err
}

func (p *fakeProducer) Close() error { return nil }

func TestSMTPNotifier_RetriesThenSucceeds(t *testing.T) {
	settings := SMTPSettings{Server: "smtp.example.com", Port: 587, From: "bot@example.com", To: []string{"me@example.com"}}
	n := NewSMTPNotifier(settings, retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, Multiplier: 1}, logger.NopLogger())

	var msgs [][]byte
	n.send = func(ctx context.Context, s SMTPSettings, msg []byte) error {
		msgs = append(msgs, msg)
		if len(msgs) < 2 {
			return errors.New("421 try later")
		}
		return nil
	}

	require.NoError(t, n.Notify(context.Background(), models.NewNotification("tell", "", "Bob: hi", "Bob tells you, 'hi'")))
	require.Len(t, msgs, 2)

	body := string(msgs[1])
	assert.Contains(t, body, "Subject: EQ Tell Message\r\n")
	assert.Contains(t, body, "To: me@example.com\r\n")
	assert.True(t, strings.HasSuffix(body, "\r\n\r\nBob: hi\r\n"))
}

func TestSMTPNotifier_GivesUp(t *testing.T) {
	n := NewSMTPNotifier(SMTPSettings{Server: "smtp"}, retry.Policy{MaxAttempts: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, Multiplier: 1}, logger.NopLogger())
	calls := 0
	n.send = func(context.Context, SMTPSettings, []byte) error {
		calls++
		return errors.New("refused")
	}

	err := n.Notify(context.Background(), models.NewNotification("tell", "", "x", "x"))
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestBuildMessage_StripsHeaderInjection(t *testing.T) {
	n := models.NewNotification("r", "hi\r\nBcc: evil@example.com", "body", "line")
	msg := string(buildMessage("a@b.c", []string{"d@e.f"}, n))
	assert.NotContains(t, msg, "\r\nBcc:")
}

func TestKafkaNotifier(t *testing.T) {
	p := &fakeProducer{}
	n := NewKafkaNotifier(p, "notifications")

	notification := models.NewNotification("tell", "", "hi", "line")
	require.NoError(t, n.Notify(context.Background(), notification))
	assert.Equal(t, "notifications", p.topic)
	assert.Equal(t, "tell", p.key)
	assert.Equal(t, notification, p.value)

	p.err = errors.New("broker down")
	assert.Error(t, n.Notify(context.Background(), notification))
}

func TestBreakerNotifier_OpensOnFailures(t *testing.T) {
	inner := &recordingNotifier{err: errors.New("down")}
	breaker := circuitbreaker.NewWrapper(circuitbreaker.Config{
		Name:        "notifier-test",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: circuitbreaker.RatioTrip(2, 1),
	})
	n := NewBreakerNotifier(inner, breaker, logger.NopLogger())

	notification := models.NewNotification("tell", "", "hi", "line")
	for i := 0; i < 3; i++ {
		assert.Error(t, n.Notify(context.Background(), notification))
	}

	assert.Len(t, inner.sent, 2)
	assert.True(t, breaker.IsOpen())
}
