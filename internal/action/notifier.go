package action

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"logtrigger/internal/broker"
	"logtrigger/internal/logger"
	"logtrigger/pkg/circuitbreaker"
	"logtrigger/pkg/metrics"
	"logtrigger/pkg/models"
	"logtrigger/pkg/retry"
)

// Notifier delivers the payload of an sms step.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

type SMTPSettings struct {
	Server    string
	Port      int
	Username  string
	Password  string
	From      string
	To        []string
	EnableSSL bool
}

// SMTPNotifier sends notifications as plain-text e-mail. EnableSSL selects
// implicit TLS; otherwise STARTTLS is used when the server offers it.
type SMTPNotifier struct {
	settings SMTPSettings
	policy   retry.Policy
	logger   logger.Logger
	send     func(ctx context.Context, s SMTPSettings, msg []byte) error
}

func NewSMTPNotifier(settings SMTPSettings, policy retry.Policy, log logger.Logger) *SMTPNotifier {
	return &SMTPNotifier{
		settings: settings,
		policy:   policy,
		logger:   log,
		send:     sendMail,
	}
}

func (n *SMTPNotifier) Notify(ctx context.Context, notification models.Notification) error {
	msg := buildMessage(n.settings.From, n.settings.To, notification)

	err := retry.RetryWithCallback(ctx, n.policy, func() error {
		return n.send(ctx, n.settings, msg)
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.IncRetryAttempt("smtp", n.settings.Server)
		n.logger.WarnwCtx(ctx, "Retrying notification e-mail",
			"attempt", attempt,
			"next_delay", nextDelay,
			"error", err,
		)
	})
	if err != nil {
		metrics.IncNotification("smtp", "failure")
		return fmt.Errorf("failed to send notification e-mail: %w", err)
	}

	metrics.IncNotification("smtp", "success")
	return nil
}

func buildMessage(from string, to []string, n models.Notification) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + strings.Join(to, ", ") + "\r\n")
	b.WriteString("Subject: " + sanitizeHeader(n.Subject) + "\r\n")
	b.WriteString("Date: " + n.Timestamp.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("Message-ID: <" + n.ID + "@logtrigger>\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(n.Body)
	b.WriteString("\r\n")
	return []byte(b.String())
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}

func sendMail(ctx context.Context, s SMTPSettings, msg []byte) error {
	addr := net.JoinHostPort(s.Server, strconv.Itoa(s.Port))

	var auth smtp.Auth
	if s.Username != "" {
		auth = smtp.PlainAuth("", s.Username, s.Password, s.Server)
	}

	if !s.EnableSSL {
		return smtp.SendMail(addr, auth, s.From, s.To, msg)
	}

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: 10 * time.Second},
		Config:    &tls.Config{ServerName: s.Server, MinVersion: tls.VersionTLS12},
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	c, err := smtp.NewClient(conn, s.Server)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if auth != nil {
		if err := c.Auth(auth); err != nil {
			return retry.NewFatalError(fmt.Errorf("smtp auth: %w", err))
		}
	}
	if err := c.Mail(s.From); err != nil {
		return err
	}
	for _, rcpt := range s.To {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// KafkaNotifier publishes notifications to a topic for an external sender.
type KafkaNotifier struct {
	producer broker.Producer
	topic    string
}

func NewKafkaNotifier(producer broker.Producer, topic string) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic}
}

func (n *KafkaNotifier) Notify(ctx context.Context, notification models.Notification) error {
	if err := n.producer.Publish(ctx, n.topic, notification.Rule, notification); err != nil {
		metrics.IncNotification("kafka", "failure")
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	metrics.IncNotification("kafka", "success")
	return nil
}

// BreakerNotifier stops calling a failing transport until the breaker
// half-opens again.
type BreakerNotifier struct {
	next    Notifier
	breaker *circuitbreaker.Wrapper
	logger  logger.Logger
}

func NewBreakerNotifier(next Notifier, breaker *circuitbreaker.Wrapper, log logger.Logger) *BreakerNotifier {
	return &BreakerNotifier{next: next, breaker: breaker, logger: log}
}

func (n *BreakerNotifier) Notify(ctx context.Context, notification models.Notification) error {
	err := n.breaker.Do(ctx, func(ctx context.Context) error {
		return n.next.Notify(ctx, notification)
	})
	if circuitbreaker.IsRejected(err) {
		n.logger.WarnwCtx(ctx, "Notification skipped, transport circuit open",
			"breaker", n.breaker.Name(),
			"rule", notification.Rule,
		)
	}
	return err
}

type nopNotifier struct {
	logger logger.Logger
}

// NewNopNotifier returns a Notifier that only logs. It is used when no
// transport is configured.
func NewNopNotifier(log logger.Logger) Notifier {
	return nopNotifier{logger: log}
}

func (n nopNotifier) Notify(ctx context.Context, notification models.Notification) error {
	n.logger.InfowCtx(ctx, "No notification transport configured, dropping notification",
		"rule", notification.Rule,
		"body", notification.Body,
	)
	metrics.IncNotification("none", "skipped")
	return nil
}
