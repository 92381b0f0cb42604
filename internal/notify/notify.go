// Package notify publishes build events to NATS so downstream systems
// (dashboards, chat hooks, release automation) can react to documentation
// builds. Publishing is strictly best-effort: a build never fails because
// the broker is away.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	rerrors "git.home.luguber.info/inful/rocket/internal/errors"
	"git.home.luguber.info/inful/rocket/internal/retry"
)

const (
	connectTimeout = 5 * time.Second
	flushTimeout   = 2 * time.Second
)

// Publisher sends JSON build reports to a NATS subject.
type Publisher struct {
	conn    *nats.Conn
	subject string
	policy  retry.Policy
	logger  *slog.Logger
}

// Connect dials the NATS server.
func Connect(url, subject string, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(url,
		nats.Name("rocket"),
		nats.Timeout(connectTimeout),
		nats.MaxReconnects(2),
	)
	if err != nil {
		return nil, rerrors.WrapRetryable(err, rerrors.CategoryNetwork, rerrors.SeverityWarning, "failed to connect to NATS")
	}

	logger.Debug("connected to NATS", "url", url, "subject", subject)
	return &Publisher{
		conn:    conn,
		subject: subject,
		policy:  retry.NewPolicy(retry.BackoffLinear, 200*time.Millisecond, 2*time.Second, 2),
		logger:  logger,
	}, nil
}

// Publish marshals the report and sends it, retrying transient broker
// failures. The flush makes sure the event leaves the process before a CLI
// build exits.
func (p *Publisher) Publish(ctx context.Context, report any) error {
	data, err := json.Marshal(report)
	if err != nil {
		return rerrors.Wrap(err, rerrors.CategoryInternal, rerrors.SeverityWarning, "failed to marshal build report")
	}

	err = p.policy.Do(ctx, func() error {
		if err := p.conn.Publish(p.subject, data); err != nil {
			return rerrors.WrapRetryable(err, rerrors.CategoryNetwork, rerrors.SeverityWarning, "failed to publish build event")
		}
		if err := p.conn.FlushTimeout(flushTimeout); err != nil {
			return rerrors.WrapRetryable(err, rerrors.CategoryNetwork, rerrors.SeverityWarning, "failed to flush build event")
		}
		return nil
	})
	if err != nil {
		return err
	}

	p.logger.Debug("published build event", "subject", p.subject, "bytes", len(data))
	return nil
}

// Close closes the NATS connection.
func (p *Publisher) Close() {
	if p != nil && p.conn != nil {
		p.conn.Close()
	}
}
