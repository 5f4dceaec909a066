package worker

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/codearena/judge-core/internal/dto"
)

// StatusPublisher broadcasts submission lifecycle events over NATS.
// Publishing is fire-and-forget: a failed publish is logged and never blocks
// or fails grading. A nil connection disables publishing entirely.
type StatusPublisher struct {
	conn        *nats.Conn
	subjectBase string
	logger      zerolog.Logger
}

// NewStatusPublisher constructs a publisher. subjectBase defaults to "judge".
func NewStatusPublisher(conn *nats.Conn, subjectBase string, logger zerolog.Logger) *StatusPublisher {
	if subjectBase == "" {
		subjectBase = "judge"
	}

	return &StatusPublisher{
		conn:        conn,
		subjectBase: subjectBase,
		logger:      logger.With().Str("component", "status_publisher").Logger(),
	}
}

// Publish sends one status event on "<base>.submissions.<status>".
func (p *StatusPublisher) Publish(event dto.StatusEvent) {
	if p == nil || p.conn == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to marshal status event")
		return
	}

	subject := fmt.Sprintf("%s.submissions.%s", p.subjectBase, event.Status)
	if err := p.conn.Publish(subject, payload); err != nil {
		p.logger.Error().Err(err).Str("subject", subject).Msg("failed to publish status event")
	}
}
