package bus

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/approvio/approvio/internal/metrics"
	"github.com/approvio/approvio/internal/models"
)

// Publisher emits outbound lifecycle events to JetStream.
//
// All publish operations are non-fatal: the state transition an event
// announces has already committed, so failures are logged and counted but
// never propagated to the caller.
type Publisher struct {
	js  nats.JetStreamContext
	log *logrus.Logger
}

// NewPublisher creates a Publisher on the given JetStream context.
func NewPublisher(js nats.JetStreamContext, log *logrus.Logger) *Publisher {
	return &Publisher{js: js, log: log}
}

// ApprovalCreated announces a newly created item.
func (p *Publisher) ApprovalCreated(ctx context.Context, ev models.ApprovalCreatedEvent) {
	p.publish(ctx, models.SubjectApprovalCreated, ev.ItemID, ev)
}

// ApprovalAutoApproved announces an item approved by routing alone.
func (p *Publisher) ApprovalAutoApproved(ctx context.Context, ev models.ApprovalAutoApprovedEvent) {
	p.publish(ctx, models.SubjectApprovalAutoApproved, ev.ItemID, ev)
}

// ApprovalResolved announces a terminal decision to the requesting module.
func (p *Publisher) ApprovalResolved(ctx context.Context, ev models.ApprovalResolvedEvent) {
	p.publish(ctx, models.SubjectApprovalResolved, ev.ItemID, ev)
}

// ApprovalEscalated announces an overdue item being reassigned.
func (p *Publisher) ApprovalEscalated(ctx context.Context, ev models.ApprovalEscalatedEvent) {
	p.publish(ctx, models.SubjectApprovalEscalated, ev.ItemID, ev)
}

func (p *Publisher) publish(ctx context.Context, subject, itemID string, v any) {
	if p.js == nil {
		return
	}

	data, err := json.Marshal(v)
	if err != nil {
		p.log.WithError(err).WithField("subject", subject).Warn("bus: failed to marshal event")
		metrics.EventsPublishedTotal.WithLabelValues(subject, "error").Inc()
		return
	}

	if _, err := p.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		p.log.WithError(err).WithFields(logrus.Fields{
			"subject": subject,
			"item_id": itemID,
		}).Warn("bus: failed to publish event (non-fatal)")
		metrics.EventsPublishedTotal.WithLabelValues(subject, "error").Inc()
		return
	}

	p.log.WithFields(logrus.Fields{
		"subject": subject,
		"item_id": itemID,
	}).Debug("bus: event published")
	metrics.EventsPublishedTotal.WithLabelValues(subject, "ok").Inc()
}
