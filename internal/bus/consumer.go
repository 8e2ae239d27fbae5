package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/approvio/approvio/internal/domain"
	"github.com/approvio/approvio/internal/metrics"
	"github.com/approvio/approvio/internal/models"
)

// queueGroup balances inbound subjects across replicas.
const queueGroup = "approvio-core"

// ackWait is how long JetStream waits for an ack before redelivering.
const ackWait = 30 * time.Second

// disposition is what the consumer does with a message after processing.
type disposition int

const (
	dispAck disposition = iota
	dispRetry
	dispQuarantine
)

// QuarantineSink parks events that cannot be processed.
type QuarantineSink interface {
	Add(ctx context.Context, ev *models.QuarantinedEvent) error
}

// Consumer subscribes to the inbound approval subjects. Delivery is
// at-least-once: every handler path must end in an ack, a delayed nak, or a
// terminate-into-quarantine. Dropping a message silently is never an option.
type Consumer struct {
	js            nats.JetStreamContext
	approvals     domain.ApprovalService
	quarantine    QuarantineSink
	log           *logrus.Logger
	maxDeliveries int

	subs []*nats.Subscription
}

// NewConsumer creates a Consumer. maxDeliveries bounds redelivery before an
// event is parked in quarantine.
func NewConsumer(
	js nats.JetStreamContext,
	approvals domain.ApprovalService,
	quarantine QuarantineSink,
	log *logrus.Logger,
	maxDeliveries int,
) *Consumer {
	return &Consumer{
		js:            js,
		approvals:     approvals,
		quarantine:    quarantine,
		log:           log,
		maxDeliveries: maxDeliveries,
	}
}

// Start opens the queue subscriptions. The context bounds per-message
// processing, not the subscription lifetime; call Stop to unsubscribe.
func (c *Consumer) Start(ctx context.Context) error {
	proposalSub, err := c.js.QueueSubscribe(
		models.SubjectActionProposed, queueGroup,
		func(msg *nats.Msg) { c.handleProposal(ctx, msg) },
		nats.ManualAck(), nats.AckWait(ackWait), nats.Durable("approvio-proposals"),
	)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", models.SubjectActionProposed, err)
	}
	c.subs = append(c.subs, proposalSub)

	decisionSub, err := c.js.QueueSubscribe(
		models.SubjectDecisionSubmitted, queueGroup,
		func(msg *nats.Msg) { c.handleDecision(ctx, msg) },
		nats.ManualAck(), nats.AckWait(ackWait), nats.Durable("approvio-decisions"),
	)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", models.SubjectDecisionSubmitted, err)
	}
	c.subs = append(c.subs, decisionSub)

	return nil
}

// Stop unsubscribes; in-flight handlers finish first.
func (c *Consumer) Stop() {
	for _, sub := range c.subs {
		if err := sub.Unsubscribe(); err != nil {
			c.log.WithError(err).Warn("bus: unsubscribe failed")
		}
	}
	c.subs = nil
}

func (c *Consumer) handleProposal(ctx context.Context, msg *nats.Msg) {
	var ev models.ActionProposedEvent
	// Unknown fields are ignored so upstream schema additions never break us.
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		c.park(ctx, msg, "", "malformed_payload")
		return
	}

	if err := ev.Validate(); err != nil {
		c.park(ctx, msg, ev.TenantID, "validation_failed: "+err.Error())
		return
	}

	_, err := c.approvals.CreateFromProposal(ctx, ev)
	c.settle(ctx, msg, ev.TenantID, proposalDisposition(err), err)
}

func (c *Consumer) handleDecision(ctx context.Context, msg *nats.Msg) {
	var ev models.DecisionSubmittedEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		c.park(ctx, msg, "", "malformed_payload")
		return
	}

	if err := ev.Validate(); err != nil {
		c.park(ctx, msg, ev.TenantID, "validation_failed: "+err.Error())
		return
	}

	req := models.DecisionRequest{
		Decision:      ev.Decision,
		Actor:         ev.Actor,
		Notes:         ev.Notes,
		Modifications: ev.Modifications,
	}

	_, err := c.approvals.ApplyDecision(ctx, ev.TenantID, ev.ItemID, req, ev.IdempotencyKey)
	c.settle(ctx, msg, ev.TenantID, decisionDisposition(err), err)
}

// proposalDisposition classifies a CreateFromProposal outcome. A duplicate
// key is a redelivered proposal already processed: acked, never retried.
func proposalDisposition(err error) disposition {
	switch {
	case err == nil, errors.Is(err, models.ErrDuplicateKey):
		return dispAck
	default:
		return dispRetry
	}
}

// decisionDisposition classifies an ApplyDecision outcome. A missing item is
// retried with backoff because a decision can arrive before its proposal on
// independent subjects; a tenant mismatch is permanent and goes straight to
// quarantine.
func decisionDisposition(err error) disposition {
	switch {
	case err == nil, errors.Is(err, models.ErrDuplicateKey):
		return dispAck
	case errors.Is(err, models.ErrTenantMismatch):
		return dispQuarantine
	case errors.Is(err, models.ErrItemNotFound):
		return dispRetry
	default:
		return dispRetry
	}
}

// settle applies a disposition to the message, promoting retries that have
// exhausted their delivery budget into quarantine.
func (c *Consumer) settle(ctx context.Context, msg *nats.Msg, tenantID string, d disposition, cause error) {
	switch d {
	case dispAck:
		c.ack(msg, "processed")

	case dispQuarantine:
		reason := "unprocessable"
		if cause != nil {
			reason = cause.Error()
		}
		c.park(ctx, msg, tenantID, reason)

	case dispRetry:
		attempt := c.deliveries(msg)
		if attempt >= c.maxDeliveries {
			reason := "retries_exhausted"
			if cause != nil {
				reason = "retries_exhausted: " + cause.Error()
			}
			c.park(ctx, msg, tenantID, reason)
			return
		}

		delay := retryDelay(attempt)
		c.log.WithError(cause).WithFields(logrus.Fields{
			"subject": msg.Subject,
			"attempt": attempt,
			"delay":   delay.String(),
		}).Warn("bus: retrying event")
		metrics.EventsConsumedTotal.WithLabelValues(msg.Subject, "retried").Inc()

		if err := msg.NakWithDelay(delay); err != nil {
			c.log.WithError(err).Warn("bus: nak failed")
		}
	}
}

// park quarantines the message and terminates redelivery.
func (c *Consumer) park(ctx context.Context, msg *nats.Msg, tenantID, reason string) {
	ev := &models.QuarantinedEvent{
		TenantID: tenantID,
		Subject:  msg.Subject,
		Payload:  msg.Data,
		Reason:   reason,
		Attempts: c.deliveries(msg),
	}

	if err := c.quarantine.Add(ctx, ev); err != nil {
		// Keep the message redelivering rather than lose it.
		c.log.WithError(err).Error("bus: quarantine write failed, nacking")
		if nakErr := msg.NakWithDelay(retryDelay(c.deliveries(msg))); nakErr != nil {
			c.log.WithError(nakErr).Warn("bus: nak failed")
		}
		return
	}

	c.log.WithFields(logrus.Fields{
		"subject": msg.Subject,
		"reason":  reason,
	}).Warn("bus: event quarantined")
	metrics.EventsConsumedTotal.WithLabelValues(msg.Subject, "quarantined").Inc()
	metrics.QuarantinedTotal.WithLabelValues(reasonLabel(reason)).Inc()

	if err := msg.Term(); err != nil {
		c.log.WithError(err).Warn("bus: term failed")
	}
}

func (c *Consumer) ack(msg *nats.Msg, outcome string) {
	metrics.EventsConsumedTotal.WithLabelValues(msg.Subject, outcome).Inc()
	if err := msg.Ack(); err != nil {
		c.log.WithError(err).Warn("bus: ack failed")
	}
}

// deliveries returns how many times this message has been delivered.
func (c *Consumer) deliveries(msg *nats.Msg) int {
	meta, err := msg.Metadata()
	if err != nil {
		return 1
	}
	return int(meta.NumDelivered)
}

// reasonLabel strips the detail from a quarantine reason so the metric label
// stays low-cardinality.
func reasonLabel(reason string) string {
	if i := strings.Index(reason, ":"); i > 0 {
		return reason[:i]
	}
	return reason
}

// retryDelay returns an exponential backoff for the given delivery attempt,
// capped at 30 seconds.
func retryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := time.Second << uint(attempt-1)
	if delay > 30*time.Second {
		delay = 30 * time.Second
	}
	return delay
}
