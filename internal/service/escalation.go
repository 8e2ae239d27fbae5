package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/approvio/approvio/internal/metrics"
	"github.com/approvio/approvio/internal/models"
)

// OwnerLookup resolves the escalation target of last resort.
type OwnerLookup interface {
	GetWorkspaceOwner(ctx context.Context, tenantID string) (string, error)
}

// Escalator periodically scans for pending items past their due date and
// reassigns them. Escalation changes who should act and how urgently; it
// never approves, rejects, or expires an item on anyone's behalf.
//
// The worker is stateless: multiple replicas can run the same pass and the
// per-item version compare-and-set lets exactly one win. Losers skip
// silently.
type Escalator struct {
	items     ItemStore
	settings  SettingsReader
	owners    OwnerLookup
	pub       Publisher
	log       *logrus.Logger
	interval  time.Duration
	batchSize int
}

// NewEscalator creates an Escalator.
func NewEscalator(
	items ItemStore,
	settings SettingsReader,
	owners OwnerLookup,
	pub Publisher,
	log *logrus.Logger,
	interval time.Duration,
	batchSize int,
) *Escalator {
	return &Escalator{
		items:     items,
		settings:  settings,
		owners:    owners,
		pub:       pub,
		log:       log,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run executes escalation passes on the configured cadence until the context
// is cancelled.
func (e *Escalator) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.log.Info("escalator stopped")
			return
		case <-ticker.C:
			escalated, err := e.Pass(ctx)
			if err != nil {
				e.log.WithError(err).Error("escalation pass failed")
			} else if escalated > 0 {
				e.log.WithField("count", escalated).Info("escalation pass complete")
			}
		}
	}
}

// Pass runs one escalation sweep and returns how many items it escalated.
func (e *Escalator) Pass(ctx context.Context) (int, error) {
	overdue, err := e.items.ListOverdue(ctx, e.batchSize)
	if err != nil {
		return 0, err
	}

	escalated := 0
	for i := range overdue {
		if err := ctx.Err(); err != nil {
			return escalated, err
		}

		if e.escalateOne(ctx, &overdue[i]) {
			escalated++
		}
	}

	return escalated, nil
}

// escalateOne escalates a single overdue item. Returns false when another
// replica won the race or the target could not be resolved.
func (e *Escalator) escalateOne(ctx context.Context, item *models.ApprovalItem) bool {
	target, err := e.resolveTarget(ctx, item.TenantID)
	if err != nil {
		e.log.WithError(err).WithFields(logrus.Fields{
			"tenant_id": item.TenantID,
			"item_id":   item.ID,
		}).Error("resolving escalation target")
		metrics.EscalationsTotal.WithLabelValues("error").Inc()

		return false
	}

	updated, err := e.items.Escalate(ctx, item.TenantID, item.ID, target, item.Version)
	if err != nil {
		if errors.Is(err, models.ErrVersionConflict) {
			// Another replica escalated it first, or a decision landed
			// between the scan and the write. Not an error.
			metrics.EscalationsTotal.WithLabelValues("lost_race").Inc()

			return false
		}

		e.log.WithError(err).WithFields(logrus.Fields{
			"tenant_id": item.TenantID,
			"item_id":   item.ID,
		}).Error("escalating item")
		metrics.EscalationsTotal.WithLabelValues("error").Inc()

		return false
	}

	e.log.WithFields(logrus.Fields{
		"tenant_id":    updated.TenantID,
		"item_id":      updated.ID,
		"escalated_to": target,
		"due_at":       updated.DueAt,
	}).Info("approval.escalated")
	metrics.EscalationsTotal.WithLabelValues("escalated").Inc()

	e.pub.ApprovalEscalated(ctx, models.ApprovalEscalatedEvent{
		ItemID:      updated.ID,
		TenantID:    updated.TenantID,
		EscalatedTo: target,
	})

	return true
}

// resolveTarget picks the configured fallback approver, or the workspace
// owner when the tenant has none configured.
func (e *Escalator) resolveTarget(ctx context.Context, tenantID string) (string, error) {
	settings, err := e.settings.Get(ctx, tenantID)
	if err != nil {
		return "", err
	}

	if settings.FallbackApprover != "" {
		return settings.FallbackApprover, nil
	}

	return e.owners.GetWorkspaceOwner(ctx, tenantID)
}
