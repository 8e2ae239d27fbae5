package service

import (
	"time"

	"github.com/approvio/approvio/internal/models"
)

// Route maps a confidence score to a routing tier and effective SLA. It is a
// pure function over explicit inputs: the same score and settings always
// yield the same outcome, so event redelivery replays deterministically.
//
// Callers must pass Normalized() settings; routing itself never widens
// auto-approval on bad input because Normalized fails closed to defaults.
func Route(score int, settings models.TenantSettings) (models.Tier, time.Duration) {
	var tier models.Tier

	switch {
	case score > settings.HighThreshold:
		tier = models.TierAuto
	case score >= settings.LowThreshold:
		tier = models.TierQuick
	default:
		tier = models.TierFull
	}

	return tier, settings.SLAFor(tier)
}

// auditActionFor maps a decision to its transition audit action.
func auditActionFor(decision string) string {
	if decision == models.DecisionReject {
		return models.AuditRejected
	}

	return models.AuditApproved
}
