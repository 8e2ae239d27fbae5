package bus

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/approvio/approvio/internal/models"
)

func TestProposalDisposition(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want disposition
	}{
		{"success", nil, dispAck},
		{"redelivered proposal", models.ErrDuplicateKey, dispAck},
		{"wrapped duplicate", fmt.Errorf("creating: %w", models.ErrDuplicateKey), dispAck},
		{"transient failure", errors.New("connection reset"), dispRetry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := proposalDisposition(tt.err); got != tt.want {
				t.Errorf("proposalDisposition(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestDecisionDisposition(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want disposition
	}{
		{"applied", nil, dispAck},
		{"duplicate key replay", models.ErrDuplicateKey, dispAck},
		{"cross-tenant", models.ErrTenantMismatch, dispQuarantine},
		{"decision before proposal", models.ErrItemNotFound, dispRetry},
		{"transient failure", errors.New("db down"), dispRetry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decisionDisposition(tt.err); got != tt.want {
				t.Errorf("decisionDisposition(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{20, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := retryDelay(tt.attempt); got != tt.want {
			t.Errorf("retryDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestReasonLabel(t *testing.T) {
	tests := []struct {
		reason string
		want   string
	}{
		{"malformed_payload", "malformed_payload"},
		{"validation_failed: title is required", "validation_failed"},
		{"retries_exhausted: db down", "retries_exhausted"},
	}

	for _, tt := range tests {
		if got := reasonLabel(tt.reason); got != tt.want {
			t.Errorf("reasonLabel(%q) = %q, want %q", tt.reason, got, tt.want)
		}
	}
}
