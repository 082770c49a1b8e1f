package domain

import (
	"time"

	"github.com/google/uuid"
)

// Audit event kinds.
const (
	AuditArtifactBuilt = "artifact_built"
	AuditPrediction    = "prediction"
)

// AuditEvent records a state-changing or model-consuming action of the API.
type AuditEvent struct {
	ID          string         `json:"id"`
	Kind        string         `json:"kind"`
	Artifact    string         `json:"artifact,omitempty"`
	Fingerprint string         `json:"fingerprint,omitempty"`
	Bytes       int            `json:"bytes,omitempty"`
	Features    *PartyFeatures `json:"features,omitempty"`
	Outcome     string         `json:"outcome,omitempty"`
	AtFault     *int           `json:"at_fault,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

// NewArtifactBuiltEvent describes a freshly materialized artifact.
func NewArtifactBuiltEvent(name, fingerprint string, size int, at time.Time) AuditEvent {
	return AuditEvent{
		ID:          uuid.NewString(),
		Kind:        AuditArtifactBuilt,
		Artifact:    name,
		Fingerprint: fingerprint,
		Bytes:       size,
		OccurredAt:  at.UTC(),
	}
}

// NewPredictionEvent describes one prediction request. atFault is nil unless
// the prediction succeeded.
func NewPredictionEvent(features PartyFeatures, outcome string, atFault *int, at time.Time) AuditEvent {
	return AuditEvent{
		ID:         uuid.NewString(),
		Kind:       AuditPrediction,
		Features:   &features,
		Outcome:    outcome,
		AtFault:    atFault,
		OccurredAt: at.UTC(),
	}
}
