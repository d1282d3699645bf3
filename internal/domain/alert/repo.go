package alert

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type AlertRepository interface {
	Create(ctx context.Context, a *Alert) error
	GetByID(ctx context.Context, id uuid.UUID) (*Alert, error)
	// GetByDedupKey returns the existing alert carrying the patient's dedup
	// key, or ErrNotFound.
	GetByDedupKey(ctx context.Context, patientID uuid.UUID, key string) (*Alert, error)
	// SetAcknowledged marks the alert acknowledged.
	SetAcknowledged(ctx context.Context, id uuid.UUID) (*Alert, error)
	// SetDoctorNotified records that the care team was notified.
	SetDoctorNotified(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, patientID uuid.UUID, unacknowledgedOnly bool, limit, offset int) ([]*Alert, int, error)
	// ListSince returns the patient's alerts created at or after since,
	// newest first. Used by report builders.
	ListSince(ctx context.Context, patientID uuid.UUID, since time.Time) ([]*Alert, error)
}
