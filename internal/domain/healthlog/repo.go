package healthlog

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type GlucoseLogRepository interface {
	Create(ctx context.Context, l *GlucoseLog) error
	ListSince(ctx context.Context, patientID uuid.UUID, since time.Time) ([]*GlucoseLog, error)
}

type MedicationLogRepository interface {
	Create(ctx context.Context, l *MedicationLog) error
	ListSince(ctx context.Context, patientID uuid.UUID, since time.Time) ([]*MedicationLog, error)
	// ListForDay returns logs whose logged_at falls on the same calendar
	// day as day, in day's location.
	ListForDay(ctx context.Context, patientID uuid.UUID, day time.Time) ([]*MedicationLog, error)
}

type MealLogRepository interface {
	Create(ctx context.Context, l *MealLog) error
	ListSince(ctx context.Context, patientID uuid.UUID, since time.Time) ([]*MealLog, error)
}

type ActivityLogRepository interface {
	Create(ctx context.Context, l *ActivityLog) error
	ListSince(ctx context.Context, patientID uuid.UUID, since time.Time) ([]*ActivityLog, error)
}
