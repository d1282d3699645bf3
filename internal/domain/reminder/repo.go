package reminder

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	CreateBatch(ctx context.Context, reminders []*Reminder) error
	DeactivateByPatient(ctx context.Context, patientID uuid.UUID) (int64, error)
	List(ctx context.Context, patientID uuid.UUID, activeOnly bool) ([]*Reminder, error)
}
