package careplan

import (
	"context"

	"github.com/google/uuid"
)

type CarePlanRepository interface {
	// Upsert creates or replaces the patient's plan.
	Upsert(ctx context.Context, cp *CarePlan) error
	GetByPatient(ctx context.Context, patientID uuid.UUID) (*CarePlan, error)
	DeleteByPatient(ctx context.Context, patientID uuid.UUID) error
}
