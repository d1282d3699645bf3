package emergency

import (
	"context"

	"github.com/google/uuid"
)

type AppointmentRepository interface {
	Create(ctx context.Context, a *AppointmentRequest) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*AppointmentRequest, int, error)
}
