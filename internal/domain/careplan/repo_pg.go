package careplan

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebuddy/carebuddy/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type carePlanRepoPG struct{ pool *pgxpool.Pool }

func NewCarePlanRepoPG(pool *pgxpool.Pool) CarePlanRepository {
	return &carePlanRepoPG{pool: pool}
}

func (r *carePlanRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const carePlanCols = `id, patient_id, doctor_id, medications, glucose_targets, health_goals,
	dietary_recommendations, notes, created_at, updated_at`

func (r *carePlanRepoPG) scanRow(row pgx.Row) (*CarePlan, error) {
	var cp CarePlan
	err := row.Scan(&cp.ID, &cp.PatientID, &cp.DoctorID, &cp.Medications, &cp.GlucoseTargets, &cp.HealthGoals,
		&cp.DietaryRecommendations, &cp.Notes, &cp.CreatedAt, &cp.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &cp, err
}

func (r *carePlanRepoPG) Upsert(ctx context.Context, cp *CarePlan) error {
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO care_plan (id, patient_id, doctor_id, medications, glucose_targets, health_goals,
			dietary_recommendations, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (patient_id) DO UPDATE SET
			doctor_id = EXCLUDED.doctor_id,
			medications = EXCLUDED.medications,
			glucose_targets = EXCLUDED.glucose_targets,
			health_goals = EXCLUDED.health_goals,
			dietary_recommendations = EXCLUDED.dietary_recommendations,
			notes = EXCLUDED.notes,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		cp.ID, cp.PatientID, cp.DoctorID, cp.Medications, cp.GlucoseTargets, cp.HealthGoals,
		cp.DietaryRecommendations, cp.Notes).
		Scan(&cp.ID, &cp.CreatedAt, &cp.UpdatedAt)
}

func (r *carePlanRepoPG) GetByPatient(ctx context.Context, patientID uuid.UUID) (*CarePlan, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx,
		`SELECT `+carePlanCols+` FROM care_plan WHERE patient_id = $1`, patientID))
}

func (r *carePlanRepoPG) DeleteByPatient(ctx context.Context, patientID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM care_plan WHERE patient_id = $1`, patientID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
