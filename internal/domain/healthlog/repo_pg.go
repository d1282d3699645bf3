package healthlog

import (
	"context"
	"time"

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

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

type glucoseRepoPG struct{ pool *pgxpool.Pool }

func NewGlucoseLogRepoPG(pool *pgxpool.Pool) GlucoseLogRepository {
	return &glucoseRepoPG{pool: pool}
}

func (r *glucoseRepoPG) Create(ctx context.Context, l *GlucoseLog) error {
	l.ID = uuid.New()
	return conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO glucose_log (id, patient_id, reading, reading_type, logged_at, notes)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`,
		l.ID, l.PatientID, l.Reading, l.ReadingType, l.LoggedAt, l.Notes).
		Scan(&l.CreatedAt)
}

func (r *glucoseRepoPG) ListSince(ctx context.Context, patientID uuid.UUID, since time.Time) ([]*GlucoseLog, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, patient_id, reading, reading_type, logged_at, notes, created_at
		FROM glucose_log
		WHERE patient_id = $1 AND logged_at >= $2
		ORDER BY logged_at DESC`, patientID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*GlucoseLog
	for rows.Next() {
		var l GlucoseLog
		if err := rows.Scan(&l.ID, &l.PatientID, &l.Reading, &l.ReadingType, &l.LoggedAt, &l.Notes, &l.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &l)
	}
	return items, rows.Err()
}

type medicationRepoPG struct{ pool *pgxpool.Pool }

func NewMedicationLogRepoPG(pool *pgxpool.Pool) MedicationLogRepository {
	return &medicationRepoPG{pool: pool}
}

func (r *medicationRepoPG) Create(ctx context.Context, l *MedicationLog) error {
	l.ID = uuid.New()
	return conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO medication_log (id, patient_id, medication_name, dosage, taken, logged_at, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at`,
		l.ID, l.PatientID, l.MedicationName, l.Dosage, l.Taken, l.LoggedAt, l.Notes).
		Scan(&l.CreatedAt)
}

const medicationLogCols = `id, patient_id, medication_name, dosage, taken, logged_at, notes, created_at`

func (r *medicationRepoPG) ListSince(ctx context.Context, patientID uuid.UUID, since time.Time) ([]*MedicationLog, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+medicationLogCols+` FROM medication_log
		WHERE patient_id = $1 AND logged_at >= $2
		ORDER BY logged_at DESC`, patientID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMedicationLogs(rows)
}

func (r *medicationRepoPG) ListForDay(ctx context.Context, patientID uuid.UUID, day time.Time) ([]*MedicationLog, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+medicationLogCols+` FROM medication_log
		WHERE patient_id = $1 AND logged_at >= $2 AND logged_at < $3
		ORDER BY logged_at`, patientID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMedicationLogs(rows)
}

func collectMedicationLogs(rows pgx.Rows) ([]*MedicationLog, error) {
	var items []*MedicationLog
	for rows.Next() {
		var l MedicationLog
		if err := rows.Scan(&l.ID, &l.PatientID, &l.MedicationName, &l.Dosage, &l.Taken, &l.LoggedAt, &l.Notes, &l.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &l)
	}
	return items, rows.Err()
}

type mealRepoPG struct{ pool *pgxpool.Pool }

func NewMealLogRepoPG(pool *pgxpool.Pool) MealLogRepository {
	return &mealRepoPG{pool: pool}
}

func (r *mealRepoPG) Create(ctx context.Context, l *MealLog) error {
	l.ID = uuid.New()
	return conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO meal_log (id, patient_id, meal_type, description, carbs_estimate, logged_at, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at`,
		l.ID, l.PatientID, l.MealType, l.Description, l.CarbsEstimate, l.LoggedAt, l.Notes).
		Scan(&l.CreatedAt)
}

func (r *mealRepoPG) ListSince(ctx context.Context, patientID uuid.UUID, since time.Time) ([]*MealLog, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, patient_id, meal_type, description, carbs_estimate, logged_at, notes, created_at
		FROM meal_log
		WHERE patient_id = $1 AND logged_at >= $2
		ORDER BY logged_at DESC`, patientID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*MealLog
	for rows.Next() {
		var l MealLog
		if err := rows.Scan(&l.ID, &l.PatientID, &l.MealType, &l.Description, &l.CarbsEstimate, &l.LoggedAt, &l.Notes, &l.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &l)
	}
	return items, rows.Err()
}

type activityRepoPG struct{ pool *pgxpool.Pool }

func NewActivityLogRepoPG(pool *pgxpool.Pool) ActivityLogRepository {
	return &activityRepoPG{pool: pool}
}

func (r *activityRepoPG) Create(ctx context.Context, l *ActivityLog) error {
	l.ID = uuid.New()
	return conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO activity_log (id, patient_id, activity_type, duration_minutes, intensity, logged_at, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at`,
		l.ID, l.PatientID, l.ActivityType, l.DurationMinutes, l.Intensity, l.LoggedAt, l.Notes).
		Scan(&l.CreatedAt)
}

func (r *activityRepoPG) ListSince(ctx context.Context, patientID uuid.UUID, since time.Time) ([]*ActivityLog, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, patient_id, activity_type, duration_minutes, intensity, logged_at, notes, created_at
		FROM activity_log
		WHERE patient_id = $1 AND logged_at >= $2
		ORDER BY logged_at DESC`, patientID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ActivityLog
	for rows.Next() {
		var l ActivityLog
		if err := rows.Scan(&l.ID, &l.PatientID, &l.ActivityType, &l.DurationMinutes, &l.Intensity, &l.LoggedAt, &l.Notes, &l.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &l)
	}
	return items, rows.Err()
}
