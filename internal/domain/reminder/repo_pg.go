package reminder

import (
	"context"

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

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const reminderCols = `id, patient_id, reminder_type, message, scheduled_time, recurrence, active, created_at`

func (r *repoPG) CreateBatch(ctx context.Context, reminders []*Reminder) error {
	for _, rem := range reminders {
		rem.ID = uuid.New()
		err := r.conn(ctx).QueryRow(ctx, `
			INSERT INTO reminder (id, patient_id, reminder_type, message, scheduled_time, recurrence, active)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			RETURNING created_at`,
			rem.ID, rem.PatientID, rem.Type, rem.Message, rem.ScheduledTime, rem.Recurrence, rem.Active).
			Scan(&rem.CreatedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) DeactivateByPatient(ctx context.Context, patientID uuid.UUID) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE reminder SET active = FALSE WHERE patient_id = $1 AND active`, patientID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *repoPG) List(ctx context.Context, patientID uuid.UUID, activeOnly bool) ([]*Reminder, error) {
	q := `SELECT ` + reminderCols + ` FROM reminder WHERE patient_id = $1`
	if activeOnly {
		q += ` AND active`
	}
	q += ` ORDER BY scheduled_time, reminder_type, message`

	rows, err := r.conn(ctx).Query(ctx, q, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Reminder
	for rows.Next() {
		var rem Reminder
		if err := rows.Scan(&rem.ID, &rem.PatientID, &rem.Type, &rem.Message,
			&rem.ScheduledTime, &rem.Recurrence, &rem.Active, &rem.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &rem)
	}
	return out, rows.Err()
}
