package alert

import (
	"context"
	"errors"
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

type alertRepoPG struct{ pool *pgxpool.Pool }

func NewAlertRepoPG(pool *pgxpool.Pool) AlertRepository {
	return &alertRepoPG{pool: pool}
}

func (r *alertRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const alertCols = `id, patient_id, type, severity, message, dedup_key, source_log_id,
	acknowledged, doctor_notified, created_at`

func (r *alertRepoPG) scanRow(row pgx.Row) (*Alert, error) {
	var a Alert
	err := row.Scan(&a.ID, &a.PatientID, &a.Type, &a.Severity, &a.Message, &a.DedupKey, &a.SourceLogID,
		&a.Acknowledged, &a.DoctorNotified, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &a, err
}

func (r *alertRepoPG) Create(ctx context.Context, a *Alert) error {
	a.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO alert (id, patient_id, type, severity, message, dedup_key, source_log_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at`,
		a.ID, a.PatientID, a.Type, a.Severity, a.Message, a.DedupKey, a.SourceLogID).
		Scan(&a.CreatedAt)
}

func (r *alertRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Alert, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx, `SELECT `+alertCols+` FROM alert WHERE id = $1`, id))
}

func (r *alertRepoPG) GetByDedupKey(ctx context.Context, patientID uuid.UUID, key string) (*Alert, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx,
		`SELECT `+alertCols+` FROM alert WHERE patient_id = $1 AND dedup_key = $2 ORDER BY created_at DESC LIMIT 1`,
		patientID, key))
}

func (r *alertRepoPG) SetAcknowledged(ctx context.Context, id uuid.UUID) (*Alert, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx, `
		UPDATE alert SET acknowledged = TRUE WHERE id = $1
		RETURNING `+alertCols, id))
}

func (r *alertRepoPG) SetDoctorNotified(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE alert SET doctor_notified = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *alertRepoPG) List(ctx context.Context, patientID uuid.UUID, unacknowledgedOnly bool, limit, offset int) ([]*Alert, int, error) {
	where := `WHERE patient_id = $1`
	if unacknowledgedOnly {
		where += ` AND acknowledged = FALSE`
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM alert `+where, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+alertCols+` FROM alert `+where+` ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := r.collect(rows)
	return items, total, err
}

func (r *alertRepoPG) ListSince(ctx context.Context, patientID uuid.UUID, since time.Time) ([]*Alert, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+alertCols+` FROM alert WHERE patient_id = $1 AND created_at >= $2 ORDER BY created_at DESC`,
		patientID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *alertRepoPG) collect(rows pgx.Rows) ([]*Alert, error) {
	var items []*Alert
	for rows.Next() {
		a, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
