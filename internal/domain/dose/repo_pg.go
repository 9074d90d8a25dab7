package dose

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/alerting/internal/platform/db"
)

type doseRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &doseRepoPG{pool: pool}
}

func (r *doseRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const doseCols = `id, prescription_id, user_id, medicine_name, dosage, instructions, frequency_hours,
	scheduled_at, status, taken_at, delay_minutes, created_at`

func scanDose(row pgx.Row) (*Dose, error) {
	var (
		d      Dose
		status string
	)
	err := row.Scan(&d.ID, &d.PrescriptionID, &d.UserID, &d.Medicine.Name, &d.Medicine.Dosage,
		&d.Medicine.Instructions, &d.Medicine.FrequencyHours, &d.ScheduledAt, &status,
		&d.TakenAt, &d.DelayMinutes, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	d.Status = Status(status)
	return &d, nil
}

func (r *doseRepoPG) CreatePrescription(ctx context.Context, p *Prescription, doses []*Dose) error {
	return db.InTx(ctx, r.pool, func(ctx context.Context) error {
		_, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO prescriptions (id, user_id, medicine_name, dosage, instructions,
				frequency_hours, starts_at, total_doses, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			p.ID, p.UserID, p.Medicine.Name, p.Medicine.Dosage, p.Medicine.Instructions,
			p.Medicine.FrequencyHours, p.StartsAt, p.TotalDoses, p.CreatedAt)
		if err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for _, d := range doses {
			batch.Queue(`
				INSERT INTO medication_doses (`+doseCols+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
				d.ID, d.PrescriptionID, d.UserID, d.Medicine.Name, d.Medicine.Dosage,
				d.Medicine.Instructions, d.Medicine.FrequencyHours, d.ScheduledAt, string(d.Status),
				d.TakenAt, d.DelayMinutes, d.CreatedAt)
		}
		tx := db.TxFromContext(ctx)
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (r *doseRepoPG) GetDose(ctx context.Context, userID string, id uuid.UUID) (*Dose, error) {
	d, err := scanDose(r.conn(ctx).QueryRow(ctx,
		`SELECT `+doseCols+` FROM medication_doses WHERE id = $1 AND user_id = $2`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

func (r *doseRepoPG) list(ctx context.Context, query string, args ...interface{}) ([]*Dose, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Dose
	for rows.Next() {
		d, err := scanDose(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (r *doseRepoPG) ListByUser(ctx context.Context, userID string, from, to time.Time) ([]*Dose, error) {
	return r.list(ctx, `SELECT `+doseCols+` FROM medication_doses
		WHERE user_id = $1 AND scheduled_at BETWEEN $2 AND $3
		ORDER BY scheduled_at, id`, userID, from, to)
}

func (r *doseRepoPG) ListScheduledBetween(ctx context.Context, from, to time.Time) ([]*Dose, error) {
	return r.list(ctx, `SELECT `+doseCols+` FROM medication_doses
		WHERE status = 'scheduled' AND scheduled_at BETWEEN $1 AND $2
		ORDER BY scheduled_at, id`, from, to)
}

func (r *doseRepoPG) MarkTaken(ctx context.Context, userID string, id uuid.UUID, takenAt time.Time, delayMinutes int) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medication_doses SET status = 'taken', taken_at = $3, delay_minutes = $4
		WHERE id = $1 AND user_id = $2 AND status <> 'taken'`,
		id, userID, takenAt, delayMinutes)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
