package dose

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type doseRepoSQLite struct{ db *sqlx.DB }

func NewRepoSQLite(db *sqlx.DB) Repository {
	return &doseRepoSQLite{db: db}
}

type doseRow struct {
	ID             uuid.UUID      `db:"id"`
	PrescriptionID uuid.UUID      `db:"prescription_id"`
	UserID         string         `db:"user_id"`
	MedicineName   string         `db:"medicine_name"`
	Dosage         string         `db:"dosage"`
	Instructions   sql.NullString `db:"instructions"`
	FrequencyHours int            `db:"frequency_hours"`
	ScheduledAt    time.Time      `db:"scheduled_at"`
	Status         string         `db:"status"`
	TakenAt        sql.NullTime   `db:"taken_at"`
	DelayMinutes   sql.NullInt64  `db:"delay_minutes"`
	CreatedAt      time.Time      `db:"created_at"`
}

func (row doseRow) toDose() *Dose {
	d := &Dose{
		ID:             row.ID,
		PrescriptionID: row.PrescriptionID,
		UserID:         row.UserID,
		Medicine: MedicineRef{
			Name:           row.MedicineName,
			Dosage:         row.Dosage,
			FrequencyHours: row.FrequencyHours,
		},
		ScheduledAt: row.ScheduledAt,
		Status:      Status(row.Status),
		CreatedAt:   row.CreatedAt,
	}
	if row.Instructions.Valid {
		d.Medicine.Instructions = &row.Instructions.String
	}
	if row.TakenAt.Valid {
		t := row.TakenAt.Time
		d.TakenAt = &t
	}
	if row.DelayMinutes.Valid {
		m := int(row.DelayMinutes.Int64)
		d.DelayMinutes = &m
	}
	return d
}

func (r *doseRepoSQLite) CreatePrescription(ctx context.Context, p *Prescription, doses []*Dose) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO prescriptions (id, user_id, medicine_name, dosage, instructions,
			frequency_hours, starts_at, total_doses, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Medicine.Name, p.Medicine.Dosage, p.Medicine.Instructions,
		p.Medicine.FrequencyHours, p.StartsAt.UTC(), p.TotalDoses, p.CreatedAt.UTC()); err != nil {
		return err
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO medication_doses (id, prescription_id, user_id, medicine_name, dosage,
			instructions, frequency_hours, scheduled_at, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, d := range doses {
		if _, err := stmt.ExecContext(ctx, d.ID, d.PrescriptionID, d.UserID, d.Medicine.Name,
			d.Medicine.Dosage, d.Medicine.Instructions, d.Medicine.FrequencyHours,
			d.ScheduledAt.UTC(), string(d.Status), d.CreatedAt.UTC()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const doseColsSQLite = `id, prescription_id, user_id, medicine_name, dosage, instructions, frequency_hours,
	scheduled_at, status, taken_at, delay_minutes, created_at`

func (r *doseRepoSQLite) GetDose(ctx context.Context, userID string, id uuid.UUID) (*Dose, error) {
	var row doseRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+doseColsSQLite+` FROM medication_doses WHERE id = ? AND user_id = ?`, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toDose(), nil
}

func (r *doseRepoSQLite) list(ctx context.Context, query string, args ...interface{}) ([]*Dose, error) {
	var rows []doseRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	items := make([]*Dose, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toDose())
	}
	return items, nil
}

func (r *doseRepoSQLite) ListByUser(ctx context.Context, userID string, from, to time.Time) ([]*Dose, error) {
	return r.list(ctx, `SELECT `+doseColsSQLite+` FROM medication_doses
		WHERE user_id = ? AND scheduled_at BETWEEN ? AND ?
		ORDER BY scheduled_at, id`, userID, from.UTC(), to.UTC())
}

func (r *doseRepoSQLite) ListScheduledBetween(ctx context.Context, from, to time.Time) ([]*Dose, error) {
	return r.list(ctx, `SELECT `+doseColsSQLite+` FROM medication_doses
		WHERE status = 'scheduled' AND scheduled_at BETWEEN ? AND ?
		ORDER BY scheduled_at, id`, from.UTC(), to.UTC())
}

func (r *doseRepoSQLite) MarkTaken(ctx context.Context, userID string, id uuid.UUID, takenAt time.Time, delayMinutes int) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE medication_doses SET status = 'taken', taken_at = ?, delay_minutes = ?
		WHERE id = ? AND user_id = ? AND status <> 'taken'`,
		takenAt.UTC(), delayMinutes, id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
