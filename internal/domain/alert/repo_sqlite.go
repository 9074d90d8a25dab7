package alert

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type alertRepoSQLite struct{ db *sqlx.DB }

func NewRepoSQLite(db *sqlx.DB) Repository {
	return &alertRepoSQLite{db: db}
}

type alertRow struct {
	ID          uuid.UUID      `db:"id"`
	OwnerUserID string         `db:"owner_user_id"`
	Type        string         `db:"type"`
	Message     string         `db:"message"`
	Status      string         `db:"status"`
	Priority    sql.NullString `db:"priority"`
	IsRead      bool           `db:"is_read"`
	TriggerDate sql.NullTime   `db:"trigger_date"`
	Link        sql.NullString `db:"link"`
	SemanticKey sql.NullString `db:"semantic_key"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (row alertRow) toAlert(src Source) *Alert {
	a := &Alert{
		ID:          row.ID,
		Source:      src,
		OwnerUserID: row.OwnerUserID,
		Type:        Type(row.Type),
		Message:     row.Message,
		Status:      Status(row.Status),
		IsRead:      row.IsRead,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if row.Priority.Valid {
		a.Priority = priorityPtr(Priority(row.Priority.String))
	}
	if row.TriggerDate.Valid {
		t := row.TriggerDate.Time
		a.TriggerDate = &t
	}
	if row.Link.Valid {
		a.Link = &row.Link.String
	}
	if row.SemanticKey.Valid {
		a.SemanticKey = &row.SemanticKey.String
	}
	return a
}

func sqliteCols(src Source) string {
	if src == SourceCustomAlert {
		return fmt.Sprintf(alertCols, "is_read")
	}
	return fmt.Sprintf(alertCols, "0 AS is_read")
}

func utcPtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func (r *alertRepoSQLite) Insert(ctx context.Context, a *Alert) (bool, error) {
	table, err := tableFor(a.Source)
	if err != nil {
		return false, err
	}
	var priority interface{}
	if a.Priority != nil {
		priority = string(*a.Priority)
	}
	isRead := a.IsRead && a.Source == SourceCustomAlert

	query := `INSERT INTO ` + table + ` (id, owner_user_id, type, message, status, priority,
		trigger_date, link, semantic_key, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT DO NOTHING`
	args := []interface{}{a.ID, a.OwnerUserID, string(a.Type), a.Message, string(a.Status), priority,
		utcPtr(a.TriggerDate), a.Link, a.SemanticKey, a.CreatedAt.UTC(), a.UpdatedAt.UTC()}
	if a.Source == SourceCustomAlert {
		query = `INSERT INTO custom_alerts (id, owner_user_id, type, message, status, priority,
			trigger_date, link, semantic_key, created_at, updated_at, is_read)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
			ON CONFLICT DO NOTHING`
		args = append(args, isRead)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *alertRepoSQLite) Get(ctx context.Context, src Source, ownerUserID string, id uuid.UUID) (*Alert, error) {
	table, err := tableFor(src)
	if err != nil {
		return nil, err
	}
	var row alertRow
	err = r.db.GetContext(ctx, &row,
		`SELECT `+sqliteCols(src)+` FROM `+table+` WHERE id = ? AND owner_user_id = ?`, id, ownerUserID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toAlert(src), nil
}

func (r *alertRepoSQLite) ListByOwner(ctx context.Context, src Source, ownerUserID string) ([]*Alert, error) {
	table, err := tableFor(src)
	if err != nil {
		return nil, err
	}
	var rows []alertRow
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT `+sqliteCols(src)+` FROM `+table+` WHERE owner_user_id = ? ORDER BY created_at DESC`, ownerUserID); err != nil {
		return nil, err
	}
	items := make([]*Alert, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toAlert(src))
	}
	return items, nil
}

func (r *alertRepoSQLite) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *alertRepoSQLite) Transition(ctx context.Context, src Source, ownerUserID string, id uuid.UUID, to Status, from []Status, trigger *time.Time, at time.Time) (bool, error) {
	table, err := tableFor(src)
	if err != nil {
		return false, err
	}
	set := `status = ?, updated_at = ?`
	args := []interface{}{string(to), at.UTC()}
	if trigger != nil {
		set += `, trigger_date = ?`
		args = append(args, trigger.UTC())
	}
	args = append(args, id.String(), ownerUserID, statusStrings(from))

	n, err := r.exec(ctx, `UPDATE `+table+` SET `+set+`
		WHERE id = ? AND owner_user_id = ? AND status IN (?)`, args...)
	return n == 1, err
}

func (r *alertRepoSQLite) Delete(ctx context.Context, src Source, ownerUserID string, ids []uuid.UUID) (int64, error) {
	table, err := tableFor(src)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	return r.exec(ctx, `DELETE FROM `+table+` WHERE owner_user_id = ? AND id IN (?)`, ownerUserID, idStrings(ids))
}

func (r *alertRepoSQLite) MarkRead(ctx context.Context, ownerUserID string, ids []uuid.UUID, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return r.exec(ctx, `
		UPDATE custom_alerts SET is_read = 1, updated_at = ?
		WHERE owner_user_id = ? AND id IN (?) AND is_read = 0`,
		at.UTC(), ownerUserID, idStrings(ids))
}

func (r *alertRepoSQLite) MarkAllRead(ctx context.Context, ownerUserID string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE custom_alerts SET is_read = 1, updated_at = ? WHERE owner_user_id = ? AND is_read = 0`,
		at.UTC(), ownerUserID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
