package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/alerting/internal/platform/db"
)

type alertRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &alertRepoPG{pool: pool}
}

func (r *alertRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const alertCols = `id, owner_user_id, type, message, status, priority, %s, trigger_date, link, semantic_key, created_at, updated_at`

func selectCols(src Source) string {
	if src == SourceCustomAlert {
		return fmt.Sprintf(alertCols, "is_read")
	}
	return fmt.Sprintf(alertCols, "FALSE")
}

func scanAlertPG(row pgx.Row, src Source) (*Alert, error) {
	var (
		a           Alert
		typ, status string
		priority    *string
	)
	err := row.Scan(&a.ID, &a.OwnerUserID, &typ, &a.Message, &status, &priority, &a.IsRead,
		&a.TriggerDate, &a.Link, &a.SemanticKey, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Source = src
	a.Type = Type(typ)
	a.Status = Status(status)
	if priority != nil {
		a.Priority = priorityPtr(Priority(*priority))
	}
	return &a, nil
}

func (r *alertRepoPG) Insert(ctx context.Context, a *Alert) (bool, error) {
	table, err := tableFor(a.Source)
	if err != nil {
		return false, err
	}
	var priority *string
	if a.Priority != nil {
		p := string(*a.Priority)
		priority = &p
	}

	var query string
	args := []interface{}{a.ID, a.OwnerUserID, string(a.Type), a.Message, string(a.Status), priority,
		a.TriggerDate, a.Link, a.SemanticKey, a.CreatedAt, a.UpdatedAt}
	if a.Source == SourceCustomAlert {
		query = `INSERT INTO custom_alerts (id, owner_user_id, type, message, status, priority,
			trigger_date, link, semantic_key, created_at, updated_at, is_read)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
			ON CONFLICT DO NOTHING`
		args = append(args, a.IsRead)
	} else {
		query = `INSERT INTO ` + table + ` (id, owner_user_id, type, message, status, priority,
			trigger_date, link, semantic_key, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			ON CONFLICT DO NOTHING`
	}

	tag, err := r.conn(ctx).Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *alertRepoPG) Get(ctx context.Context, src Source, ownerUserID string, id uuid.UUID) (*Alert, error) {
	table, err := tableFor(src)
	if err != nil {
		return nil, err
	}
	a, err := scanAlertPG(r.conn(ctx).QueryRow(ctx,
		`SELECT `+selectCols(src)+` FROM `+table+` WHERE id = $1 AND owner_user_id = $2`, id, ownerUserID), src)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

func (r *alertRepoPG) ListByOwner(ctx context.Context, src Source, ownerUserID string) ([]*Alert, error) {
	table, err := tableFor(src)
	if err != nil {
		return nil, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+selectCols(src)+` FROM `+table+` WHERE owner_user_id = $1 ORDER BY created_at DESC`, ownerUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Alert
	for rows.Next() {
		a, err := scanAlertPG(rows, src)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *alertRepoPG) Transition(ctx context.Context, src Source, ownerUserID string, id uuid.UUID, to Status, from []Status, trigger *time.Time, at time.Time) (bool, error) {
	table, err := tableFor(src)
	if err != nil {
		return false, err
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE `+table+` SET status = $1, trigger_date = COALESCE($2::timestamptz, trigger_date), updated_at = $3
		WHERE id = $4 AND owner_user_id = $5 AND status = ANY($6)`,
		string(to), trigger, at, id, ownerUserID, statusStrings(from))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *alertRepoPG) Delete(ctx context.Context, src Source, ownerUserID string, ids []uuid.UUID) (int64, error) {
	table, err := tableFor(src)
	if err != nil {
		return 0, err
	}
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM `+table+` WHERE owner_user_id = $1 AND id = ANY($2::uuid[])`, ownerUserID, idStrings(ids))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *alertRepoPG) MarkRead(ctx context.Context, ownerUserID string, ids []uuid.UUID, at time.Time) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE custom_alerts SET is_read = TRUE, updated_at = $3
		WHERE owner_user_id = $1 AND id = ANY($2::uuid[]) AND is_read = FALSE`,
		ownerUserID, idStrings(ids), at)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *alertRepoPG) MarkAllRead(ctx context.Context, ownerUserID string, at time.Time) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE custom_alerts SET is_read = TRUE, updated_at = $2 WHERE owner_user_id = $1 AND is_read = FALSE`,
		ownerUserID, at)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
