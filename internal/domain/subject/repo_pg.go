package subject

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/alerting/internal/platform/db"
)

type subjectRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &subjectRepoPG{pool: pool}
}

func (r *subjectRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

func (r *subjectRepoPG) ListDueBetween(ctx context.Context, kind Kind, from, to time.Time) ([]ExpiringSubject, error) {
	ki, err := info(kind)
	if err != nil {
		return nil, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id::text, owner_user_id, label, `+ki.dateColumn+`
		FROM `+ki.table+`
		WHERE `+ki.dateColumn+` >= $1 AND `+ki.dateColumn+` < $2
		ORDER BY `+ki.dateColumn+`, id`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ExpiringSubject
	for rows.Next() {
		s := ExpiringSubject{Kind: kind}
		if err := rows.Scan(&s.ID, &s.OwnerUserID, &s.Label, &s.DueAt); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}
