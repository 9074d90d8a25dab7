package subject

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

type subjectRepoSQLite struct{ db *sqlx.DB }

func NewRepoSQLite(db *sqlx.DB) Repository {
	return &subjectRepoSQLite{db: db}
}

func (r *subjectRepoSQLite) ListDueBetween(ctx context.Context, kind Kind, from, to time.Time) ([]ExpiringSubject, error) {
	ki, err := info(kind)
	if err != nil {
		return nil, err
	}
	var items []ExpiringSubject
	err = r.db.SelectContext(ctx, &items, `
		SELECT id, owner_user_id, label, `+ki.dateColumn+` AS due_at
		FROM `+ki.table+`
		WHERE `+ki.dateColumn+` >= ? AND `+ki.dateColumn+` < ?
		ORDER BY `+ki.dateColumn+`, id`, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Kind = kind
	}
	return items, nil
}
