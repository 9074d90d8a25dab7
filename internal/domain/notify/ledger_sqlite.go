package notify

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ehr/alerting/internal/platform/gateway"
)

type ledgerSQLite struct{ db *sqlx.DB }

func NewLedgerSQLite(db *sqlx.DB) Ledger {
	return &ledgerSQLite{db: db}
}

func affected(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (l *ledgerSQLite) Claim(ctx context.Context, key SendKey, at time.Time) (bool, error) {
	n, err := affected(l.db.ExecContext(ctx, `
		INSERT INTO notification_send_records (record_key, subject_id, guard_key, channel,
			calendar_day, status, claimed_at)
		VALUES (?, ?, ?, ?, ?, 'claimed', ?)
		ON CONFLICT (record_key) DO UPDATE SET
			status = 'claimed', claimed_at = excluded.claimed_at, error = NULL
		WHERE notification_send_records.status = 'failed'`,
		key.String(), key.SubjectID, key.GuardKey, string(key.Channel), key.Day, at.UTC()))
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (l *ledgerSQLite) MarkSent(ctx context.Context, key SendKey, messageID string, at time.Time) error {
	n, err := affected(l.db.ExecContext(ctx, `
		UPDATE notification_send_records
		SET status = 'sent', provider_message_id = ?, sent_at = ?, error = NULL
		WHERE record_key = ?`, messageID, at.UTC(), key.String()))
	if err != nil {
		return err
	}
	if n == 0 {
		return errRecordMissing(key)
	}
	return nil
}

func (l *ledgerSQLite) MarkFailed(ctx context.Context, key SendKey, reason string) error {
	n, err := affected(l.db.ExecContext(ctx, `
		UPDATE notification_send_records SET status = 'failed', error = ?
		WHERE record_key = ?`, reason, key.String()))
	if err != nil {
		return err
	}
	if n == 0 {
		return errRecordMissing(key)
	}
	return nil
}

type recordRow struct {
	RecordKey         string         `db:"record_key"`
	SubjectID         string         `db:"subject_id"`
	GuardKey          string         `db:"guard_key"`
	Channel           string         `db:"channel"`
	CalendarDay       string         `db:"calendar_day"`
	Status            string         `db:"status"`
	ProviderMessageID sql.NullString `db:"provider_message_id"`
	Error             sql.NullString `db:"error"`
	ClaimedAt         time.Time      `db:"claimed_at"`
	SentAt            sql.NullTime   `db:"sent_at"`
}

// Records lists the stored records for a subject, oldest claim first.
func (l *ledgerSQLite) Records(ctx context.Context, subjectID string) ([]Record, error) {
	var rows []recordRow
	if err := l.db.SelectContext(ctx, &rows, `
		SELECT record_key, subject_id, guard_key, channel, calendar_day, status,
			provider_message_id, error, claimed_at, sent_at
		FROM notification_send_records WHERE subject_id = ?
		ORDER BY claimed_at, record_key`, subjectID); err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		r := Record{
			Key: SendKey{
				SubjectID: row.SubjectID,
				GuardKey:  row.GuardKey,
				Channel:   gateway.Channel(row.Channel),
				Day:       row.CalendarDay,
			},
			Status:            RecordStatus(row.Status),
			ProviderMessageID: row.ProviderMessageID.String,
			Error:             row.Error.String,
			ClaimedAt:         row.ClaimedAt,
		}
		if row.SentAt.Valid {
			t := row.SentAt.Time
			r.SentAt = &t
		}
		out = append(out, r)
	}
	return out, nil
}
