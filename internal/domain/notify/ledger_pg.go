package notify

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/alerting/internal/platform/db"
)

type ledgerPG struct{ pool *pgxpool.Pool }

// NewLedgerPG stores send records in notification_send_records.
func NewLedgerPG(pool *pgxpool.Pool) Ledger {
	return &ledgerPG{pool: pool}
}

func (l *ledgerPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, l.pool)
}

func (l *ledgerPG) Claim(ctx context.Context, key SendKey, at time.Time) (bool, error) {
	tag, err := l.conn(ctx).Exec(ctx, `
		INSERT INTO notification_send_records (record_key, subject_id, guard_key, channel,
			calendar_day, status, claimed_at)
		VALUES ($1, $2, $3, $4, $5::date, 'claimed', $6)
		ON CONFLICT (record_key) DO UPDATE SET
			status = 'claimed', claimed_at = EXCLUDED.claimed_at, error = NULL
		WHERE notification_send_records.status = 'failed'`,
		key.String(), key.SubjectID, key.GuardKey, string(key.Channel), key.Day, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (l *ledgerPG) MarkSent(ctx context.Context, key SendKey, messageID string, at time.Time) error {
	tag, err := l.conn(ctx).Exec(ctx, `
		UPDATE notification_send_records
		SET status = 'sent', provider_message_id = $2, sent_at = $3, error = NULL
		WHERE record_key = $1`, key.String(), messageID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errRecordMissing(key)
	}
	return nil
}

func (l *ledgerPG) MarkFailed(ctx context.Context, key SendKey, reason string) error {
	tag, err := l.conn(ctx).Exec(ctx, `
		UPDATE notification_send_records SET status = 'failed', error = $2
		WHERE record_key = $1`, key.String(), reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errRecordMissing(key)
	}
	return nil
}
