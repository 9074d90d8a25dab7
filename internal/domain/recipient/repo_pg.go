package recipient

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/alerting/internal/platform/db"
)

type prefsRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &prefsRepoPG{pool: pool}
}

func (r *prefsRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

func (r *prefsRepoPG) Get(ctx context.Context, userID string) (*Preferences, error) {
	var (
		p           Preferences
		name, phone *string
	)
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT user_id, display_name, phone, whatsapp_enabled, sms_enabled, created_at, updated_at
		FROM notification_preferences WHERE user_id = $1`, userID).
		Scan(&p.UserID, &name, &phone, &p.WhatsAppEnabled, &p.SMSEnabled, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if name != nil {
		p.DisplayName = *name
	}
	if phone != nil {
		p.Phone = *phone
	}
	return &p, nil
}

func (r *prefsRepoPG) Upsert(ctx context.Context, p *Preferences) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO notification_preferences (user_id, display_name, phone, whatsapp_enabled,
			sms_enabled, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			phone = EXCLUDED.phone,
			whatsapp_enabled = EXCLUDED.whatsapp_enabled,
			sms_enabled = EXCLUDED.sms_enabled,
			updated_at = EXCLUDED.updated_at`,
		p.UserID, p.DisplayName, p.Phone, p.WhatsAppEnabled, p.SMSEnabled, p.CreatedAt, p.UpdatedAt)
	return err
}
