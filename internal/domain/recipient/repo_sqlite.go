package recipient

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

type prefsRepoSQLite struct{ db *sqlx.DB }

func NewRepoSQLite(db *sqlx.DB) Repository {
	return &prefsRepoSQLite{db: db}
}

type prefsRow struct {
	UserID          string         `db:"user_id"`
	DisplayName     sql.NullString `db:"display_name"`
	Phone           sql.NullString `db:"phone"`
	WhatsAppEnabled bool           `db:"whatsapp_enabled"`
	SMSEnabled      bool           `db:"sms_enabled"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (r *prefsRepoSQLite) Get(ctx context.Context, userID string) (*Preferences, error) {
	var row prefsRow
	err := r.db.GetContext(ctx, &row, `
		SELECT user_id, display_name, phone, whatsapp_enabled, sms_enabled, created_at, updated_at
		FROM notification_preferences WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &Preferences{
		UserID:          row.UserID,
		DisplayName:     row.DisplayName.String,
		Phone:           row.Phone.String,
		WhatsAppEnabled: row.WhatsAppEnabled,
		SMSEnabled:      row.SMSEnabled,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}, nil
}

func (r *prefsRepoSQLite) Upsert(ctx context.Context, p *Preferences) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notification_preferences (user_id, display_name, phone, whatsapp_enabled,
			sms_enabled, created_at, updated_at)
		VALUES (?, NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			display_name = excluded.display_name,
			phone = excluded.phone,
			whatsapp_enabled = excluded.whatsapp_enabled,
			sms_enabled = excluded.sms_enabled,
			updated_at = excluded.updated_at`,
		p.UserID, p.DisplayName, p.Phone, p.WhatsAppEnabled, p.SMSEnabled, p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	return err
}
