package db

type sqliteMigration struct {
	version int
	sql     string
}

// sqliteMigrations mirrors migrations/*.sql for the embedded store.
var sqliteMigrations = []sqliteMigration{
	{
		version: 1,
		sql: `
CREATE TABLE reminders (
	id            TEXT PRIMARY KEY,
	owner_user_id TEXT NOT NULL,
	type          TEXT NOT NULL,
	message       TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'pending'
	              CHECK (status IN ('pending','info','completed','snoozed','cancelled')),
	priority      TEXT CHECK (priority IS NULL OR priority IN ('critical','high','medium','low')),
	trigger_date  DATETIME,
	link          TEXT,
	semantic_key  TEXT,
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL
);
CREATE INDEX idx_reminders_owner ON reminders (owner_user_id, created_at);
CREATE UNIQUE INDEX uq_reminders_open_key ON reminders (owner_user_id, semantic_key)
	WHERE semantic_key IS NOT NULL AND status IN ('pending','snoozed','info');

CREATE TABLE custom_alerts (
	id            TEXT PRIMARY KEY,
	owner_user_id TEXT NOT NULL,
	type          TEXT NOT NULL,
	message       TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'pending'
	              CHECK (status IN ('pending','info','completed','snoozed','cancelled')),
	priority      TEXT CHECK (priority IS NULL OR priority IN ('critical','high','medium','low')),
	is_read       BOOLEAN NOT NULL DEFAULT 0,
	trigger_date  DATETIME,
	link          TEXT,
	semantic_key  TEXT,
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL
);
CREATE INDEX idx_custom_alerts_owner ON custom_alerts (owner_user_id, created_at);
CREATE UNIQUE INDEX uq_custom_alerts_open_key ON custom_alerts (owner_user_id, semantic_key)
	WHERE semantic_key IS NOT NULL AND status IN ('pending','snoozed','info');

CREATE TABLE prescriptions (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	medicine_name   TEXT NOT NULL,
	dosage          TEXT NOT NULL,
	instructions    TEXT,
	frequency_hours INTEGER NOT NULL,
	starts_at       DATETIME NOT NULL,
	total_doses     INTEGER NOT NULL,
	created_at      DATETIME NOT NULL
);

CREATE TABLE medication_doses (
	id              TEXT PRIMARY KEY,
	prescription_id TEXT NOT NULL REFERENCES prescriptions(id),
	user_id         TEXT NOT NULL,
	medicine_name   TEXT NOT NULL,
	dosage          TEXT NOT NULL,
	instructions    TEXT,
	frequency_hours INTEGER NOT NULL,
	scheduled_at    DATETIME NOT NULL,
	status          TEXT NOT NULL DEFAULT 'scheduled'
	                CHECK (status IN ('scheduled','taken','missed','pending')),
	taken_at        DATETIME,
	delay_minutes   INTEGER,
	created_at      DATETIME NOT NULL
);
CREATE INDEX idx_medication_doses_user ON medication_doses (user_id, scheduled_at);
CREATE INDEX idx_medication_doses_due ON medication_doses (scheduled_at) WHERE status = 'scheduled';

CREATE TABLE documents (
	id            TEXT PRIMARY KEY,
	owner_user_id TEXT NOT NULL,
	label         TEXT NOT NULL,
	expires_at    DATETIME
);
CREATE TABLE insurance_policies (
	id            TEXT PRIMARY KEY,
	owner_user_id TEXT NOT NULL,
	label         TEXT NOT NULL,
	expires_at    DATETIME
);
CREATE TABLE vaccines (
	id            TEXT PRIMARY KEY,
	owner_user_id TEXT NOT NULL,
	label         TEXT NOT NULL,
	next_dose_at  DATETIME
);

CREATE TABLE notification_preferences (
	user_id          TEXT PRIMARY KEY,
	display_name     TEXT,
	phone            TEXT,
	whatsapp_enabled BOOLEAN NOT NULL DEFAULT 0,
	sms_enabled      BOOLEAN NOT NULL DEFAULT 0,
	created_at       DATETIME NOT NULL,
	updated_at       DATETIME NOT NULL
);

CREATE TABLE notification_send_records (
	record_key          TEXT PRIMARY KEY,
	subject_id          TEXT NOT NULL,
	guard_key           TEXT NOT NULL,
	channel             TEXT NOT NULL,
	calendar_day        TEXT NOT NULL,
	status              TEXT NOT NULL CHECK (status IN ('claimed','sent','failed')),
	provider_message_id TEXT,
	error               TEXT,
	claimed_at          DATETIME NOT NULL,
	sent_at             DATETIME
);
CREATE INDEX idx_send_records_day ON notification_send_records (calendar_day);
`,
	},
}
