package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository persists alerts in their backing tables. Every method that
// takes a Source addresses exactly one table.
type Repository interface {
	// Insert writes a new alert unless an open alert with the same owner and
	// semantic key exists. It reports whether a row was written.
	Insert(ctx context.Context, a *Alert) (bool, error)
	Get(ctx context.Context, src Source, ownerUserID string, id uuid.UUID) (*Alert, error)
	ListByOwner(ctx context.Context, src Source, ownerUserID string) ([]*Alert, error)
	// Transition moves a row to status "to" only if it is currently in one
	// of "from". A non-nil trigger replaces trigger_date.
	Transition(ctx context.Context, src Source, ownerUserID string, id uuid.UUID, to Status, from []Status, trigger *time.Time, at time.Time) (bool, error)
	Delete(ctx context.Context, src Source, ownerUserID string, ids []uuid.UUID) (int64, error)
	// MarkRead flags unread custom alerts as read.
	MarkRead(ctx context.Context, ownerUserID string, ids []uuid.UUID, at time.Time) (int64, error)
	MarkAllRead(ctx context.Context, ownerUserID string, at time.Time) (int64, error)
}

var tables = map[Source]string{
	SourceReminder:    "reminders",
	SourceCustomAlert: "custom_alerts",
}

// tableFor maps a source to its table name. Table names are never taken
// from user input directly.
func tableFor(src Source) (string, error) {
	t, ok := tables[src]
	if !ok {
		return "", fmt.Errorf("%w: unknown source %q", ErrValidation, src)
	}
	return t, nil
}

func statusStrings(ss []Status) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
