package recipient

import (
	"context"
	"errors"
	"testing"

	"github.com/ehr/alerting/internal/platform/db/dbtest"
)

func TestRepoSQLite_Upsert(t *testing.T) {
	repo := NewRepoSQLite(dbtest.NewSQLite(t))
	ctx := context.Background()

	if _, err := repo.Get(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	p := &Preferences{UserID: "u1", Phone: "+5215512345678", WhatsAppEnabled: true, CreatedAt: testNow, UpdatedAt: testNow}
	if err := repo.Upsert(ctx, p); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	p.WhatsAppEnabled = false
	p.SMSEnabled = true
	p.DisplayName = "Ana"
	if err := repo.Upsert(ctx, p); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := repo.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.WhatsAppEnabled || !got.SMSEnabled || got.DisplayName != "Ana" || got.Phone != "+5215512345678" {
		t.Errorf("unexpected preferences %+v", got)
	}
	if !got.CreatedAt.Equal(testNow) {
		t.Errorf("expected created_at %s, got %s", testNow, got.CreatedAt)
	}
}
