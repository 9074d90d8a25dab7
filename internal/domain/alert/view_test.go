package alert

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func mkAlert(src Source, typ Type, msg string, p Priority, created time.Time) *Alert {
	a := &Alert{
		ID:          uuid.New(),
		Source:      src,
		OwnerUserID: "u1",
		Type:        typ,
		Message:     msg,
		Status:      StatusPending,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	if p != "" {
		a.Priority = priorityPtr(p)
	}
	return a
}

func TestBuildView_MergesAndOrders(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	reminders := []*Alert{
		mkAlert(SourceReminder, TypeDocumentReminder, "Pasaporte vence", PriorityHigh, base.Add(1*time.Hour)),
		mkAlert(SourceReminder, TypeVaccine, "Vacuna influenza", PriorityMedium, base.Add(3*time.Hour)),
	}
	custom := []*Alert{
		mkAlert(SourceCustomAlert, TypeCustom, "Llamar al doctor", PriorityLow, base.Add(2*time.Hour)),
	}

	items := BuildView(base.Add(24*time.Hour), Filter{}, reminders, custom)
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	want := []string{"Vacuna influenza", "Llamar al doctor", "Pasaporte vence"}
	for i, msg := range want {
		if items[i].Message != msg {
			t.Errorf("items[%d] = %q, want %q", i, items[i].Message, msg)
		}
	}
}

func TestBuildView_Filters(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	now := base.Add(24 * time.Hour)
	snoozeUntil := now.Add(time.Hour)

	doc := mkAlert(SourceReminder, TypeDocumentReminder, "Tu PASAPORTE vence", PriorityHigh, base)
	vac := mkAlert(SourceReminder, TypeVaccine, "Vacuna", PriorityHigh, base.Add(time.Minute))
	vac.Status = StatusSnoozed
	vac.TriggerDate = &snoozeUntil
	note := mkAlert(SourceCustomAlert, TypeCustom, "pasaporte renovado", PriorityLow, base.Add(2*time.Minute))

	sources := [][]*Alert{{doc, vac}, {note}}
	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"none", Filter{}, 3},
		{"query is case insensitive", Filter{Query: "pasaporte"}, 2},
		{"query and priority", Filter{Query: "pasaporte", Priority: PriorityHigh}, 1},
		{"type", Filter{Type: TypeVaccine}, 1},
		{"display status snoozed", Filter{Status: StatusSnoozed}, 1},
		{"display status pending", Filter{Status: StatusPending}, 2},
		{"source", Filter{Source: SourceCustomAlert}, 1},
		{"no match", Filter{Query: "cita"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildView(now, tt.filter, sources...); len(got) != tt.want {
				t.Errorf("expected %d items, got %d", tt.want, len(got))
			}
		})
	}
}

func TestGroupByPriority(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	var rows []*Alert
	for i, p := range []Priority{PriorityCritical, PriorityLow, PriorityHigh, PriorityHigh, PriorityMedium} {
		rows = append(rows, mkAlert(SourceReminder, TypeDocumentReminder, "x", p, base.Add(time.Duration(i)*time.Minute)))
	}
	rows = append(rows, mkAlert(SourceCustomAlert, TypeFamilyActivity, "sin prioridad", "", base))

	groups := GroupByPriority(BuildView(base.Add(time.Hour), Filter{}, rows))
	want := []struct {
		p        Priority
		count    int
		expanded bool
	}{
		{PriorityCritical, 1, true},
		{PriorityHigh, 2, true},
		{PriorityMedium, 1, false},
		{PriorityLow, 1, false},
	}
	if len(groups) != len(want) {
		t.Fatalf("expected %d groups, got %d", len(want), len(groups))
	}
	for i, w := range want {
		g := groups[i]
		if g.Priority != w.p || g.Count != w.count || g.Expanded != w.expanded {
			t.Errorf("group %d = {%s %d %v}, want {%s %d %v}", i, g.Priority, g.Count, g.Expanded, w.p, w.count, w.expanded)
		}
		if len(g.Items) != g.Count {
			t.Errorf("group %s has %d items but count %d", g.Priority, len(g.Items), g.Count)
		}
	}
}

func TestGroupByPriority_OmitsEmptyBuckets(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := []*Alert{mkAlert(SourceReminder, TypeVaccine, "x", PriorityMedium, base)}
	groups := GroupByPriority(BuildView(base, Filter{}, rows))
	if len(groups) != 1 || groups[0].Priority != PriorityMedium {
		t.Fatalf("expected only the medium group, got %+v", groups)
	}
	if GroupByPriority(nil) == nil {
		t.Error("expected empty, non-nil slice")
	}
}

func TestSemanticKey(t *testing.T) {
	if got := SemanticKey(TypeDocumentReminder, "doc-1", ""); got != "documentReminder:doc-1" {
		t.Errorf("unexpected key %q", got)
	}
	if got := SemanticKey(TypeMedication, "rx-1", "dose-9"); got != "medication:rx-1:dose-9" {
		t.Errorf("unexpected key %q", got)
	}
}
