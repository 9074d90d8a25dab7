package alert

import (
	"sort"
	"strings"
	"time"
)

// Item is an alert as presented in the unified view.
type Item struct {
	*Alert
	DisplayStatus Status `json:"displayStatus"`
	Due           bool   `json:"due"`
}

// Filter narrows the unified view. Empty fields match everything; set
// fields are combined with AND.
type Filter struct {
	Query    string
	Priority Priority
	Type     Type
	Status   Status
	Source   Source
}

func (f Filter) match(it Item) bool {
	if f.Query != "" && !strings.Contains(strings.ToLower(it.Message), strings.ToLower(f.Query)) {
		return false
	}
	if f.Priority != "" && (it.Priority == nil || *it.Priority != f.Priority) {
		return false
	}
	if f.Type != "" && it.Type != f.Type {
		return false
	}
	if f.Status != "" && it.DisplayStatus != f.Status {
		return false
	}
	if f.Source != "" && it.Source != f.Source {
		return false
	}
	return true
}

// BuildView merges alerts from every source into one list, newest first,
// with display status and due flag evaluated at now.
func BuildView(now time.Time, f Filter, sources ...[]*Alert) []Item {
	var items []Item
	for _, rows := range sources {
		for _, a := range rows {
			it := Item{Alert: a, DisplayStatus: DisplayStatus(a, now), Due: IsDue(a, now)}
			if f.match(it) {
				items = append(items, it)
			}
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID.String() < items[j].ID.String()
	})
	return items
}
