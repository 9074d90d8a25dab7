package alert

// Group is one priority bucket of the grouped view.
type Group struct {
	Priority Priority `json:"priority"`
	Count    int      `json:"count"`
	Expanded bool     `json:"expanded"`
	Items    []Item   `json:"items"`
}

// GroupByPriority buckets items critical, high, medium, low. Items without a
// priority are left out and empty buckets are omitted. Critical and high
// start expanded.
func GroupByPriority(items []Item) []Group {
	buckets := make(map[Priority][]Item, len(priorityOrder))
	for _, it := range items {
		if it.Priority == nil {
			continue
		}
		buckets[*it.Priority] = append(buckets[*it.Priority], it)
	}

	groups := make([]Group, 0, len(priorityOrder))
	for _, p := range priorityOrder {
		bucket := buckets[p]
		if len(bucket) == 0 {
			continue
		}
		groups = append(groups, Group{
			Priority: p,
			Count:    len(bucket),
			Expanded: p == PriorityCritical || p == PriorityHigh,
			Items:    bucket,
		})
	}
	return groups
}
