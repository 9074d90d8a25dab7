package subject

import (
	"context"
	"time"
)

type Repository interface {
	// ListDueBetween returns subjects of kind whose date lies in [from, to).
	ListDueBetween(ctx context.Context, kind Kind, from, to time.Time) ([]ExpiringSubject, error)
}
