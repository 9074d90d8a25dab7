package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ehr/alerting/internal/platform/gateway"
)

type RecordStatus string

const (
	RecordClaimed RecordStatus = "claimed"
	RecordSent    RecordStatus = "sent"
	RecordFailed  RecordStatus = "failed"
)

// SendKey identifies one logical notification: a subject, the threshold or
// window that fired, the channel and the calendar day.
type SendKey struct {
	SubjectID string
	GuardKey  string
	Channel   gateway.Channel
	Day       string
}

func (k SendKey) String() string {
	return strings.Join([]string{k.SubjectID, k.GuardKey, string(k.Channel), k.Day}, "|")
}

var ErrRecordMissing = errors.New("send record not found")

func errRecordMissing(k SendKey) error {
	return fmt.Errorf("%w: %s", ErrRecordMissing, k)
}

// Record is a stored send record.
type Record struct {
	Key               SendKey
	Status            RecordStatus
	ProviderMessageID string
	Error             string
	ClaimedAt         time.Time
	SentAt            *time.Time
}

// Ledger stores send records. Claim must be atomic: of any number of
// concurrent claims for one key, at most one succeeds. A failed record can
// be claimed again by a later run.
type Ledger interface {
	Claim(ctx context.Context, key SendKey, at time.Time) (bool, error)
	MarkSent(ctx context.Context, key SendKey, messageID string, at time.Time) error
	MarkFailed(ctx context.Context, key SendKey, reason string) error
}

// MemoryLedger keeps records in process memory. Used in tests and in
// development when no database ledger is configured.
type MemoryLedger struct {
	mu      sync.Mutex
	records map[string]*Record
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{records: make(map[string]*Record)}
}

func (l *MemoryLedger) Claim(_ context.Context, key SendKey, at time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r, ok := l.records[key.String()]; ok && r.Status != RecordFailed {
		return false, nil
	}
	l.records[key.String()] = &Record{Key: key, Status: RecordClaimed, ClaimedAt: at}
	return true, nil
}

func (l *MemoryLedger) MarkSent(_ context.Context, key SendKey, messageID string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.records[key.String()]
	if !ok {
		return errRecordMissing(key)
	}
	r.Status = RecordSent
	r.ProviderMessageID = messageID
	r.SentAt = &at
	return nil
}

func (l *MemoryLedger) MarkFailed(_ context.Context, key SendKey, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.records[key.String()]
	if !ok {
		return errRecordMissing(key)
	}
	r.Status = RecordFailed
	r.Error = reason
	return nil
}

// Records returns a snapshot of every record.
func (l *MemoryLedger) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, 0, len(l.records))
	for _, r := range l.records {
		out = append(out, *r)
	}
	return out
}
