package credential

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultQuotaCooldown applies when the provider gives no retry-after hint.
const DefaultQuotaCooldown = 5 * time.Minute

// QuotaExceededRecord marks one credential's quota exhaustion.
type QuotaExceededRecord struct {
	CredentialID string
	ExceededAt   time.Time
	RetryAfter   time.Duration
	Reason       string
}

// Expired reports whether the cooldown window has passed.
func (r QuotaExceededRecord) Expired(now time.Time) bool {
	return now.After(r.ExceededAt.Add(r.RetryAfter))
}

// QuotaManager tracks quota-exhausted credentials and expires the records
// after their cooldown. Safe for concurrent use.
type QuotaManager struct {
	mu      sync.Mutex
	logger  *slog.Logger
	records map[string]QuotaExceededRecord
}

func NewQuotaManager(logger *slog.Logger) *QuotaManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuotaManager{
		logger:  logger,
		records: make(map[string]QuotaExceededRecord),
	}
}

// MarkExceeded records quota exhaustion. A zero retryAfter falls back to
// the default cooldown.
func (q *QuotaManager) MarkExceeded(credentialID, reason string, retryAfter time.Duration) {
	if retryAfter <= 0 {
		retryAfter = DefaultQuotaCooldown
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.records[credentialID] = QuotaExceededRecord{
		CredentialID: credentialID,
		ExceededAt:   time.Now(),
		RetryAfter:   retryAfter,
		Reason:       reason,
	}

	q.logger.Warn("Credential quota exceeded",
		"credential", credentialID,
		"retry_after", retryAfter,
		"reason", reason,
	)
}

// IsExceeded reports whether the credential is still cooling off. Expired
// records are removed on the way.
func (q *QuotaManager) IsExceeded(credentialID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	record, ok := q.records[credentialID]
	if !ok {
		return false
	}
	if record.Expired(time.Now()) {
		delete(q.records, credentialID)
		return false
	}
	return true
}

// Clear removes any record for the credential, typically after a success.
func (q *QuotaManager) Clear(credentialID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.records, credentialID)
}

// ExceededCount returns how many credentials are currently cooling off.
func (q *QuotaManager) ExceededCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	count := 0
	for id, record := range q.records {
		if record.Expired(now) {
			delete(q.records, id)
			continue
		}
		count++
	}
	return count
}

// Cleanup drops all expired records and returns how many were removed.
func (q *QuotaManager) Cleanup() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, record := range q.records {
		if record.Expired(now) {
			delete(q.records, id)
			removed++
		}
	}
	return removed
}

// RunCleanup expires records on the given interval until the context is
// cancelled.
func (q *QuotaManager) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := q.Cleanup(); removed > 0 {
				q.logger.Debug("Expired quota records", "removed", removed)
			}
		}
	}
}
