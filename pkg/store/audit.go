package store

import (
	"context"
	"sync"
	"time"

	"tracesim/pkg/model"
)

// AuditLog persists operations against the simulator. It is separate from
// the history ledger and may be durable.
type AuditLog interface {
	Append(ctx context.Context, entry model.AuditEntry) error
	// List returns up to limit entries, oldest first; limit <= 0 returns all.
	List(ctx context.Context, limit int) ([]model.AuditEntry, error)
	Close() error
}

// MemoryAudit is a bounded in-memory audit log.
type MemoryAudit struct {
	mu       sync.RWMutex
	capacity int
	audit    []model.AuditEntry
}

func NewMemoryAudit(capacity int) *MemoryAudit {
	if capacity < 1 {
		capacity = 500
	}
	return &MemoryAudit{capacity: capacity}
}

func (m *MemoryAudit) Append(_ context.Context, entry model.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	m.audit = append(m.audit, entry)
	if len(m.audit) > m.capacity {
		m.audit = m.audit[len(m.audit)-m.capacity:]
	}
	return nil
}

func (m *MemoryAudit) List(_ context.Context, limit int) ([]model.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > len(m.audit) {
		limit = len(m.audit)
	}
	return append([]model.AuditEntry(nil), m.audit[len(m.audit)-limit:]...), nil
}

func (m *MemoryAudit) Close() error { return nil }
