package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"tracesim/pkg/faults"
	"tracesim/pkg/model"
)

// DefaultCapacity is the number of history entries retained.
const DefaultCapacity = 50

// RecordRequest carries one completed trace to the ledger.
type RecordRequest struct {
	Type         model.TraceType
	Source       string
	Destination  string
	InputContext any
	Owner        model.Identity
	Hops         []model.Hop
}

// Ledger is the process-wide, size-bounded, append-only trace history.
// Restarting the process clears it.
type Ledger struct {
	mu       sync.RWMutex
	capacity int
	counter  int64
	entries  []model.HistoryEntry

	logger  *zap.Logger
	now     func() time.Time
	marshal func(any) ([]byte, error)
	onSize  func(size int, evicted bool)
}

// Option customizes a Ledger.
type Option func(*Ledger)

func WithLogger(l *zap.Logger) Option { return func(lg *Ledger) { lg.logger = l } }

func WithClock(now func() time.Time) Option { return func(lg *Ledger) { lg.now = now } }

// WithMarshaler replaces the blob serializer.
func WithMarshaler(fn func(any) ([]byte, error)) Option {
	return func(lg *Ledger) { lg.marshal = fn }
}

// WithSizeHook is called after every Record, under the ledger lock.
func WithSizeHook(fn func(size int, evicted bool)) Option {
	return func(lg *Ledger) { lg.onSize = fn }
}

func NewLedger(capacity int, opts ...Option) *Ledger {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	l := &Ledger{
		capacity: capacity,
		logger:   zap.NewNop(),
		now:      time.Now,
		marshal:  sonic.Marshal,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Capacity returns the retention bound.
func (l *Ledger) Capacity() int { return l.capacity }

// Record appends a new entry and returns its id. Serialization failures are
// logged and leave the affected blob empty; the entry is still created.
func (l *Ledger) Record(req RecordRequest) int64 {
	route := l.encode("route", req.Hops)
	input := ""
	if req.InputContext != nil {
		input = l.encode("device_additional_info", req.InputContext)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.counter++
	entry := model.HistoryEntry{
		ID:           l.counter,
		Source:       req.Source,
		Destination:  req.Destination,
		TraceType:    req.Type,
		Timestamp:    l.now().UTC(),
		Owner:        model.Owner{Username: req.Owner.Username()},
		Route:        route,
		InputContext: input,
	}
	l.entries = append(l.entries, entry)
	evicted := false
	if len(l.entries) > l.capacity {
		l.entries = l.entries[len(l.entries)-l.capacity:]
		evicted = true
	}
	if l.onSize != nil {
		l.onSize(len(l.entries), evicted)
	}
	l.logger.Debug("trace recorded",
		zap.Int64("id", entry.ID),
		zap.String("trace_type", string(entry.TraceType)),
		zap.String("user", entry.Owner.Username),
		zap.Bool("evicted", evicted),
	)
	return entry.ID
}

func (l *Ledger) encode(field string, v any) (out string) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("history serialization panicked", zap.String("field", field), zap.Any("panic", r))
			out = ""
		}
	}()
	b, err := l.marshal(v)
	if err != nil {
		l.logger.Error("history serialization failed",
			zap.Error(&faults.SerializationError{Field: field, Err: err}))
		return ""
	}
	return string(b)
}

// ListForOwner returns the entries owned by username (case-insensitive),
// newest first.
func (l *Ledger) ListForOwner(username string) []model.HistoryEntry {
	l.mu.RLock()
	out := make([]model.HistoryEntry, 0, len(l.entries))
	for _, e := range l.entries {
		if strings.EqualFold(e.Owner.Username, username) {
			out = append(out, e)
		}
	}
	l.mu.RUnlock()
	sortNewestFirst(out)
	return out
}

// ListAll returns every retained entry, newest first.
func (l *Ledger) ListAll() []model.HistoryEntry {
	l.mu.RLock()
	out := append([]model.HistoryEntry(nil), l.entries...)
	l.mu.RUnlock()
	sortNewestFirst(out)
	return out
}

// Len returns the number of retained entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func sortNewestFirst(entries []model.HistoryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].ID > entries[j].ID
		}
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
}
