// Package query filters history snapshots with expr-lang expressions such as
// `trace_type == "mac" && hop_count > 3`.
package query

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"tracesim/pkg/faults"
	"tracesim/pkg/model"
)

// Record is the environment a filter is evaluated against.
type Record struct {
	ID          int64     `expr:"id"`
	Source      string    `expr:"source"`
	Destination string    `expr:"destination"`
	TraceType   string    `expr:"trace_type"`
	User        string    `expr:"user"`
	HopCount    int       `expr:"hop_count"`
	Timestamp   time.Time `expr:"timestamp"`
}

// RecordOf projects a history entry. Entries whose route blob cannot be
// decoded report zero hops.
func RecordOf(e model.HistoryEntry) Record {
	return Record{
		ID:          e.ID,
		Source:      e.Source,
		Destination: e.Destination,
		TraceType:   string(e.TraceType),
		User:        e.Owner.Username,
		HopCount:    hopCount(e.Route),
		Timestamp:   e.Timestamp,
	}
}

func hopCount(route string) int {
	if route == "" {
		return 0
	}
	var hops []struct{}
	if err := sonic.UnmarshalString(route, &hops); err != nil {
		return 0
	}
	return len(hops)
}

// Filter is a compiled boolean expression. A nil Filter matches everything.
type Filter struct {
	source  string
	program *vm.Program
}

func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.source
}

// Apply returns the entries that match, preserving order.
func (f *Filter) Apply(entries []model.HistoryEntry) ([]model.HistoryEntry, error) {
	if f == nil {
		return entries, nil
	}
	out := make([]model.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		v, err := expr.Run(f.program, RecordOf(e))
		if err != nil {
			return nil, faults.InvalidRequest("filter", err.Error())
		}
		if ok, _ := v.(bool); ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// Compiler compiles filters and keeps up to max of them.
type Compiler struct {
	mu    sync.RWMutex
	max   int
	items map[string]*Filter
}

func NewCompiler(max int) *Compiler {
	return &Compiler{
		max:   max,
		items: make(map[string]*Filter, max),
	}
}

// Compile returns nil for an empty source. Syntax and type errors are
// reported as an InvalidRequest on field "filter".
func (c *Compiler) Compile(source string) (*Filter, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, nil
	}
	key := hash(source)

	c.mu.RLock()
	if f, ok := c.items[key]; ok {
		c.mu.RUnlock()
		return f, nil
	}
	c.mu.RUnlock()

	program, err := expr.Compile(source, expr.Env(Record{}), expr.AsBool())
	if err != nil {
		return nil, faults.InvalidRequest("filter", fmt.Sprintf("cannot compile %q: %v", source, err))
	}
	f := &Filter{source: source, program: program}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.items) < c.max {
		c.items[key] = f
	}
	return f, nil
}

// Len returns the number of cached filters.
func (c *Compiler) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
