package model

import "time"

// Owner is the identity snapshot stored with a history entry.
type Owner struct {
	Username string `json:"username"`
}

// HistoryEntry is one recorded trace. Entries are never mutated after creation;
// Route and InputContext are opaque serialized blobs and are not re-validated on read.
type HistoryEntry struct {
	ID           int64     `json:"id"`
	Source       string    `json:"source"`
	Destination  string    `json:"destination"`
	TraceType    TraceType `json:"trace_type"`
	Timestamp    time.Time `json:"timestamp"`
	Owner        Owner     `json:"user"`
	Route        string    `json:"route"`
	InputContext string    `json:"device_additional_info,omitempty"`
}
