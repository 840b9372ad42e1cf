package domain

import "time"

// AuditEntry records one firewall transaction. Entries are append-only;
// the only deletion path is a whole-workspace purge by the data owner.
type AuditEntry struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	RequestID  string         `json:"request_id"`
	Tool       string         `json:"tool"`
	Params     map[string]any `json:"params"`
	ResultSize int            `json:"result_size"`
	Violation  bool           `json:"violation"`
	Reason     string         `json:"reason,omitempty"`
}
