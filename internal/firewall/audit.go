package firewall

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ledgerguard/copilot/internal/core/domain"
	"github.com/ledgerguard/copilot/internal/core/ports"
)

const (
	// maxParamValueLength caps every string recorded in the audit log.
	maxParamValueLength = 100

	auditQueueDepth   = 256
	auditAppendWithin = 5 * time.Second
)

// redactedKeySubstrings marks parameter keys whose values never reach the
// audit log verbatim.
var redactedKeySubstrings = []string{"password", "api_key", "apikey", "token", "secret", "credential"}

const redactedPlaceholder = "[REDACTED]"

// sanitizeParams returns an audit-safe copy of tool parameters: secret-ish
// keys redacted, long strings truncated. The input map is never mutated.
func sanitizeParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for key, value := range params {
		if isRedactedKey(key) {
			out[key] = redactedPlaceholder
			continue
		}
		out[key] = sanitizeValue(value)
	}
	return out
}

func sanitizeValue(value any) any {
	switch v := value.(type) {
	case string:
		return truncateForAudit(v)
	case map[string]any:
		return sanitizeParams(v)
	case []any:
		items := make([]any, len(v))
		for i, item := range v {
			items[i] = sanitizeValue(item)
		}
		return items
	default:
		return v
	}
}

func isRedactedKey(key string) bool {
	lower := strings.ToLower(key)
	for _, marker := range redactedKeySubstrings {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func truncateForAudit(s string) string {
	if len(s) <= maxParamValueLength {
		return s
	}
	return s[:maxParamValueLength] + "..."
}

type auditJob struct {
	entry  domain.AuditEntry
	result chan error
}

// auditWriter serializes all appends through one goroutine so the
// append-only log keeps a single total order regardless of caller
// concurrency. Every append reports its outcome back to the caller.
type auditWriter struct {
	store ports.AuditStore
	jobs  chan auditJob
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

func newAuditWriter(store ports.AuditStore) *auditWriter {
	w := &auditWriter{
		store: store,
		jobs:  make(chan auditJob, auditQueueDepth),
		done:  make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *auditWriter) loop() {
	defer close(w.done)
	for job := range w.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), auditAppendWithin)
		job.result <- w.store.Append(ctx, job.entry)
		cancel()
	}
}

// append blocks until the entry is durably handed to the store or the
// caller's context expires. Appends racing a shutdown fail instead of
// reaching a closed queue.
func (w *auditWriter) append(ctx context.Context, entry domain.AuditEntry) error {
	job := auditJob{entry: entry, result: make(chan error, 1)}
	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return fmt.Errorf("enqueue audit entry: writer closed")
	}
	select {
	case w.jobs <- job:
		w.mu.RUnlock()
	case <-ctx.Done():
		w.mu.RUnlock()
		return fmt.Errorf("enqueue audit entry: %w", ctx.Err())
	}
	select {
	case err := <-job.result:
		if err != nil {
			return fmt.Errorf("append audit entry: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("await audit append: %w", ctx.Err())
	}
}

func (w *auditWriter) Close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.jobs)
	}
	w.mu.Unlock()
	<-w.done
}
