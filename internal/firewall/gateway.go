package firewall

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerguard/copilot/internal/core/domain"
	"github.com/ledgerguard/copilot/internal/core/ports"
)

const defaultPreviewCap = 400

// Call outcomes, for metrics and logs.
const (
	OutcomeOK        = "ok"
	OutcomeViolation = "violation"
	OutcomeError     = "error"
)

// CallObserver receives one observation per gateway call.
type CallObserver interface {
	ObserveToolCall(tool, outcome string, resultSize int, elapsed time.Duration)
}

// Gateway is the only path between the reasoning engine and workspace
// data. Every call is admitted against the tool table, validated against
// the tool's schema, scanned for injection, shaped, and audited. The
// response is coupled to the audit append: no entry, no answer.
type Gateway struct {
	tools    map[string]Tool
	order    []string
	audit    *auditWriter
	logger   *slog.Logger
	observer CallObserver
}

func NewGateway(tools []Tool, store ports.AuditStore, logger *slog.Logger, observer CallObserver) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{
		tools:    make(map[string]Tool, len(tools)),
		order:    make([]string, 0, len(tools)),
		audit:    newAuditWriter(store),
		logger:   logger,
		observer: observer,
	}
	for _, tool := range tools {
		g.tools[tool.Name] = tool
		g.order = append(g.order, tool.Name)
	}
	return g
}

// Tools returns the table in registration order, for transport layers
// that advertise the surface.
func (g *Gateway) Tools() []Tool {
	out := make([]Tool, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.tools[name])
	}
	return out
}

func (g *Gateway) Close() {
	g.audit.Close()
}

// Call runs one tool invocation end to end. The returned payload is the
// shaped result, already safe to hand to the reasoning engine.
func (g *Gateway) Call(ctx context.Context, requestID, ownerID, toolName string, params map[string]any) (any, error) {
	started := time.Now()

	tool, known := g.tools[toolName]
	if !known {
		return nil, g.reject(ctx, requestID, toolName, params, started, fmt.Sprintf("unknown tool %q", toolName))
	}

	if err := tool.Schema.VisitJSON(anyMap(params)); err != nil {
		return nil, g.reject(ctx, requestID, toolName, params, started, "schema validation failed: "+err.Error())
	}
	if reason := scanForInjection(params); reason != "" {
		return nil, g.reject(ctx, requestID, toolName, params, started, reason)
	}

	payload, err := tool.Handler(ctx, ownerID, Args(params))
	if err != nil {
		g.record(ctx, requestID, toolName, params, 0, false, err.Error())
		g.observe(toolName, OutcomeError, 0, started)
		return nil, err
	}

	shaped, size, err := shapePayload(tool, payload)
	if err != nil {
		g.record(ctx, requestID, toolName, params, 0, false, "shape result: "+err.Error())
		g.observe(toolName, OutcomeError, 0, started)
		return nil, fmt.Errorf("shape %s result: %w", toolName, err)
	}

	if err := g.record(ctx, requestID, toolName, params, size, false, ""); err != nil {
		g.observe(toolName, OutcomeError, size, started)
		return nil, err
	}

	g.observe(toolName, OutcomeOK, size, started)
	return shaped, nil
}

// reject logs and audits a violation, then returns the violation error.
// A failed violation append wins over the violation itself: the caller
// must know the log is incomplete.
func (g *Gateway) reject(ctx context.Context, requestID, toolName string, params map[string]any, started time.Time, reason string) error {
	g.logger.Warn("firewall violation", "tool", toolName, "request_id", requestID, "reason", reason)
	if err := g.record(ctx, requestID, toolName, params, 0, true, reason); err != nil {
		g.observe(toolName, OutcomeError, 0, started)
		return err
	}
	g.observe(toolName, OutcomeViolation, 0, started)
	return domain.WrapError(domain.ErrViolation, "firewall.call", fmt.Errorf("%s", reason))
}

func (g *Gateway) record(ctx context.Context, requestID, toolName string, params map[string]any, size int, violation bool, reason string) error {
	return g.audit.append(ctx, domain.AuditEntry{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		RequestID:  requestID,
		Tool:       toolName,
		Params:     sanitizeParams(params),
		ResultSize: size,
		Violation:  violation,
		Reason:     reason,
	})
}

func (g *Gateway) observe(tool, outcome string, size int, started time.Time) {
	if g.observer == nil {
		return
	}
	g.observer.ObserveToolCall(tool, outcome, size, time.Since(started))
}

// scanForInjection walks every string parameter for path traversal and
// shell metacharacters. Values are data for query engines, never paths or
// commands, so any such content is hostile by definition.
func scanForInjection(params map[string]any) string {
	for key, value := range params {
		if reason := scanValue(key, value); reason != "" {
			return reason
		}
	}
	return ""
}

const shellMetaCharacters = "`$;|&<>"

// looksLikePath flags rooted paths: "/etc/passwd", "\\share\x",
// "C:\secrets". Relative traversal is caught by the ".." check.
func looksLikePath(v string) bool {
	if strings.HasPrefix(v, "/") || strings.HasPrefix(v, "\\") {
		return true
	}
	if len(v) >= 3 && v[1] == ':' && (v[2] == '\\' || v[2] == '/') {
		return true
	}
	return false
}

func scanValue(key string, value any) string {
	switch v := value.(type) {
	case string:
		if strings.Contains(v, "..") {
			return fmt.Sprintf("parameter %q contains a path traversal sequence", key)
		}
		if looksLikePath(v) {
			return fmt.Sprintf("parameter %q looks like a filesystem path", key)
		}
		if strings.ContainsAny(v, shellMetaCharacters) {
			return fmt.Sprintf("parameter %q contains shell metacharacters", key)
		}
		if strings.ContainsRune(v, 0) {
			return fmt.Sprintf("parameter %q contains a NUL byte", key)
		}
	case map[string]any:
		for k, item := range v {
			if reason := scanValue(key+"."+k, item); reason != "" {
				return reason
			}
		}
	case []any:
		for _, item := range v {
			if reason := scanValue(key, item); reason != "" {
				return reason
			}
		}
	}
	return ""
}

// shapePayload renders the handler result through the tool's output
// contract: non-allow-listed fields dropped, strings capped to the
// preview length. The reported size is the wire size of the shaped JSON.
func shapePayload(tool Tool, payload any) (any, int, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, err
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, 0, err
	}

	var allowed map[string]bool
	if len(tool.Fields) > 0 {
		allowed = make(map[string]bool, len(tool.Fields))
		for _, field := range tool.Fields {
			allowed[field] = true
		}
	}
	previewCap := tool.PreviewCap
	if previewCap <= 0 {
		previewCap = defaultPreviewCap
	}

	shaped := shapeValue(value, allowed, previewCap)
	out, err := json.Marshal(shaped)
	if err != nil {
		return nil, 0, err
	}
	return shaped, len(out), nil
}

func shapeValue(value any, allowed map[string]bool, previewCap int) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			if allowed != nil && !allowed[key] {
				continue
			}
			out[key] = shapeValue(item, allowed, previewCap)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = shapeValue(item, allowed, previewCap)
		}
		return out
	case string:
		if len(v) <= previewCap {
			return v
		}
		runes := []rune(v)
		if len(runes) <= previewCap {
			return v
		}
		return string(runes[:previewCap]) + "..."
	default:
		return v
	}
}

func anyMap(params map[string]any) map[string]any {
	if params == nil {
		return map[string]any{}
	}
	return params
}
