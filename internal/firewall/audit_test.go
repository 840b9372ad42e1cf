package firewall

import (
	"context"
	"strings"
	"testing"

	"github.com/ledgerguard/copilot/internal/core/domain"
)

func TestSanitizeParamsRedactsSecretKeys(t *testing.T) {
	params := map[string]any{
		"query":      "vendor invoices",
		"api_key":    "sk-abcdef",
		"AuthToken":  "bearer xyz",
		"credential": map[string]any{"inner": "value"},
	}

	out := sanitizeParams(params)
	if out["query"] != "vendor invoices" {
		t.Fatalf("query = %v", out["query"])
	}
	for _, key := range []string{"api_key", "AuthToken", "credential"} {
		if out[key] != redactedPlaceholder {
			t.Fatalf("%s = %v, want redacted", key, out[key])
		}
	}
	// Input untouched.
	if params["api_key"] != "sk-abcdef" {
		t.Fatal("sanitize mutated the input map")
	}
}

func TestSanitizeParamsTruncatesLongStrings(t *testing.T) {
	long := strings.Repeat("a", 300)
	out := sanitizeParams(map[string]any{"scenario": long})

	got, _ := out["scenario"].(string)
	if got != strings.Repeat("a", maxParamValueLength)+"..." {
		t.Fatalf("scenario = %q (len %d)", got, len(got))
	}
}

func TestAuditWriterAppendAfterCloseFails(t *testing.T) {
	store := &auditStoreFake{}
	w := newAuditWriter(store)
	w.Close()

	err := w.append(context.Background(), domain.AuditEntry{ID: "e1"})
	if err == nil {
		t.Fatal("append after Close must fail, not panic")
	}
	if !strings.Contains(err.Error(), "closed") {
		t.Fatalf("err = %v", err)
	}
	if len(store.all()) != 0 {
		t.Fatal("closed writer accepted an entry")
	}

	// Close is idempotent.
	w.Close()
}

func TestSanitizeParamsWalksNestedValues(t *testing.T) {
	long := strings.Repeat("b", 200)
	out := sanitizeParams(map[string]any{
		"filters": map[string]any{"note": long},
		"list":    []any{long, float64(3)},
	})

	nested, _ := out["filters"].(map[string]any)
	if note, _ := nested["note"].(string); !strings.HasSuffix(note, "...") {
		t.Fatalf("nested note not truncated: %q", note)
	}
	list, _ := out["list"].([]any)
	if item, _ := list[0].(string); !strings.HasSuffix(item, "...") {
		t.Fatalf("list item not truncated: %q", item)
	}
	if list[1] != float64(3) {
		t.Fatalf("non-string list item changed: %v", list[1])
	}
}
