package mcpadapter

import (
	"testing"

	"github.com/ledgerguard/copilot/internal/firewall"
)

func TestDeclareToolCarriesSchema(t *testing.T) {
	tools := firewall.DefaultTools(firewall.Services{})

	var search *firewall.Tool
	for i := range tools {
		if tools[i].Name == "search_documents" {
			search = &tools[i]
			break
		}
	}
	if search == nil {
		t.Fatal("search_documents missing from tool table")
	}

	declared := declareTool(*search)
	if declared.Name != "search_documents" {
		t.Fatalf("name = %q", declared.Name)
	}
	if declared.Description == "" {
		t.Fatal("description not carried over")
	}
	if _, ok := declared.InputSchema.Properties["query"]; !ok {
		t.Fatal("query property missing from declaration")
	}
	if _, ok := declared.InputSchema.Properties["limit"]; !ok {
		t.Fatal("limit property missing from declaration")
	}

	foundRequired := false
	for _, name := range declared.InputSchema.Required {
		if name == "query" {
			foundRequired = true
		}
	}
	if !foundRequired {
		t.Fatal("query not marked required")
	}
}

func TestDeclareToolCoversWholeTable(t *testing.T) {
	for _, tool := range firewall.DefaultTools(firewall.Services{}) {
		declared := declareTool(tool)
		if declared.Name != tool.Name {
			t.Fatalf("declared %q for table row %q", declared.Name, tool.Name)
		}
		if len(declared.InputSchema.Properties) != len(tool.Schema.Properties) {
			t.Fatalf("%s: declared %d properties, schema has %d",
				tool.Name, len(declared.InputSchema.Properties), len(tool.Schema.Properties))
		}
	}
}
