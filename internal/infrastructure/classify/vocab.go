package classify

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Vocabulary drives keyword classification. Type and category keyword
// sets are configuration so new document kinds need no code change.
type Vocabulary struct {
	Types         map[string][]string `yaml:"types"`
	Categories    map[string][]string `yaml:"categories"`
	Subcategories map[string][]string `yaml:"subcategories"`
}

// DefaultVocabulary covers the GST/IT document corpus the pipeline was
// built for.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Types: map[string][]string{
			"invoice": {
				"invoice", "bill", "tax invoice", "gst invoice", "bill of supply",
				"invoice no", "invoice number", "inv no", "bill no",
				"gstin", "hsn", "sac", "cgst", "sgst", "igst", "taxable value",
				"total amount", "amount payable", "invoice date", "due date",
			},
			"statement": {
				"statement", "account statement", "bank statement", "ledger",
				"transaction", "balance", "credit", "debit", "opening balance",
				"closing balance", "statement period", "gstr-2b",
			},
			"notice": {
				"notice", "show cause", "demand", "assessment", "order",
				"gst notice", "tax notice", "penalty", "fine", "hearing",
				"appeal", "rectification",
			},
			"certificate": {
				"certificate", "registration", "gst certificate",
				"certificate of registration", "registration certificate",
				"gstin certificate", "registration number",
			},
		},
		Categories: map[string][]string{
			"gst": {
				"gst", "gstin", "cgst", "sgst", "igst", "gstr", "gstr-1",
				"gstr-2b", "gstr-3b", "gstr-9", "gst return", "input tax credit",
				"itc", "output tax", "tax invoice", "hsn", "sac",
			},
			"it": {
				"income tax", "itr", "tds", "tds certificate", "form 16",
				"form 26as", "pan", "assessment year", "income tax act",
			},
		},
		Subcategories: map[string][]string{
			"sales": {
				"sales", "outward supply", "output", "b2b", "b2c", "export",
				"tax invoice", "bill of supply",
			},
			"purchase": {
				"purchase", "inward supply", "input", "vendor", "supplier",
				"gstr-2b", "input tax credit", "itc", "purchase invoice",
			},
		},
	}
}

// LoadVocabulary reads a vocabulary file, falling back to the defaults
// when path is empty. Missing sections inherit the defaults so a file
// can override only one axis.
func LoadVocabulary(path string) (Vocabulary, error) {
	vocab := DefaultVocabulary()
	if path == "" {
		return vocab, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("read vocabulary file: %w", err)
	}

	var loaded Vocabulary
	if err := yaml.Unmarshal(raw, &loaded); err != nil {
		return Vocabulary{}, fmt.Errorf("parse vocabulary yaml: %w", err)
	}

	if len(loaded.Types) > 0 {
		vocab.Types = loaded.Types
	}
	if len(loaded.Categories) > 0 {
		vocab.Categories = loaded.Categories
	}
	if len(loaded.Subcategories) > 0 {
		vocab.Subcategories = loaded.Subcategories
	}
	return vocab, nil
}
