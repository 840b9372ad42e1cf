// Package tabular extracts structured invoice rows from XLSX and CSV
// files. Column mapping is detected from header names, so GSTR-2B
// downloads and bookkeeping exports with different layouts both parse.
package tabular

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ledgerguard/copilot/internal/core/domain"
	"github.com/ledgerguard/copilot/internal/core/ports"
)

const (
	DatasetBooks  = domain.DatasetBooks
	DatasetGSTR2B = domain.DatasetGSTR2B
)

type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) (*ports.ExtractedContent, error) {
	reader, err := e.storage.Open(ctx, doc.StorageRef)
	if err != nil {
		return nil, fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	var rows [][]string
	switch {
	case strings.Contains(doc.MimeType, "spreadsheetml"):
		rows, err = readXLSX(reader)
	case strings.Contains(doc.MimeType, "csv"):
		rows, err = readCSV(reader)
	default:
		return nil, fmt.Errorf("unsupported tabular mime type: %s", doc.MimeType)
	}
	if err != nil {
		return nil, err
	}

	return ParseRows(rows, doc)
}

func readXLSX(r io.Reader) ([][]string, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer book.Close()

	var out [][]string
	for _, sheet := range book.GetSheetList() {
		rows, err := book.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		out = append(out, rows...)
	}
	return out, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

// columnAliases maps canonical field names to header spellings seen in
// the wild. Matching is case-insensitive substring.
var columnAliases = map[string][]string{
	"invoice_number":  {"invoice no", "invoice number", "inv no", "bill no", "document number", "voucher no"},
	"vendor_gstin":    {"vendor gstin", "supplier gstin", "gstin of supplier", "seller gstin", "party gstin"},
	"recipient_gstin": {"recipient gstin", "buyer gstin", "gstin of recipient", "customer gstin"},
	"invoice_date":    {"invoice date", "date", "bill date", "document date"},
	"taxable_value":   {"taxable value", "taxable amount", "taxable amt", "assessable value"},
	"tax_amount":      {"tax amount", "total tax", "gst amount"},
	"cgst":            {"cgst"},
	"sgst":            {"sgst"},
	"igst":            {"igst"},
	"hsn":             {"hsn", "hsn code", "hsn/sac", "sac"},
	"category":        {"category", "expense category", "nature of supply"},
}

// ParseRows converts raw sheet rows into invoice records. The header
// row is the first row where an invoice number column is found; rows
// that fail type coercion are reported, never fatal.
func ParseRows(rows [][]string, doc *domain.Document) (*ports.ExtractedContent, error) {
	headerIdx, mapping := detectHeader(rows)
	if mapping == nil {
		return &ports.ExtractedContent{
			Text:        flattenRows(rows),
			NeedsReview: true,
			RowErrors:   []string{"no recognizable header row"},
		}, nil
	}

	content := &ports.ExtractedContent{
		Text:       flattenRows(rows),
		Dataset:    detectDataset(rows, doc),
		Confidence: 1.0,
	}

	for i := headerIdx + 1; i < len(rows); i++ {
		row := rows[i]
		if blankRow(row) {
			continue
		}
		rec, err := coerceRow(row, mapping, doc)
		if err != nil {
			content.RowErrors = append(content.RowErrors, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}
		content.Records = append(content.Records, rec)
	}

	if len(content.Records) == 0 && len(content.RowErrors) > 0 {
		content.NeedsReview = true
	}
	return content, nil
}

func detectHeader(rows [][]string) (int, map[string]int) {
	for i, row := range rows {
		mapping := mapColumns(row)
		if _, ok := mapping["invoice_number"]; ok {
			return i, mapping
		}
	}
	return 0, nil
}

func mapColumns(header []string) map[string]int {
	mapping := make(map[string]int)
	for col, cell := range header {
		name := strings.ToLower(strings.TrimSpace(cell))
		if name == "" {
			continue
		}
		for field, aliases := range columnAliases {
			if _, taken := mapping[field]; taken {
				continue
			}
			for _, alias := range aliases {
				if strings.Contains(name, alias) {
					mapping[field] = col
					break
				}
			}
		}
	}
	return mapping
}

func detectDataset(rows [][]string, doc *domain.Document) string {
	corpus := strings.ToLower(doc.Filename + " " + flattenRows(rows[:min(len(rows), 3)]))
	if strings.Contains(corpus, "gstr-2b") || strings.Contains(corpus, "gstr2b") {
		return DatasetGSTR2B
	}
	return DatasetBooks
}

var dateLayouts = []string{
	"02-01-2006", "02/01/2006", "2006-01-02", "02-Jan-2006", "2 Jan 2006", "01/02/2006",
}

func coerceRow(row []string, mapping map[string]int, doc *domain.Document) (domain.InvoiceRecord, error) {
	cell := func(field string) string {
		idx, ok := mapping[field]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	number := cell("invoice_number")
	if number == "" {
		return domain.InvoiceRecord{}, fmt.Errorf("missing invoice number")
	}

	rec := domain.InvoiceRecord{
		InvoiceNumber:  number,
		VendorGSTIN:    strings.ToUpper(cell("vendor_gstin")),
		RecipientGSTIN: strings.ToUpper(cell("recipient_gstin")),
		Period:         doc.Period,
		Category:       strings.ToLower(cell("category")),
		HSNCode:        cell("hsn"),
	}

	if raw := cell("invoice_date"); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			return domain.InvoiceRecord{}, fmt.Errorf("invoice date %q: %w", raw, err)
		}
		rec.InvoiceDate = parsed
		if rec.Period == domain.PeriodUnknown || rec.Period == "" {
			rec.Period = parsed.Format("2006-01")
		}
	}

	taxable, err := parseAmount(cell("taxable_value"))
	if err != nil {
		return domain.InvoiceRecord{}, fmt.Errorf("taxable value: %w", err)
	}
	rec.TaxableValue = taxable

	if raw := cell("tax_amount"); raw != "" {
		tax, err := parseAmount(raw)
		if err != nil {
			return domain.InvoiceRecord{}, fmt.Errorf("tax amount: %w", err)
		}
		rec.TaxAmount = tax
	} else {
		// Sum the split-rate columns when no total column exists.
		var total float64
		for _, field := range []string{"cgst", "sgst", "igst"} {
			if raw := cell(field); raw != "" {
				v, err := parseAmount(raw)
				if err != nil {
					return domain.InvoiceRecord{}, fmt.Errorf("%s: %w", field, err)
				}
				total += v
			}
		}
		rec.TaxAmount = total
	}

	return rec, nil
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format")
}

func parseAmount(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	cleaned := strings.NewReplacer(",", "", "₹", "", " ", "").Replace(raw)
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", raw)
	}
	return v, nil
}

func flattenRows(rows [][]string) string {
	var sb strings.Builder
	for _, row := range rows {
		sb.WriteString(strings.Join(row, " | "))
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
