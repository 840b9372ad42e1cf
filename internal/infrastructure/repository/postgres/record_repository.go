package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ledgerguard/copilot/internal/core/domain"
)

type RecordRepository struct {
	db *sql.DB
}

func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// ReplaceForDocument swaps every record that came from a document, so
// re-processing never duplicates lines.
func (r *RecordRepository) ReplaceForDocument(ctx context.Context, doc *domain.Document, dataset string, records []domain.InvoiceRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM invoice_records WHERE document_id = $1`, doc.ID); err != nil {
		return fmt.Errorf("delete old records: %w", err)
	}

	for i, rec := range records {
		var invoiceDate any
		if !rec.InvoiceDate.IsZero() {
			invoiceDate = rec.InvoiceDate
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO invoice_records (
	id, document_id, owner_id, dataset, invoice_number, vendor_gstin, recipient_gstin,
	invoice_date, period, category, hsn_code, taxable_value, tax_amount
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`,
			uuid.NewString(), doc.ID, doc.OwnerID, dataset, rec.InvoiceNumber, rec.VendorGSTIN,
			rec.RecipientGSTIN, invoiceDate, rec.Period, rec.Category, rec.HSNCode,
			rec.TaxableValue, rec.TaxAmount,
		)
		if err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record tx: %w", err)
	}
	return nil
}

const recordColumns = `invoice_number, vendor_gstin, recipient_gstin, invoice_date, period, category, hsn_code, taxable_value, tax_amount`

func (r *RecordRepository) GetByNumber(ctx context.Context, ownerID, invoiceNumber string) (*domain.InvoiceRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+recordColumns+`
FROM invoice_records
WHERE owner_id = $1 AND invoice_number = $2
ORDER BY invoice_date
LIMIT 1
`, ownerID, invoiceNumber)

	rec, err := scanRecord(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrRecordNotFound, "get record", fmt.Errorf("number %s", invoiceNumber))
		}
		return nil, fmt.Errorf("scan record: %w", err)
	}
	return rec, nil
}

func (r *RecordRepository) ListDataset(ctx context.Context, ownerID, dataset, period string) ([]domain.InvoiceRecord, error) {
	args := []any{ownerID, dataset}
	query := `
SELECT ` + recordColumns + `
FROM invoice_records
WHERE owner_id = $1 AND dataset = $2`
	if period != "" {
		args = append(args, period)
		query += ` AND period = $3`
	}
	query += `
ORDER BY invoice_number, invoice_date`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list dataset: %w", err)
	}
	defer rows.Close()

	var out []domain.InvoiceRecord
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

func scanRecord(scan func(...any) error) (*domain.InvoiceRecord, error) {
	var rec domain.InvoiceRecord
	var invoiceDate sql.NullTime
	err := scan(
		&rec.InvoiceNumber, &rec.VendorGSTIN, &rec.RecipientGSTIN, &invoiceDate,
		&rec.Period, &rec.Category, &rec.HSNCode, &rec.TaxableValue, &rec.TaxAmount,
	)
	if err != nil {
		return nil, err
	}
	if invoiceDate.Valid {
		rec.InvoiceDate = invoiceDate.Time
	}
	return &rec, nil
}

// Summary computes the aggregate for one summary kind. Everything is
// SQL aggregation: no row data leaves the database.
func (r *RecordRepository) Summary(ctx context.Context, ownerID string, q domain.SummaryQuery) (*domain.SummaryAggregate, error) {
	agg := &domain.SummaryAggregate{Kind: q.Kind, Period: q.Period}

	dataset := domain.DatasetBooks
	subcategory := ""
	switch q.Kind {
	case domain.SummarySalesTotal:
		subcategory = "sales"
	case domain.SummaryPurchaseTotal, domain.SummaryITC:
		subcategory = "purchase"
	case domain.SummaryGSTLiability:
		return r.liabilitySummary(ctx, ownerID, q)
	case domain.SummaryVendorCount:
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "summary", fmt.Errorf("unknown kind %q", q.Kind))
	}

	args := []any{ownerID, dataset}
	where := `r.owner_id = $1 AND r.dataset = $2`
	if q.Period != "" {
		args = append(args, q.Period)
		where += fmt.Sprintf(" AND r.period = $%d", len(args))
	}
	if q.Category != "" {
		args = append(args, q.Category)
		where += fmt.Sprintf(" AND r.category = $%d", len(args))
	}
	if subcategory != "" {
		args = append(args, subcategory)
		where += fmt.Sprintf(" AND d.subcategory = $%d", len(args))
	}

	query := fmt.Sprintf(`
SELECT COUNT(*),
	COALESCE(SUM(r.taxable_value), 0),
	COALESCE(SUM(r.tax_amount), 0),
	COUNT(DISTINCT NULLIF(r.vendor_gstin, ''))
FROM invoice_records r
JOIN documents d ON d.id = r.document_id
WHERE %s
`, where)

	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&agg.Count, &agg.TotalTaxable, &agg.TotalTax, &agg.VendorCount,
	)
	if err != nil {
		return nil, fmt.Errorf("summary query: %w", err)
	}
	agg.TotalAmount = agg.TotalTaxable + agg.TotalTax
	return agg, nil
}

// liabilitySummary is output tax on sales minus input credit on
// purchases for the filtered window.
func (r *RecordRepository) liabilitySummary(ctx context.Context, ownerID string, q domain.SummaryQuery) (*domain.SummaryAggregate, error) {
	sales, err := r.Summary(ctx, ownerID, domain.SummaryQuery{Kind: domain.SummarySalesTotal, Period: q.Period, Category: q.Category})
	if err != nil {
		return nil, err
	}
	purchases, err := r.Summary(ctx, ownerID, domain.SummaryQuery{Kind: domain.SummaryPurchaseTotal, Period: q.Period, Category: q.Category})
	if err != nil {
		return nil, err
	}

	return &domain.SummaryAggregate{
		Kind:         q.Kind,
		Period:       q.Period,
		Count:        sales.Count + purchases.Count,
		TotalTaxable: sales.TotalTaxable,
		TotalTax:     sales.TotalTax - purchases.TotalTax,
		TotalAmount:  sales.TotalTax - purchases.TotalTax,
	}, nil
}
