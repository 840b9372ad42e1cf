package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/agext/levenshtein"

	"github.com/ledgerguard/copilot/internal/core/domain"
)

// Fuzzy score weights, in order: invoice number similarity, amount
// proximity, vendor equality, date proximity.
const (
	weightNumber = 0.4
	weightAmount = 0.3
	weightVendor = 0.2
	weightDate   = 0.1
)

type ReconcileUseCase struct {
	amountTolerance   float64
	dateToleranceDays int
	fuzzyThreshold    float64
	deadline          time.Duration
}

func NewReconcileUseCase(amountTolerance float64, dateToleranceDays int, fuzzyThreshold float64, deadline time.Duration) *ReconcileUseCase {
	if amountTolerance <= 0 {
		amountTolerance = 0.01
	}
	if dateToleranceDays <= 0 {
		dateToleranceDays = 3
	}
	if fuzzyThreshold <= 0 || fuzzyThreshold > 1 {
		fuzzyThreshold = 0.8
	}
	if deadline <= 0 {
		deadline = 30 * time.Second
	}
	return &ReconcileUseCase{
		amountTolerance:   amountTolerance,
		dateToleranceDays: dateToleranceDays,
		fuzzyThreshold:    fuzzyThreshold,
		deadline:          deadline,
	}
}

// Reconcile matches purchase-register records (left) against GSTR-2B
// lines (right). Exact composite-key matches first, then fuzzy scoring
// over the remainder. Every examined record lands in exactly one output
// set. Hitting the deadline returns what was classified so far with
// Partial set; records the deadline left unexamined are omitted rather
// than misreported as unmatched.
func (uc *ReconcileUseCase) Reconcile(ctx context.Context, left, right []domain.InvoiceRecord, period string) (*domain.ReconciliationReport, error) {
	if len(left) == 0 && len(right) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "reconcile", errors.New("both record sets empty"))
	}

	ctx, cancel := context.WithTimeout(ctx, uc.deadline)
	defer cancel()

	// Sort both sides so the matching order, and therefore the output,
	// is stable across runs.
	left = sortedRecords(left)
	right = sortedRecords(right)

	report := &domain.ReconciliationReport{
		Period:      period,
		SourceLeft:  "books",
		SourceRight: "gstr2b",
		GeneratedAt: time.Now().UTC(),
	}

	usedRight := make([]bool, len(right))
	var pendingLeft []domain.InvoiceRecord

	// Pass 1: exact composite key.
	for _, lrec := range left {
		if ctx.Err() != nil {
			report.Partial = true
			break
		}
		idx := uc.findExact(lrec, right, usedRight)
		if idx < 0 {
			pendingLeft = append(pendingLeft, lrec)
			continue
		}
		usedRight[idx] = true
		uc.classifyPair(report, lrec, right[idx], domain.MatchExact, 1.0)
	}

	// Pass 2: fuzzy over what remains. Only a record compared against
	// every remaining counterpart earns the unmatched label.
	var unmatchedLeft []domain.InvoiceRecord
	for _, lrec := range pendingLeft {
		if report.Partial {
			break
		}
		if ctx.Err() != nil {
			report.Partial = true
			break
		}
		idx, score := uc.findFuzzy(lrec, right, usedRight)
		if idx < 0 {
			unmatchedLeft = append(unmatchedLeft, lrec)
			continue
		}
		usedRight[idx] = true
		uc.classifyPair(report, lrec, right[idx], domain.MatchFuzzy, score)
	}

	report.UnmatchedLeft = unmatchedLeft
	// A partial run never classified the spilled left remainder, so the
	// unused right side cannot be called unmatched either.
	if !report.Partial {
		for i, rrec := range right {
			if !usedRight[i] {
				report.UnmatchedRight = append(report.UnmatchedRight, rrec)
			}
		}
	}

	buildActionItems(report)
	return report, nil
}

// classifyPair routes a matched pair: amount deltas beyond tolerance are
// mismatches, never silently merged.
func (uc *ReconcileUseCase) classifyPair(report *domain.ReconciliationReport, lrec, rrec domain.InvoiceRecord, kind domain.MatchKind, score float64) {
	delta := rrec.Total() - lrec.Total()
	match := domain.ReconciliationMatch{
		Left:        &lrec,
		Right:       &rrec,
		Kind:        kind,
		Similarity:  score,
		AmountDelta: delta,
	}
	if math.Abs(delta) > uc.amountTolerance*math.Max(lrec.Total(), 1) {
		match.Kind = domain.MatchMismatched
		report.Mismatches = append(report.Mismatches, match)
		return
	}
	report.Matched = append(report.Matched, match)
}

func (uc *ReconcileUseCase) findExact(lrec domain.InvoiceRecord, right []domain.InvoiceRecord, used []bool) int {
	for i, rrec := range right {
		if used[i] {
			continue
		}
		if rrec.VendorGSTIN != lrec.VendorGSTIN {
			continue
		}
		if normalizeInvoiceNumber(rrec.InvoiceNumber) != normalizeInvoiceNumber(lrec.InvoiceNumber) {
			continue
		}
		if !uc.datesClose(lrec.InvoiceDate, rrec.InvoiceDate) {
			continue
		}
		return i
	}
	return -1
}

func (uc *ReconcileUseCase) findFuzzy(lrec domain.InvoiceRecord, right []domain.InvoiceRecord, used []bool) (int, float64) {
	bestIdx, bestScore := -1, 0.0
	for i, rrec := range right {
		if used[i] {
			continue
		}
		score := uc.fuzzyScore(lrec, rrec)
		if score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	if bestScore < uc.fuzzyThreshold {
		return -1, 0
	}
	return bestIdx, bestScore
}

func (uc *ReconcileUseCase) fuzzyScore(lrec, rrec domain.InvoiceRecord) float64 {
	numberSim := levenshtein.Similarity(
		normalizeInvoiceNumber(lrec.InvoiceNumber),
		normalizeInvoiceNumber(rrec.InvoiceNumber),
		nil,
	)

	var amountSim float64
	base := math.Max(lrec.Total(), 1)
	diff := math.Abs(lrec.Total()-rrec.Total()) / base
	if diff < 1 {
		amountSim = 1 - diff
	}

	var vendorSim float64
	if lrec.VendorGSTIN != "" && lrec.VendorGSTIN == rrec.VendorGSTIN {
		vendorSim = 1
	}

	var dateSim float64
	if uc.datesClose(lrec.InvoiceDate, rrec.InvoiceDate) {
		dateSim = 1
	}

	return weightNumber*numberSim + weightAmount*amountSim + weightVendor*vendorSim + weightDate*dateSim
}

func (uc *ReconcileUseCase) datesClose(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return true
	}
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= time.Duration(uc.dateToleranceDays)*24*time.Hour
}

func buildActionItems(report *domain.ReconciliationReport) {
	for _, rec := range report.UnmatchedLeft {
		report.ActionItems = append(report.ActionItems, domain.ActionItem{
			Type:           "missing_in_2b",
			InvoiceNumber:  rec.InvoiceNumber,
			VendorGSTIN:    rec.VendorGSTIN,
			Description:    "invoice recorded in books but absent from GSTR-2B; the vendor may not have filed GSTR-1",
			Recommendation: "follow up with the vendor before claiming ITC",
		})
	}
	for _, m := range report.Mismatches {
		item := domain.ActionItem{
			Type:           "amount_mismatch",
			Description:    fmt.Sprintf("amounts differ by %.2f between books and GSTR-2B", math.Abs(m.AmountDelta)),
			Recommendation: "verify invoice amounts against the source document",
		}
		if m.Left != nil {
			item.InvoiceNumber = m.Left.InvoiceNumber
			item.VendorGSTIN = m.Left.VendorGSTIN
		}
		report.ActionItems = append(report.ActionItems, item)
	}
	for _, rec := range report.UnmatchedRight {
		report.ActionItems = append(report.ActionItems, domain.ActionItem{
			Type:           "missing_in_books",
			InvoiceNumber:  rec.InvoiceNumber,
			VendorGSTIN:    rec.VendorGSTIN,
			Description:    "GSTR-2B reports an invoice the books do not record",
			Recommendation: "check for unrecorded purchases or vendor errors",
		})
	}
}

func sortedRecords(records []domain.InvoiceRecord) []domain.InvoiceRecord {
	out := make([]domain.InvoiceRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].VendorGSTIN != out[j].VendorGSTIN {
			return out[i].VendorGSTIN < out[j].VendorGSTIN
		}
		if out[i].InvoiceNumber != out[j].InvoiceNumber {
			return out[i].InvoiceNumber < out[j].InvoiceNumber
		}
		return out[i].InvoiceDate.Before(out[j].InvoiceDate)
	})
	return out
}

func normalizeInvoiceNumber(number string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(number) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
