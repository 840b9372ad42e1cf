package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/ledgerguard/copilot/internal/core/domain"
	"github.com/ledgerguard/copilot/internal/core/ports"
)

type EvaluateUseCase struct {
	rules   ports.RuleStore
	workers int
}

func NewEvaluateUseCase(rules ports.RuleStore, workers int) *EvaluateUseCase {
	if workers <= 0 {
		workers = 8
	}
	return &EvaluateUseCase{rules: rules, workers: workers}
}

// EvaluateInvoice applies the active rule set to one purchase invoice.
// When no rule bundle is installed the result is pending, never a
// silent pass.
func (uc *EvaluateUseCase) EvaluateInvoice(ctx context.Context, inv domain.InvoiceRecord, stmt *domain.GSTR2BStatement) (domain.EvaluationResult, error) {
	rules, err := uc.rules.ActiveRules(ctx)
	if err != nil {
		if domain.IsKind(err, domain.ErrRuleUnavailable) {
			return pendingResult(inv, "rule unavailable: no active rule bundle"), nil
		}
		return domain.EvaluationResult{}, fmt.Errorf("load active rules: %w", err)
	}
	return evaluateWithRules(inv, stmt, rules), nil
}

// EvaluateBatch evaluates invoices concurrently and reduces the
// aggregate serially. Result order matches input order.
func (uc *EvaluateUseCase) EvaluateBatch(ctx context.Context, invs []domain.InvoiceRecord, stmt *domain.GSTR2BStatement) (domain.BatchEvaluation, error) {
	rules, err := uc.rules.ActiveRules(ctx)
	var unavailable bool
	if err != nil {
		if !domain.IsKind(err, domain.ErrRuleUnavailable) {
			return domain.BatchEvaluation{}, fmt.Errorf("load active rules: %w", err)
		}
		unavailable = true
	}

	results := make([]domain.EvaluationResult, len(invs))
	sem := make(chan struct{}, uc.workers)
	var wg sync.WaitGroup

	for i, inv := range invs {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.BatchEvaluation{}, ctxErr
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, inv domain.InvoiceRecord) {
			defer wg.Done()
			defer func() { <-sem }()
			if unavailable {
				results[i] = pendingResult(inv, "rule unavailable: no active rule bundle")
				return
			}
			results[i] = evaluateWithRules(inv, stmt, rules)
		}(i, inv)
	}
	wg.Wait()

	return domain.BatchEvaluation{
		Results:   results,
		Aggregate: aggregate(results),
	}, nil
}

// ExplainRule returns a rule with a deterministic plain-text reading of
// its condition and action, and whether the described scenario would
// trigger it.
func (uc *EvaluateUseCase) ExplainRule(ctx context.Context, ruleID, scenario string) (*domain.Rule, bool, string, error) {
	rule, err := uc.rules.GetRule(ctx, ruleID)
	if err != nil {
		return nil, false, "", err
	}

	explanation := describeLogic(rule.Logic)
	triggers := scenarioTriggers(rule.Logic.Condition, scenario)
	return rule, triggers, explanation, nil
}

func evaluateWithRules(inv domain.InvoiceRecord, stmt *domain.GSTR2BStatement, rules []domain.Rule) domain.EvaluationResult {
	if inv.Period == "" || inv.Period == domain.PeriodUnknown {
		return pendingResult(inv, "rule unavailable: invoice period unknown, cannot resolve effective rules")
	}

	effective := make([]domain.Rule, 0, len(rules))
	for _, rule := range rules {
		if !rule.Active || !rule.Logic.Active {
			continue
		}
		if !rule.EffectiveFor(inv.Period) {
			continue
		}
		if !knownCondition(rule.Logic.Condition.Type) {
			return pendingResult(inv, fmt.Sprintf("rule unavailable: rule %s has unknown condition %q", rule.ID, rule.Logic.Condition.Type))
		}
		effective = append(effective, rule)
	}

	matched := make([]domain.Rule, 0, len(effective))
	for _, rule := range effective {
		if conditionMatches(rule.Logic.Condition, inv, stmt) {
			matched = append(matched, rule)
		}
	}

	applicable := composeMatches(matched)

	result := domain.EvaluationResult{
		InvoiceNumber: inv.InvoiceNumber,
		VendorGSTIN:   inv.VendorGSTIN,
		TaxableValue:  inv.TaxableValue,
		TotalTax:      inv.TaxAmount,
	}

	var blocked float64
	var reasons []string
	for _, rule := range applicable {
		amount := blockedAmount(rule.Logic, inv.TaxAmount)
		blocked += amount
		result.RulesApplied = append(result.RulesApplied, domain.AppliedRule{
			RuleID:        rule.ID,
			Name:          rule.Name,
			Citation:      rule.Citation,
			Action:        rule.Logic.Action,
			BlockedAmount: amount,
		})
		reasons = append(reasons, fmt.Sprintf("%s (%s)", rule.Name, rule.Citation))
	}
	blocked = math.Min(blocked, inv.TaxAmount)

	result.BlockedAmount = blocked
	result.EligibleAmount = inv.TaxAmount - blocked

	switch {
	case blocked == 0:
		result.State = domain.EvalEligible
		result.Reason = "all conditions satisfied"
		result.Recommendation = "claim ITC in full"
	case blocked >= inv.TaxAmount:
		result.State = domain.EvalBlocked
		result.Reason = "ITC blocked: " + strings.Join(reasons, "; ")
		result.Recommendation = "do not claim; resolve the listed conditions first"
	default:
		result.State = domain.EvalPartial
		result.Reason = "ITC partially blocked: " + strings.Join(reasons, "; ")
		result.Recommendation = "claim the eligible portion; document the blocked remainder"
	}
	return result
}

// composeMatches applies per-category composition semantics: exclusive
// categories keep only the highest-priority match, cumulative categories
// keep every match. Output order is deterministic.
func composeMatches(matched []domain.Rule) []domain.Rule {
	byCategory := make(map[string][]domain.Rule)
	var categories []string
	for _, rule := range matched {
		if _, seen := byCategory[rule.Category]; !seen {
			categories = append(categories, rule.Category)
		}
		byCategory[rule.Category] = append(byCategory[rule.Category], rule)
	}
	sort.Strings(categories)

	var out []domain.Rule
	for _, category := range categories {
		group := byCategory[category]
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].Logic.Priority != group[j].Logic.Priority {
				return group[i].Logic.Priority < group[j].Logic.Priority
			}
			return group[i].ID < group[j].ID
		})
		if domain.CategorySemantics(category) == domain.SemanticsExclusive {
			out = append(out, group[0])
			continue
		}
		out = append(out, group...)
	}
	return out
}

func knownCondition(t domain.ConditionType) bool {
	switch t {
	case domain.CondVendorNotInGSTR2B, domain.CondRecipientNotRegistered,
		domain.CondBlockedCategory, domain.CondAmountMismatch, domain.CondPartialExempt:
		return true
	default:
		return false
	}
}

func conditionMatches(cond domain.Condition, inv domain.InvoiceRecord, stmt *domain.GSTR2BStatement) bool {
	switch cond.Type {
	case domain.CondVendorNotInGSTR2B:
		// Missing statement means the vendor cannot be verified: the
		// condition holds until evidence says otherwise.
		if stmt == nil {
			return true
		}
		return !stmt.HasVendor(inv.VendorGSTIN)

	case domain.CondRecipientNotRegistered:
		return inv.RecipientGSTIN == ""

	case domain.CondBlockedCategory:
		for _, category := range cond.Categories {
			if category != "" && strings.EqualFold(category, inv.Category) {
				return true
			}
		}
		for _, prefix := range cond.HSNPrefixes {
			if prefix != "" && strings.HasPrefix(inv.HSNCode, prefix) {
				return true
			}
		}
		return false

	case domain.CondAmountMismatch:
		if stmt == nil {
			return false
		}
		line := findStatementLine(stmt, inv)
		if line == nil {
			return false
		}
		tolerance := cond.Tolerance
		if tolerance <= 0 {
			tolerance = 0.01
		}
		delta := math.Abs(line.Total() - inv.Total())
		return delta > tolerance*math.Max(inv.Total(), 1)

	case domain.CondPartialExempt:
		// Rule 42 proportional reversal applies to inputs used for both
		// taxable and exempt supplies.
		return cond.ExemptRatio > 0 && (strings.EqualFold(inv.Category, "common") || strings.EqualFold(inv.Category, "mixed"))

	default:
		return false
	}
}

func findStatementLine(stmt *domain.GSTR2BStatement, inv domain.InvoiceRecord) *domain.InvoiceRecord {
	for i := range stmt.Lines {
		line := &stmt.Lines[i]
		if line.VendorGSTIN == inv.VendorGSTIN && normalizeInvoiceNumber(line.InvoiceNumber) == normalizeInvoiceNumber(inv.InvoiceNumber) {
			return line
		}
	}
	return nil
}

func blockedAmount(logic domain.RuleLogic, tax float64) float64 {
	pct := logic.ActionPercent
	switch logic.Action {
	case domain.ActionBlockITC, domain.ActionReverseITC:
		if pct <= 0 || pct > 100 {
			pct = 100
		}
		return tax * pct / 100
	case domain.ActionPartialITC:
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		return tax * (100 - pct) / 100
	default:
		return 0
	}
}

func pendingResult(inv domain.InvoiceRecord, reason string) domain.EvaluationResult {
	return domain.EvaluationResult{
		InvoiceNumber:  inv.InvoiceNumber,
		VendorGSTIN:    inv.VendorGSTIN,
		State:          domain.EvalPending,
		TaxableValue:   inv.TaxableValue,
		TotalTax:       inv.TaxAmount,
		Reason:         reason,
		Recommendation: "hold the claim until the rule set is available",
	}
}

func aggregate(results []domain.EvaluationResult) domain.EvaluationAggregate {
	agg := domain.EvaluationAggregate{TotalInvoices: len(results)}
	for _, res := range results {
		agg.TotalClaimed += res.TotalTax
		switch res.State {
		case domain.EvalEligible:
			agg.EligibleCount++
			agg.TotalAllowed += res.EligibleAmount
		case domain.EvalBlocked:
			agg.BlockedCount++
			agg.TotalBlocked += res.BlockedAmount
		case domain.EvalPartial:
			agg.EligibleCount++
			agg.TotalAllowed += res.EligibleAmount
			agg.TotalBlocked += res.BlockedAmount
		case domain.EvalPending:
			agg.PendingCount++
		}
	}
	if agg.TotalClaimed > 0 {
		agg.AllowedPct = agg.TotalAllowed / agg.TotalClaimed * 100
	}
	return agg
}

func describeLogic(logic domain.RuleLogic) string {
	var condition string
	switch logic.Condition.Type {
	case domain.CondVendorNotInGSTR2B:
		condition = "the vendor does not appear in the GSTR-2B statement for the period"
	case domain.CondRecipientNotRegistered:
		condition = "the recipient has no GSTIN on record"
	case domain.CondBlockedCategory:
		parts := append([]string{}, logic.Condition.Categories...)
		for _, p := range logic.Condition.HSNPrefixes {
			parts = append(parts, "HSN "+p)
		}
		condition = "the supply falls in a blocked category (" + strings.Join(parts, ", ") + ")"
	case domain.CondAmountMismatch:
		condition = fmt.Sprintf("the invoice amount differs from GSTR-2B beyond tolerance %.2f", logic.Condition.Tolerance)
	case domain.CondPartialExempt:
		condition = fmt.Sprintf("inputs are partly used for exempt supplies (exempt ratio %.2f)", logic.Condition.ExemptRatio)
	default:
		condition = fmt.Sprintf("unknown condition %q", logic.Condition.Type)
	}

	var action string
	switch logic.Action {
	case domain.ActionBlockITC:
		action = "the input tax credit is blocked"
	case domain.ActionReverseITC:
		action = "previously claimed credit must be reversed"
	case domain.ActionPartialITC:
		action = fmt.Sprintf("only %.0f%% of the credit may be claimed", logic.ActionPercent)
	default:
		action = "no action"
	}

	return fmt.Sprintf("When %s, %s.", condition, action)
}

// scenarioTriggers is a keyword heuristic over the free-text scenario:
// it answers "would this rule fire", not "is the scenario compliant".
func scenarioTriggers(cond domain.Condition, scenario string) bool {
	s := strings.ToLower(scenario)
	if s == "" {
		return false
	}
	switch cond.Type {
	case domain.CondVendorNotInGSTR2B:
		return strings.Contains(s, "not in gstr") || strings.Contains(s, "missing from gstr") ||
			strings.Contains(s, "not filed") || strings.Contains(s, "vendor missing")
	case domain.CondRecipientNotRegistered:
		return strings.Contains(s, "unregistered") || strings.Contains(s, "no gstin")
	case domain.CondBlockedCategory:
		for _, category := range cond.Categories {
			if category != "" && strings.Contains(s, strings.ToLower(category)) {
				return true
			}
		}
		for _, prefix := range cond.HSNPrefixes {
			if prefix != "" && strings.Contains(s, strings.ToLower(prefix)) {
				return true
			}
		}
		return false
	case domain.CondAmountMismatch:
		return strings.Contains(s, "mismatch") || strings.Contains(s, "differs") || strings.Contains(s, "difference")
	case domain.CondPartialExempt:
		return strings.Contains(s, "exempt")
	default:
		return false
	}
}
