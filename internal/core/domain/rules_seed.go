package domain

import "time"

// DefaultRuleBundle is the baseline CGST rule set installed on first
// start and used as the test fixture.
func DefaultRuleBundle() RuleBundle {
	effectiveFrom := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	released := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	return RuleBundle{
		Version:    "2024.04",
		Changelog:  "baseline CGST rule set",
		ReleasedAt: released,
		Rules: []Rule{
			{
				ID:            "rule-36-4",
				Name:          "Rule 36(4)",
				Text:          "Input tax credit may be availed only for invoices furnished by the supplier in GSTR-1 and reflected in the recipient's GSTR-2B.",
				Citation:      "Rule 36(4), CGST Rules 2017",
				Category:      "itc",
				EffectiveFrom: effectiveFrom,
				Active:        true,
				Logic: RuleLogic{
					RuleID:        "rule-36-4",
					Condition:     Condition{Type: CondVendorNotInGSTR2B},
					Action:        ActionBlockITC,
					ActionPercent: 100,
					Priority:      10,
					Active:        true,
				},
			},
			{
				ID:            "rule-42",
				Name:          "Rule 42",
				Text:          "Credit on inputs used partly for exempt supplies shall be reversed in proportion to the exempt turnover.",
				Citation:      "Rule 42, CGST Rules 2017",
				Category:      "itc",
				EffectiveFrom: effectiveFrom,
				Active:        true,
				Logic: RuleLogic{
					RuleID:        "rule-42",
					Condition:     Condition{Type: CondPartialExempt, ExemptRatio: 0.25},
					Action:        ActionPartialITC,
					ActionPercent: 75,
					Priority:      30,
					Active:        true,
				},
			},
			{
				ID:            "sec-17-5",
				Name:          "Section 17(5)",
				Text:          "Input tax credit shall not be available in respect of blocked supplies including food and beverages for personal consumption and motor fuel.",
				Citation:      "Section 17(5), CGST Act 2017",
				Category:      "itc",
				EffectiveFrom: effectiveFrom,
				Active:        true,
				Logic: RuleLogic{
					RuleID:        "sec-17-5",
					Condition:     Condition{Type: CondBlockedCategory, Categories: []string{"food", "beverages", "personal"}, HSNPrefixes: []string{"2203", "2710"}},
					Action:        ActionBlockITC,
					ActionPercent: 100,
					Priority:      20,
					Active:        true,
				},
			},
			{
				ID:            "sec-16-2",
				Name:          "Section 16(2)",
				Text:          "No registered person shall be entitled to credit unless in possession of a tax invoice issued to a registered recipient.",
				Citation:      "Section 16(2), CGST Act 2017",
				Category:      "eligibility",
				EffectiveFrom: effectiveFrom,
				Active:        true,
				Logic: RuleLogic{
					RuleID:        "sec-16-2",
					Condition:     Condition{Type: CondRecipientNotRegistered},
					Action:        ActionBlockITC,
					ActionPercent: 100,
					Priority:      5,
					Active:        true,
				},
			},
		},
	}
}
