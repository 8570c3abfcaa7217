package assistant

import (
	"reflect"
	"testing"
)

func TestCheckNumbersAcceptsGroundedDraft(t *testing.T) {
	report := CheckNumbers(groundedDraft(), testPack())
	if !report.OK {
		t.Fatalf("grounded draft rejected: %v", report.Details)
	}
	if report.Guard != GuardNumbers {
		t.Errorf("guard name = %q", report.Guard)
	}
}

func TestCheckNumbersRejectsInventedProse(t *testing.T) {
	out := groundedDraft()
	out.AnswerText = "Your checking balance is $2,000.00."
	out.NumericMentions = nil

	report := CheckNumbers(out, testPack())
	if report.OK {
		t.Fatal("invented prose number passed")
	}
	if !containsFailure(report.Failures, FailUnknownAmount) {
		t.Errorf("failures = %v, want unknown_amount", report.Failures)
	}
}

func TestCheckNumbersRejectsUngroundedMention(t *testing.T) {
	out := groundedDraft()
	out.NumericMentions = append(out.NumericMentions,
		NumericMention{Value: 2000, Unit: UnitUSD, Kind: MentionLiteral})

	report := CheckNumbers(out, testPack())
	if report.OK {
		t.Fatal("ungrounded mention passed")
	}
	if !containsFailure(report.Failures, FailUnknownAmount) {
		t.Errorf("failures = %v, want unknown_amount", report.Failures)
	}
}

func TestCheckNumbersProvenanceMismatch(t *testing.T) {
	// 500 is in the pool (groceries limit) but not among acc-checking's
	// own values, so claiming that provenance must fail.
	out := groundedDraft()
	out.AnswerText = "Your grocery limit is $500.00."
	out.NumericMentions = []NumericMention{
		{Value: 500, Unit: UnitUSD, Kind: MentionLiteral, FactID: "acc-checking"},
	}

	report := CheckNumbers(out, testPack())
	if report.OK {
		t.Fatal("mismatched provenance passed")
	}
	if !containsFailure(report.Failures, FailMissingFact) {
		t.Errorf("failures = %v, want references_missing_fact", report.Failures)
	}
}

func TestCheckNumbersUnknownFactID(t *testing.T) {
	out := groundedDraft()
	out.NumericMentions[0].FactID = "acc-ghost"

	report := CheckNumbers(out, testPack())
	if report.OK {
		t.Fatal("unknown mention fact id passed")
	}

	out = groundedDraft()
	out.UsedFactIDs = []string{"acc-ghost"}
	report = CheckNumbers(out, testPack())
	if report.OK {
		t.Fatal("unknown used fact id passed")
	}
	if !containsFailure(report.Failures, FailMissingFact) {
		t.Errorf("failures = %v, want references_missing_fact", report.Failures)
	}
}

func TestCheckNumbersZeroValuedFactResolves(t *testing.T) {
	// acc-dormant has a zero balance, so it contributes nothing to the
	// value pool, but citing it is still legitimate.
	out := groundedDraft()
	out.UsedFactIDs = []string{"acc-checking", "acc-dormant"}

	report := CheckNumbers(out, testPack())
	if !report.OK {
		t.Errorf("zero-valued fact citation rejected: %v", report.Details)
	}
}

func TestCheckNumbersWholePercent(t *testing.T) {
	out := groundedDraft()
	out.AnswerText = "You've used 40% of your groceries budget."
	out.NumericMentions = []NumericMention{
		{Value: 40, Unit: UnitPercent, Kind: MentionPercent, FactID: "bud-groceries"},
	}
	if report := CheckNumbers(out, testPack()); !report.OK {
		t.Errorf("valid whole percent rejected: %v", report.Details)
	}

	out.AnswerText = "You've used 37% of your groceries budget."
	out.NumericMentions[0].Value = 37
	if report := CheckNumbers(out, testPack()); report.OK {
		t.Error("percent with no supporting pair passed")
	}
}

func TestCheckTimeWindow(t *testing.T) {
	fp := testPack()

	out := groundedDraft()
	out.AnswerText = "As of March 15, 2025 your checking balance is $1,500.00."
	if report := CheckTimeWindow(out, fp); !report.OK {
		t.Errorf("in-window date rejected: %v", report.Details)
	}

	out.AnswerText = "Your balance was $1,500.00 on April 2, 2025."
	report := CheckTimeWindow(out, fp)
	if report.OK {
		t.Fatal("out-of-window date passed")
	}
	if !containsFailure(report.Failures, FailOutOfWindowDate) {
		t.Errorf("failures = %v, want out_of_window_date", report.Failures)
	}

	// a year-less date resolves against the window start's year
	out.AnswerText = "Your balance on March 15 was $1,500.00."
	if report := CheckTimeWindow(out, fp); !report.OK {
		t.Errorf("year-less in-window date rejected: %v", report.Details)
	}
}

func TestCheckClaims(t *testing.T) {
	out := groundedDraft()
	out.AnswerText = "This approach is guaranteed to work."
	report := CheckClaims(out, testPack())
	if report.OK {
		t.Fatal("forbidden phrase passed")
	}
	if !containsFailure(report.Failures, FailForbiddenClaim) {
		t.Errorf("failures = %v, want forbidden_claim", report.Failures)
	}

	// "promising" is not a promise
	out.AnswerText = "Your savings trend looks promising."
	if report := CheckClaims(out, testPack()); !report.OK {
		t.Errorf("benign wording rejected: %v", report.Details)
	}
}

func TestCheckClaimsStrategyDisclaimer(t *testing.T) {
	bare := strategyDraft()
	bare.AnswerText = "You could set aside $300.00 a month for the vacation goal."
	report := CheckClaims(bare, testPack())
	if report.OK {
		t.Fatal("strategy without disclaimer passed")
	}
	if !containsFailure(report.Failures, FailMissingDisclaimer) {
		t.Errorf("failures = %v, want missing_disclaimer", report.Failures)
	}

	if report := CheckClaims(strategyDraft(), testPack()); !report.OK {
		t.Errorf("strategy with disclaimer rejected: %v", report.Details)
	}

	// status content needs no disclaimer
	if report := CheckClaims(groundedDraft(), testPack()); !report.OK {
		t.Errorf("status content rejected: %v", report.Details)
	}
}

func TestRunGuardsDeterministic(t *testing.T) {
	out := groundedDraft()
	out.AnswerText = "Your balance was $2,000.00 on April 2, 2025, guaranteed."
	fp := testPack()

	first := RunGuards(out, fp)
	second := RunGuards(out, fp)
	if !reflect.DeepEqual(first, second) {
		t.Error("identical inputs produced different reports")
	}
	if len(first) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(first))
	}
	if first[0].Guard != GuardNumbers || first[1].Guard != GuardTime || first[2].Guard != GuardClaims {
		t.Errorf("guard order = %v %v %v", first[0].Guard, first[1].Guard, first[2].Guard)
	}
	for _, r := range first {
		if r.OK {
			t.Errorf("guard %s passed a draft that violates all three", r.Guard)
		}
	}
}

func TestCollectFailures(t *testing.T) {
	reports := []GuardReport{
		{Guard: GuardNumbers, Failures: []GuardFailure{FailUnknownAmount, FailMissingFact}},
		{Guard: GuardTime, Failures: []GuardFailure{FailOutOfWindowDate}},
		{Guard: GuardClaims, Failures: []GuardFailure{FailUnknownAmount}},
	}
	got := CollectFailures(reports)
	want := []GuardFailure{FailUnknownAmount, FailMissingFact, FailOutOfWindowDate}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CollectFailures = %v, want %v", got, want)
	}

	if CollectFailures(nil) != nil {
		t.Error("no reports should yield no failures")
	}
}

func containsFailure(failures []GuardFailure, want GuardFailure) bool {
	for _, f := range failures {
		if f == want {
			return true
		}
	}
	return false
}
