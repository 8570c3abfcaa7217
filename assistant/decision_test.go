package assistant

import "testing"

func cleanCritic() *CriticReport {
	return &CriticReport{OK: true, Risk: RiskLow, Source: CriticModel}
}

func TestDecideApproved(t *testing.T) {
	d := Decide(groundedDraft(), cleanCritic(), testPack(), DefaultDecisionPolicy())
	if d.Path != PathReturn {
		t.Fatalf("path = %q, want return", d.Path)
	}
	if d.Reason != "approved" {
		t.Errorf("reason = %q", d.Reason)
	}
}

func TestDecideWriterClarificationWinsOverEverything(t *testing.T) {
	out := conservativeDraft()
	badCritic := &CriticReport{OK: false, Risk: RiskHigh, RecommendEscalation: true, Source: CriticModel}

	d := Decide(out, badCritic, testPack(), DefaultDecisionPolicy())
	if d.Path != PathClarify || d.Reason != "writer_requires_clarification" {
		t.Errorf("decision = %+v, want clarify/writer_requires_clarification", d)
	}

	d = Decide(nil, cleanCritic(), testPack(), DefaultDecisionPolicy())
	if d.Path != PathClarify {
		t.Errorf("nil draft path = %q, want clarify", d.Path)
	}
}

func TestDecideEasyGuardFailure(t *testing.T) {
	out := strategyDraft()
	out.AnswerText = "You could set aside $300.00 a month for the vacation goal."

	d := Decide(out, cleanCritic(), testPack(), DefaultDecisionPolicy())
	if d.Path != PathClarify {
		t.Fatalf("path = %q, want clarify", d.Path)
	}
	if d.Reason != "guard_fail_easy" {
		t.Errorf("reason = %q, want guard_fail_easy", d.Reason)
	}
}

func TestDecideHardGuardFailure(t *testing.T) {
	out := groundedDraft()
	out.AnswerText = "Your checking balance is $2,000.00."

	d := Decide(out, cleanCritic(), testPack(), DefaultDecisionPolicy())
	if d.Path != PathEscalate {
		t.Fatalf("path = %q, want escalate", d.Path)
	}
	if d.Reason != "guard_fail_unknown_amount" {
		t.Errorf("reason = %q, want guard_fail_unknown_amount", d.Reason)
	}
}

func TestDecideMixedGuardFailuresSortedReason(t *testing.T) {
	// an invented number plus a bare strategy: one hard failure drags the
	// easy one along into the escalation reason, sorted for determinism
	out := strategyDraft()
	out.AnswerText = "Set aside $2,000.00 a month."

	d := Decide(out, cleanCritic(), testPack(), DefaultDecisionPolicy())
	if d.Path != PathEscalate {
		t.Fatalf("path = %q, want escalate", d.Path)
	}
	if d.Reason != "guard_fail_missing_disclaimer,unknown_amount" {
		t.Errorf("reason = %q", d.Reason)
	}
}

func TestDecideCriticBranches(t *testing.T) {
	tests := []struct {
		name   string
		critic *CriticReport
		path   Path
		reason string
	}{
		{
			"recommend escalation",
			&CriticReport{OK: false, Risk: RiskMedium, RecommendEscalation: true, Source: CriticModel},
			PathEscalate, "critic_escalation",
		},
		{
			"high risk",
			&CriticReport{OK: false, Risk: RiskHigh, Source: CriticModel},
			PathEscalate, "critic_escalation",
		},
		{
			"mild concern",
			&CriticReport{OK: false, Risk: RiskLow, Source: CriticModel},
			PathClarify, "critic_ambiguity",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(groundedDraft(), tt.critic, testPack(), DefaultDecisionPolicy())
			if d.Path != tt.path || d.Reason != tt.reason {
				t.Errorf("decision = %+v, want %s/%s", d, tt.path, tt.reason)
			}
		})
	}
}

func TestDecideStrategyAtMediumRisk(t *testing.T) {
	critic := &CriticReport{OK: true, Risk: RiskMedium, Source: CriticModel}

	d := Decide(strategyDraft(), critic, testPack(), DefaultDecisionPolicy())
	if d.Path != PathEscalate || d.Reason != "high_stakes_strategy" {
		t.Errorf("decision = %+v, want escalate/high_stakes_strategy", d)
	}

	// the same risk on plain status content returns normally
	d = Decide(groundedDraft(), critic, testPack(), DefaultDecisionPolicy())
	if d.Path != PathReturn {
		t.Errorf("status at medium risk path = %q, want return", d.Path)
	}
}

func TestDecideDeterministic(t *testing.T) {
	out := strategyDraft()
	out.AnswerText = "Set aside $2,000.00 a month."
	critic := &CriticReport{OK: false, Risk: RiskHigh, Source: CriticModel}
	fp := testPack()
	policy := DefaultDecisionPolicy()

	first := Decide(out, critic, fp, policy)
	for i := 0; i < 10; i++ {
		if got := Decide(out, critic, fp, policy); got != first {
			t.Fatalf("run %d gave %+v, first run gave %+v", i, got, first)
		}
	}
}

func TestIsHighStakes(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"Help me build a 6 month debt payoff plan", true},
		{"Should I refinance my mortgage?", true},
		{"How do I plan for retirement?", true},
		{"Put together a 2 year savings plan", true},
		{"How are my budgets doing?", false},
		{"What did I spend on groceries last week?", false},
		{"What's my plan for dinner?", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsHighStakes(tt.query); got != tt.want {
			t.Errorf("IsHighStakes(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}
