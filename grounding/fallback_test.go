package grounding

import (
	"strings"
	"testing"
	"time"

	"github.com/walletmind/walletmind/factpack"
)

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1234.56, "$1,234.56"},
		{1500, "$1,500.00"},
		{0.5, "$0.50"},
		{999, "$999.00"},
		{1000000, "$1,000,000.00"},
		{15.99, "$15.99"},
		{-42.5, "-$42.50"},
	}
	for _, tt := range tests {
		if got := FormatMoney(tt.in); got != tt.want {
			t.Errorf("FormatMoney(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFallbackTextByIntent(t *testing.T) {
	fp := &factpack.FactPack{
		UserID: "sanitized",
		Window: factpack.TimeWindow{
			Start: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
		},
		Budgets: []factpack.BudgetFact{
			{ID: "b1", Category: "dining", Spent: 200, Limit: 500},
		},
		Goals: []factpack.GoalFact{
			{ID: "g1", Name: "Emergency fund", Target: 5000, Current: 1250},
		},
		Balances: []factpack.BalanceFact{
			{AccountID: "acc-1", Current: 1500},
		},
		Recurring: []factpack.RecurringFact{
			{ID: "r1", Merchant: "StreamCo", Amount: 15.99, Frequency: "monthly"},
		},
		Patterns: &factpack.SpendingPatterns{AverageDaily: 38.2, TotalSpent: 1146},
	}

	tests := []struct {
		intent   Intent
		contains []string
	}{
		{IntentBalance, []string{"$1,500.00"}},
		{IntentBudget, []string{"dining", "$200.00", "$500.00"}},
		{IntentGoal, []string{"Emergency fund", "$1,250.00", "$5,000.00"}},
		{IntentSpending, []string{"$1,146.00", "$38.20"}},
		{IntentRecurring, []string{"StreamCo", "$15.99", "monthly"}},
		{IntentGeneral, []string{"balances, budgets, goals"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.intent), func(t *testing.T) {
			got := FallbackText(tt.intent, fp)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("fallback for %s missing %q: %q", tt.intent, want, got)
				}
			}
		})
	}
}

func TestFallbackTextAlwaysGrounded(t *testing.T) {
	fp := &factpack.FactPack{
		UserID: "sanitized",
		Window: factpack.TimeWindow{
			Start: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
		},
		Balances: []factpack.BalanceFact{
			{AccountID: "acc-1", Current: 1500},
			{AccountID: "acc-2", Current: 2500},
		},
	}

	text := FallbackText(IntentBalance, fp)
	if got := ValidateText(text, fp); !got.Valid {
		t.Errorf("balance fallback not grounded: %q -> %v", text, got.Violations)
	}
	if !strings.Contains(text, "$4,000.00") {
		t.Errorf("expected combined balance, got %q", text)
	}
}

func TestFallbackTextEmptyPack(t *testing.T) {
	fp := &factpack.FactPack{UserID: "sanitized"}

	for _, intent := range []Intent{IntentBalance, IntentBudget, IntentGoal, IntentSpending, IntentRecurring, IntentGeneral} {
		got := FallbackText(intent, fp)
		if got == "" {
			t.Errorf("empty fallback for %s", intent)
		}
		if strings.Contains(got, "$") {
			t.Errorf("fallback for %s renders money with no facts: %q", intent, got)
		}
	}

	if got := FallbackText(IntentGeneral, nil); got == "" {
		t.Error("nil pack should still produce a generic fallback")
	}
}
