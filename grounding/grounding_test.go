package grounding

import (
	"math"
	"testing"
	"time"

	"github.com/walletmind/walletmind/factpack"
)

func testPack() *factpack.FactPack {
	return &factpack.FactPack{
		UserID: "sanitized",
		Window: factpack.TimeWindow{
			Start: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC),
		},
		Balances: []factpack.BalanceFact{
			{AccountID: "acc-1", Current: 1500, Currency: "USD"},
		},
	}
}

func TestExtractNumbers(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []float64
	}{
		{"dollar amount", "Your balance is $1,234.56 today.", []float64{1234.56}},
		{"percent", "You've used 40% of your budget.", []float64{40}},
		{"bare decimal", "That works out to 38.2 per day.", []float64{38.2}},
		{"bare integer", "You made 14 purchases.", []float64{14}},
		{"mixed", "Spent $200 of $500, which is 40%.", []float64{200, 500, 40}},
		{"month date skipped", "As of March 31, 2025 your balance is $1500.", []float64{1500}},
		{"iso date skipped", "Between 2025-03-01 and 2025-03-31 you spent $42.50.", []float64{42.50}},
		{"slash date skipped", "On 3/15/2025 you paid $15.99.", []float64{15.99}},
		{"bare year skipped", "Your 2025 spending is on track.", nil},
		{"negative ignored", "An adjustment of -$50 was applied.", []float64{50}},
		{"no numbers", "Everything looks fine.", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractNumbers(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("ExtractNumbers(%q) = %v, want %v", tt.text, got, tt.want)
			}
			for i := range got {
				if math.Abs(got[i]-tt.want[i]) > 1e-9 {
					t.Errorf("number %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestIsValidDirectMatch(t *testing.T) {
	pool := []float64{1500, 200, 500}

	if !IsValid(1500, pool) {
		t.Error("exact pool value rejected")
	}
	if !IsValid(1500.01, pool) {
		t.Error("value exactly 0.01 off should be accepted")
	}
	if IsValid(1500.02, pool) {
		t.Error("value 0.02 off should be rejected")
	}
	if IsValid(2000, pool) {
		t.Error("value absent from pool accepted")
	}
	if IsValid(-1500, pool) {
		t.Error("negative value accepted")
	}
	if IsValid(0, pool) {
		t.Error("zero accepted")
	}
}

func TestIsValidSumOfPool(t *testing.T) {
	pool := []float64{1500, 2500}
	if !IsValid(4000, pool) {
		t.Error("sum of all pool values rejected")
	}
	if IsValid(4000, nil) {
		t.Error("sum accepted against empty pool")
	}
}

func TestIsValidWholePercent(t *testing.T) {
	// budget spent 200 of limit 500
	pool := []float64{200, 500}

	if !IsValid(40, pool) {
		t.Error("40 should be valid: 40% of 500 is 200")
	}
	if IsValid(60, pool) {
		t.Error("60 should be invalid: 60% of no pool value is pooled")
	}
	if !IsValid(100, pool) {
		t.Error("100 should be valid: 100% of a pool value is itself")
	}
	if IsValid(40.4, pool) {
		t.Error("non-whole percent accepted")
	}

	// 199 of 500 is 39.8%, displayed rounded as 40%
	rounded := []float64{199, 500}
	if !IsValid(40, rounded) {
		t.Error("rounded whole percent rejected")
	}
}

func TestValidateTextCatchesInventedNumbers(t *testing.T) {
	fp := testPack()

	ok := ValidateText("Your current balance is $1500.00 as of March 31, 2025.", fp)
	if !ok.Valid {
		t.Errorf("grounded draft rejected: %v", ok.Violations)
	}

	bad := ValidateText("Your current balance is $2000.00.", fp)
	if bad.Valid {
		t.Error("invented number passed validation")
	}
	if len(bad.Invented) != 1 || bad.Invented[0] != 2000 {
		t.Errorf("invented numbers = %v, want [2000]", bad.Invented)
	}
	if len(bad.Violations) != 1 {
		t.Errorf("expected 1 violation, got %v", bad.Violations)
	}
}

func TestValidateTextPerturbation(t *testing.T) {
	fp := testPack()
	draft := "Your current balance is $1500.00."
	if got := ValidateText(draft, fp); !got.Valid {
		t.Fatalf("baseline draft rejected: %v", got.Violations)
	}

	perturbed := []string{
		"Your current balance is $1501.00.",
		"Your current balance is $150.00.",
		"Your current balance is $15000.00.",
	}
	for _, text := range perturbed {
		if got := ValidateText(text, fp); got.Valid {
			t.Errorf("perturbed draft passed: %q", text)
		}
	}
}

func TestProcessModelText(t *testing.T) {
	fp := testPack()

	passed := ProcessModelText("Your current balance is $1500.00.", fp, IntentBalance)
	if !passed.Valid || passed.FallbackUsed {
		t.Errorf("valid text should pass through unchanged: %+v", passed)
	}
	if passed.Text != "Your current balance is $1500.00." {
		t.Errorf("text altered: %q", passed.Text)
	}

	replaced := ProcessModelText("Your current balance is $2000.00.", fp, IntentBalance)
	if replaced.Valid || !replaced.FallbackUsed {
		t.Errorf("invalid text should trigger the fallback: %+v", replaced)
	}
	if replaced.Text == "Your current balance is $2000.00." {
		t.Error("invented text surfaced")
	}
	// the substituted template is grounded by construction
	if got := ValidateText(replaced.Text, fp); !got.Valid {
		t.Errorf("fallback text itself failed validation: %v", got.Violations)
	}
	if len(replaced.Violations) == 0 {
		t.Error("violations not reported")
	}
}
