// Package grounding enforces the tools-only contract: no number reaches the
// user unless it is reconstructable from the FactPack. A displayed value is
// valid when it matches a pooled fact within tolerance, equals the sum of the
// whole pool, or reads as a whole percent relating two pooled facts. The
// sum and percent leniencies can admit coincidental combinations of
// unrelated facts; that is a property of the rule, kept as-is.
package grounding

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/walletmind/walletmind/factpack"
)

// Tolerance is the absolute difference allowed between a displayed value and
// the fact it claims to be.
const Tolerance = 0.01

// percentSlack absorbs rounding when a draft displays a whole percent of a
// ratio like 199/500.
const percentSlack = 0.5

// epsilon absorbs float formatting error so a value exactly Tolerance away
// still passes.
const epsilon = 1e-9

var (
	dollarRe    = regexp.MustCompile(`\$\s?(\d[\d,]*(?:\.\d+)?)`)
	percentRe   = regexp.MustCompile(`(\d[\d,]*(?:\.\d+)?)\s?%`)
	isoDateRe   = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	slashDateRe = regexp.MustCompile(`\b\d{1,2}/\d{1,2}(?:/\d{2,4})?\b`)
	monthDateRe = regexp.MustCompile(`(?i)\b(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:t|tember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?\s+\d{1,2}(?:st|nd|rd|th)?(?:,?\s+\d{4})?\b`)
	dayFirstRe  = regexp.MustCompile(`(?i)\b\d{1,2}(?:st|nd|rd|th)?\s+(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:t|tember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?(?:,?\s+\d{4})?\b`)
	yearRe      = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
	bareRe      = regexp.MustCompile(`\b\d[\d,]*(?:\.\d+)?\b`)
)

// ExtractNumbers scans text for dollar amounts, percents, and bare numbers,
// normalizing formatting ($ and , stripped). Date tokens are removed before
// the bare-number pass: dates are the time guard's concern, not amounts.
// Only positive values are candidates.
func ExtractNumbers(text string) []float64 {
	var numbers []float64
	rest := text

	rest = consume(rest, dollarRe, &numbers)
	rest = consume(rest, percentRe, &numbers)

	rest = isoDateRe.ReplaceAllString(rest, " ")
	rest = slashDateRe.ReplaceAllString(rest, " ")
	rest = monthDateRe.ReplaceAllString(rest, " ")
	rest = dayFirstRe.ReplaceAllString(rest, " ")
	rest = yearRe.ReplaceAllString(rest, " ")

	consume(rest, bareRe, &numbers)
	return numbers
}

// consume appends every positive match to numbers and blanks the matched
// spans so later passes do not re-extract them.
func consume(text string, re *regexp.Regexp, numbers *[]float64) string {
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		candidate := m[0]
		if len(m) > 1 {
			candidate = m[1]
		}
		candidate = strings.ReplaceAll(candidate, ",", "")
		candidate = strings.TrimSpace(strings.TrimPrefix(candidate, "$"))
		if v, err := strconv.ParseFloat(candidate, 64); err == nil && v > 0 {
			*numbers = append(*numbers, v)
		}
	}
	return re.ReplaceAllString(text, " ")
}

// PoolValues flattens the pack's fact pool to its numeric values.
func PoolValues(fp *factpack.FactPack) []float64 {
	return factpack.Values(fp.Pool())
}

// IsValid reports whether n is reconstructable from the pool: a direct match
// within Tolerance, the sum of all pool values, or a whole percent relating
// two pool values.
func IsValid(n float64, pool []float64) bool {
	if n <= 0 {
		return false
	}
	for _, p := range pool {
		if math.Abs(n-p) <= Tolerance+epsilon {
			return true
		}
	}
	var sum float64
	for _, p := range pool {
		sum += p
	}
	if sum > 0 && math.Abs(n-sum) <= Tolerance+epsilon {
		return true
	}
	return isWholePercent(n, pool)
}

// isWholePercent reports whether n reads as a whole percent (0, 100] whose
// application to one pool value lands on another: "40% used" grounds against
// spent 200 of limit 500 because 40% of 500 is 200, while "60% used" does
// not because 60% of no pooled value is itself pooled.
func isWholePercent(n float64, pool []float64) bool {
	if n <= 0 || n > 100 {
		return false
	}
	if math.Abs(n-math.Round(n)) > epsilon {
		return false
	}
	for _, base := range pool {
		if base <= 0 {
			continue
		}
		for _, part := range pool {
			if part <= 0 || part > base {
				continue
			}
			pct := part / base * 100
			if math.Abs(pct-n) <= percentSlack {
				return true
			}
		}
	}
	return false
}

// Report is the outcome of validating one piece of model text.
type Report struct {
	Valid      bool
	Violations []string
	Invented   []float64
}

// ValidateText extracts every number from text and checks each against the
// pack's pool. Failures are recorded as invented numbers; the function never
// returns an error.
func ValidateText(text string, fp *factpack.FactPack) Report {
	report := Report{Valid: true}
	pool := PoolValues(fp)
	for _, n := range ExtractNumbers(text) {
		if !IsValid(n, pool) {
			report.Valid = false
			report.Invented = append(report.Invented, n)
			report.Violations = append(report.Violations,
				fmt.Sprintf("invented number %s is not grounded in the facts", FormatMoney(n)))
		}
	}
	return report
}

// ProcessResult is the outcome of running model text through the contract.
type ProcessResult struct {
	Text         string
	Valid        bool
	Violations   []string
	FallbackUsed bool
}

// ProcessModelText validates model text and, on any violation, discards it
// entirely in favor of an intent-specific template built from FactPack
// aggregates, which is grounded by construction.
func ProcessModelText(text string, fp *factpack.FactPack, intent Intent) ProcessResult {
	report := ValidateText(text, fp)
	if report.Valid {
		return ProcessResult{Text: text, Valid: true}
	}
	return ProcessResult{
		Text:         FallbackText(intent, fp),
		Valid:        false,
		Violations:   report.Violations,
		FallbackUsed: true,
	}
}
