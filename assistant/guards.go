package assistant

import (
	"fmt"
	"strings"

	"github.com/walletmind/walletmind/factpack"
	"github.com/walletmind/walletmind/grounding"
)

// Phrases an answer may never contain. Matched case-insensitively as
// substrings; "promise" deliberately misses "promising".
var forbiddenPhrases = []string{
	"guarantee",
	"promise",
	"risk-free",
	"risk free",
	"zero risk",
	"zero-risk",
	"can't lose",
	"cannot lose",
	"foolproof",
	"surefire",
}

// CheckNumbers validates the draft's numbers two ways: every declared
// mention must be reconstructable from the pool (with its fact_id matching
// that fact's own values), and the prose itself is re-extracted so a number
// the mentions array omitted still fails.
func CheckNumbers(out *WriterOutput, fp *factpack.FactPack) GuardReport {
	report := GuardReport{Guard: GuardNumbers, OK: true}

	pool := fp.Pool()
	values := factpack.Values(pool)
	factIDs := knownFactIDs(fp)

	for i, m := range out.NumericMentions {
		key := fmt.Sprintf("mention_%d", i)
		if m.Value <= 0 {
			report.fail(FailUnknownAmount, key, fmt.Sprintf("non-positive value %v", m.Value))
			continue
		}
		if !grounding.IsValid(m.Value, values) {
			report.fail(FailUnknownAmount, key, fmt.Sprintf("value %v is not grounded in the facts", m.Value))
			continue
		}
		if m.FactID == "" {
			continue
		}
		factValues := valuesForFact(pool, m.FactID)
		if len(factValues) == 0 {
			report.fail(FailMissingFact, key, fmt.Sprintf("fact id %q is not in the pack", m.FactID))
			continue
		}
		if !grounding.IsValid(m.Value, factValues) {
			report.fail(FailMissingFact, key,
				fmt.Sprintf("value %v does not come from fact %q", m.Value, m.FactID))
		}
	}

	for i, id := range out.UsedFactIDs {
		if !factIDs[id] {
			report.fail(FailMissingFact, fmt.Sprintf("used_fact_%d", i),
				fmt.Sprintf("fact id %q is not in the pack", id))
		}
	}

	prose := grounding.ValidateText(out.AnswerText, fp)
	for i, n := range prose.Invented {
		report.fail(FailUnknownAmount, fmt.Sprintf("prose_%d", i),
			fmt.Sprintf("prose shows %v which is not grounded in the facts", n))
	}

	return report
}

// CheckTimeWindow flags any date the prose mentions that falls outside the
// pack's window. Year-less tokens resolve against the window start.
func CheckTimeWindow(out *WriterOutput, fp *factpack.FactPack) GuardReport {
	report := GuardReport{Guard: GuardTime, OK: true}
	if fp == nil {
		return report
	}

	for i, d := range grounding.ExtractDates(out.AnswerText, fp.Window.Start) {
		if !fp.Window.Contains(d) {
			report.fail(FailOutOfWindowDate, fmt.Sprintf("date_%d", i),
				fmt.Sprintf("%s is outside the %s to %s window",
					d.Format("2006-01-02"),
					fp.Window.Start.Format("2006-01-02"),
					fp.Window.End.Format("2006-01-02")))
		}
	}

	return report
}

// CheckClaims rejects forbidden phrasing and requires strategy content to
// carry the educational disclaimer.
func CheckClaims(out *WriterOutput, fp *factpack.FactPack) GuardReport {
	report := GuardReport{Guard: GuardClaims, OK: true}

	lower := strings.ToLower(out.AnswerText)
	for _, phrase := range forbiddenPhrases {
		if strings.Contains(lower, phrase) {
			report.fail(FailForbiddenClaim, "phrase_"+phrase,
				fmt.Sprintf("answer contains forbidden phrase %q", phrase))
		}
	}

	if out.ContentKind == ContentStrategy && !hasDisclaimer(out.AnswerText) {
		report.fail(FailMissingDisclaimer, "disclaimer",
			"strategy content is missing the educational disclaimer")
	}

	return report
}

// RunGuards evaluates all three guards. Guards are pure: the same draft and
// pack always produce the same reports.
func RunGuards(out *WriterOutput, fp *factpack.FactPack) []GuardReport {
	return []GuardReport{
		CheckNumbers(out, fp),
		CheckTimeWindow(out, fp),
		CheckClaims(out, fp),
	}
}

// CollectFailures flattens reports into a deduplicated failure list,
// preserving guard order.
func CollectFailures(reports []GuardReport) []GuardFailure {
	var failures []GuardFailure
	seen := make(map[GuardFailure]bool)
	for _, r := range reports {
		for _, f := range r.Failures {
			if !seen[f] {
				seen[f] = true
				failures = append(failures, f)
			}
		}
	}
	return failures
}

func (r *GuardReport) fail(f GuardFailure, key, detail string) {
	r.OK = false
	found := false
	for _, existing := range r.Failures {
		if existing == f {
			found = true
			break
		}
	}
	if !found {
		r.Failures = append(r.Failures, f)
	}
	if r.Details == nil {
		r.Details = make(map[string]string)
	}
	r.Details[key] = detail
}

// valuesForFact narrows the pool to one fact's own values so provenance
// checks keep the same tolerance and percent rules, scoped to that fact.
func valuesForFact(pool []factpack.PoolEntry, factID string) []float64 {
	var values []float64
	for _, e := range pool {
		if e.FactID == factID {
			values = append(values, e.Value)
		}
	}
	return values
}

// knownFactIDs collects every entity id a draft may cite, straight from the
// pack rather than the pool so zero-valued facts still resolve.
func knownFactIDs(fp *factpack.FactPack) map[string]bool {
	ids := make(map[string]bool)
	if fp == nil {
		return ids
	}
	for _, b := range fp.Budgets {
		ids[b.ID] = true
	}
	for _, g := range fp.Goals {
		ids[g.ID] = true
	}
	for _, b := range fp.Balances {
		ids[b.AccountID] = true
	}
	for _, r := range fp.Recurring {
		ids[r.ID] = true
	}
	for _, t := range fp.Transactions {
		ids[t.ID] = true
	}
	if fp.Patterns != nil {
		ids[factpack.PatternsFactID] = true
	}
	return ids
}
