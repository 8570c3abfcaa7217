package assistant

import "strings"

// DisclaimerText is the educational disclaimer strategy content must carry.
// It contains no digits, so appending it can never introduce a grounding
// violation.
const DisclaimerText = "This is educational information based on your own data, not financial advice. Consider talking to a qualified professional before making major decisions."

// cautionNote is attached to a draft that had to go out without its deeper
// review.
const cautionNote = "A deeper review of this answer was not available; treat it as a starting point rather than a plan."

var disclaimerMarkers = []string{
	"educational",
	"not financial advice",
	"informational purposes",
}

// hasDisclaimer reports whether text already reads as carrying an
// educational disclaimer.
func hasDisclaimer(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range disclaimerMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// failPolicy decides what the cascade does when a networked stage cannot
// produce a usable verdict. Both the critic and the improver share it so
// outages degrade the same way everywhere.
type failPolicy struct{}

// draftShowsTrouble reports whether a draft carries its own warning signs:
// it asked for clarification, admitted uncertainty, or proposes strategy.
func (failPolicy) draftShowsTrouble(out *WriterOutput) bool {
	if out == nil {
		return true
	}
	return out.RequiresClarification ||
		len(out.UncertaintyNotes) > 0 ||
		out.ContentKind == ContentStrategy
}

// criticFallback is the fail-closed verdict for an unreachable critic: a
// troubled draft escalates, a clean one passes. An unavailable critic never
// silently approves a risky draft.
func (p failPolicy) criticFallback(out *WriterOutput) *CriticReport {
	if p.draftShowsTrouble(out) {
		return &CriticReport{
			OK:                  false,
			Risk:                RiskMedium,
			RecommendEscalation: true,
			Source:              CriticFallback,
			Issues: []CriticIssue{{
				Type:   IssueAmbiguity,
				Detail: "review unavailable and the draft flagged its own uncertainty",
			}},
		}
	}
	return &CriticReport{OK: true, Risk: RiskLow, Source: CriticFallback}
}

// improverFallback augments the original draft instead of replacing it:
// grounded content is preserved, a caution note is added, and strategy
// content gains the disclaimer it may be missing.
func (failPolicy) improverFallback(out *WriterOutput) *WriterOutput {
	augmented := out.Clone()
	augmented.UncertaintyNotes = append(augmented.UncertaintyNotes, cautionNote)
	if augmented.ContentKind == ContentStrategy && !hasDisclaimer(augmented.AnswerText) {
		augmented.AnswerText = strings.TrimSpace(augmented.AnswerText + "\n\n" + DisclaimerText)
	}
	return augmented
}
