package assistant

import (
	"regexp"
	"sort"
	"strings"

	"github.com/walletmind/walletmind/factpack"
)

// DecisionPolicy carries the tunable part of the decision engine: which
// guard failures are benign enough to resolve by asking rather than
// escalating.
type DecisionPolicy struct {
	EasyFailures map[GuardFailure]bool
}

// DefaultDecisionPolicy treats a missing disclaimer and an out-of-window
// date as recoverable through clarification; everything else escalates.
func DefaultDecisionPolicy() DecisionPolicy {
	return DecisionPolicy{
		EasyFailures: map[GuardFailure]bool{
			FailMissingDisclaimer: true,
			FailOutOfWindowDate:   true,
		},
	}
}

func (p DecisionPolicy) allEasy(failures []GuardFailure) bool {
	for _, f := range failures {
		if !p.EasyFailures[f] {
			return false
		}
	}
	return true
}

// Decide picks the route for a reviewed draft. It is pure: the same draft,
// verdict, and pack always produce the same decision. Checks run in strict
// priority order; the first hit wins.
func Decide(out *WriterOutput, critic *CriticReport, fp *factpack.FactPack, policy DecisionPolicy) Decision {
	if out == nil || out.RequiresClarification {
		return Decision{Path: PathClarify, Reason: "writer_requires_clarification"}
	}

	failures := CollectFailures(RunGuards(out, fp))
	if len(failures) > 0 {
		if policy.allEasy(failures) {
			return Decision{Path: PathClarify, Reason: "guard_fail_easy"}
		}
		return Decision{Path: PathEscalate, Reason: "guard_fail_" + joinFailures(failures)}
	}

	if critic != nil && !critic.OK {
		if critic.RecommendEscalation || critic.Risk == RiskHigh {
			return Decision{Path: PathEscalate, Reason: "critic_escalation"}
		}
		return Decision{Path: PathClarify, Reason: "critic_ambiguity"}
	}

	if out.ContentKind == ContentStrategy && critic != nil && critic.Risk == RiskMedium {
		return Decision{Path: PathEscalate, Reason: "high_stakes_strategy"}
	}

	return Decision{Path: PathReturn, Reason: "approved"}
}

func joinFailures(failures []GuardFailure) string {
	names := make([]string, len(failures))
	for i, f := range failures {
		names[i] = string(f)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

// highStakesPhrases mark queries that skip the drafting cascade and go
// straight to the stronger model. Stems ("refinanc", "consolidat") cover
// the word family.
var highStakesPhrases = []string{
	"debt payoff",
	"pay off my debt",
	"pay off debt",
	"debt consolidat",
	"consolidate my debt",
	"retire",
	"estate",
	"inheritance",
	"tax strateg",
	"tax planning",
	"refinanc",
	"investment allocation",
	"asset allocation",
	"portfolio",
	"mortgage",
}

// multiMonthPlanRe catches horizon planning ("6 month debt payoff plan",
// "2 year savings plan") regardless of topic.
var multiMonthPlanRe = regexp.MustCompile(`(?i)\b\d+\s*(?:month|year)s?\b[^.?!]*\bplan`)

// IsHighStakes reports whether a query asks for multi-step or long-horizon
// financial planning, which always warrants the stronger model.
func IsHighStakes(query string) bool {
	lower := strings.ToLower(query)
	for _, phrase := range highStakesPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return multiMonthPlanRe.MatchString(lower)
}
