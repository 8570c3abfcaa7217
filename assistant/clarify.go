package assistant

// BuildClarification maps a clarify decision into a bounded option menu.
// The most specific driver wins: an out-of-window date gets time-range
// options, a missing disclaimer gets presentation options, a safety finding
// gets educational-only options, a writer question is reused verbatim, and
// anything else falls back to the generic menu. Every menu validates
// against the 2-4 option contract.
func BuildClarification(reason string, out *WriterOutput, failures []GuardFailure, issues []CriticIssue) *Clarification {
	for _, f := range failures {
		if f == FailOutOfWindowDate {
			return timeRangeMenu(reason)
		}
	}
	for _, f := range failures {
		if f == FailMissingDisclaimer {
			return disclaimerMenu(reason)
		}
	}
	for _, issue := range issues {
		if issue.Type == IssueSafety {
			return safetyMenu(reason)
		}
	}
	if out != nil && out.RequiresClarification && len(out.ClarifyingQuestions) > 0 {
		return &Clarification{
			Question: out.ClarifyingQuestions[0],
			Options:  genericOptions(),
			Reason:   reason,
		}
	}
	return genericMenu(reason)
}

func timeRangeMenu(reason string) *Clarification {
	return &Clarification{
		Question: "Which time period should I look at?",
		Options: []ClarifyOption{
			{ID: "this_month", Label: "This month"},
			{ID: "last_month", Label: "Last month"},
			{ID: "last_three_months", Label: "The last three months"},
			{ID: "different_question", Label: "Ask something else"},
		},
		Reason: reason,
	}
}

func disclaimerMenu(reason string) *Clarification {
	return &Clarification{
		Question: "This answer suggests a course of action. How should I present it?",
		Options: []ClarifyOption{
			{ID: "with_disclaimer", Label: "Show it as educational information"},
			{ID: "facts_only", Label: "Just show the numbers"},
			{ID: "different_question", Label: "Ask something else"},
		},
		Reason: reason,
	}
}

func safetyMenu(reason string) *Clarification {
	return &Clarification{
		Question: "This topic needs extra care. How would you like to continue?",
		Options: []ClarifyOption{
			{ID: "educational_only", Label: "Keep it educational"},
			{ID: "facts_only", Label: "Just show the numbers"},
			{ID: "different_question", Label: "Ask something else"},
		},
		Reason: reason,
	}
}

func genericMenu(reason string) *Clarification {
	return &Clarification{
		Question: "What would you like to look at?",
		Options:  genericOptions(),
		Reason:   reason,
	}
}

func genericOptions() []ClarifyOption {
	return []ClarifyOption{
		{ID: "budgets", Label: "My budgets"},
		{ID: "goals", Label: "My savings goals"},
		{ID: "transactions", Label: "Recent transactions"},
		{ID: "different_question", Label: "Ask something else"},
	}
}
