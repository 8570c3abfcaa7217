package assistant

import (
	"strings"

	"github.com/walletmind/walletmind/grounding"
)

// intentKeywords maps phrase families to intents. Order matters: narrower
// categories are tried before broader ones so "subscription spending" reads
// as recurring, not spending.
var intentKeywords = []struct {
	intent grounding.Intent
	words  []string
}{
	{grounding.IntentRecurring, []string{"recurring", "subscription", "monthly charge", "monthly bill", "bills"}},
	{grounding.IntentBudget, []string{"budget", "overspend", "over budget", "spending limit", "category limit"}},
	{grounding.IntentGoal, []string{"goal", "saving for", "save up", "target amount"}},
	{grounding.IntentBalance, []string{"balance", "how much money", "how much do i have", "in my account", "funds"}},
	{grounding.IntentSpending, []string{"spend", "spent", "spending", "expense", "bought", "purchase", "transaction", "where did my money"}},
}

// ClassifyIntent assigns a coarse category from query keywords, defaulting
// to general. It steers prompt and fallback selection only; callers with a
// real classifier upstream pass the intent in themselves.
func ClassifyIntent(query string) grounding.Intent {
	lower := strings.ToLower(query)
	for _, group := range intentKeywords {
		for _, word := range group.words {
			if strings.Contains(lower, word) {
				return group.intent
			}
		}
	}
	return grounding.IntentGeneral
}
