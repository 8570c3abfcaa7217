package grounding

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/walletmind/walletmind/factpack"
)

// FormatMoney renders a dollar amount with thousands separators and two
// decimal places, e.g. $1,234.56.
func FormatMoney(v float64) string {
	d := decimal.NewFromFloat(v)
	negative := d.IsNegative()
	fixed := d.Abs().StringFixed(2)

	dot := strings.Index(fixed, ".")
	intPart, frac := fixed[:dot], fixed[dot:]
	var b strings.Builder
	for i := 0; i < len(intPart); i++ {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteByte(intPart[i])
	}
	out := "$" + b.String() + frac
	if negative {
		out = "-" + out
	}
	return out
}

// FallbackText builds an intent-specific answer directly from FactPack
// aggregates. Every number it renders comes straight from the pack, so the
// result is grounded by construction and safe to show without re-validation.
func FallbackText(intent Intent, fp *factpack.FactPack) string {
	if fp == nil {
		return genericFallback("")
	}
	window := windowPhrase(fp.Window)

	switch intent {
	case IntentBalance:
		return balanceFallback(fp, window)
	case IntentBudget:
		return budgetFallback(fp, window)
	case IntentGoal:
		return goalFallback(fp)
	case IntentSpending:
		return spendingFallback(fp, window)
	case IntentRecurring:
		return recurringFallback(fp, window)
	default:
		return genericFallback(window)
	}
}

func windowPhrase(w factpack.TimeWindow) string {
	if w.Start.IsZero() || w.End.IsZero() {
		return ""
	}
	return fmt.Sprintf("%s through %s", w.Start.Format("Jan 2, 2006"), w.End.Format("Jan 2, 2006"))
}

func balanceFallback(fp *factpack.FactPack, window string) string {
	if len(fp.Balances) == 0 {
		return "I don't have balance information for this period. " + genericFallback(window)
	}
	var total float64
	for _, b := range fp.Balances {
		total += b.Current
	}
	asOf := ""
	if window != "" {
		asOf = fmt.Sprintf(" as of %s", fp.Window.End.Format("Jan 2, 2006"))
	}
	if len(fp.Balances) == 1 {
		return fmt.Sprintf("Your current balance is %s%s.", FormatMoney(total), asOf)
	}
	return fmt.Sprintf("Your combined balance across your accounts is %s%s.", FormatMoney(total), asOf)
}

func budgetFallback(fp *factpack.FactPack, window string) string {
	if len(fp.Budgets) == 0 {
		return "I don't have budget information for this period. " + genericFallback(window)
	}
	var b strings.Builder
	if window != "" {
		fmt.Fprintf(&b, "Here's where your budgets stand for %s:\n", window)
	} else {
		b.WriteString("Here's where your budgets stand:\n")
	}
	for _, budget := range fp.Budgets {
		name := budget.Category
		if name == "" {
			name = budget.ID
		}
		fmt.Fprintf(&b, "- %s: %s spent of %s\n", name, FormatMoney(budget.Spent), FormatMoney(budget.Limit))
	}
	return strings.TrimRight(b.String(), "\n")
}

func goalFallback(fp *factpack.FactPack) string {
	if len(fp.Goals) == 0 {
		return "I don't have goal information on file. " + genericFallback("")
	}
	var b strings.Builder
	b.WriteString("Here's your goal progress:\n")
	for _, g := range fp.Goals {
		name := g.Name
		if name == "" {
			name = g.ID
		}
		fmt.Fprintf(&b, "- %s: %s saved toward %s\n", name, FormatMoney(g.Current), FormatMoney(g.Target))
	}
	return strings.TrimRight(b.String(), "\n")
}

func spendingFallback(fp *factpack.FactPack, window string) string {
	p := fp.Patterns
	if p == nil || p.TotalSpent <= 0 {
		return "I don't have spending totals for this period. " + genericFallback(window)
	}
	forWindow := ""
	if window != "" {
		forWindow = fmt.Sprintf(" for %s", window)
	}
	if p.AverageDaily > 0 {
		return fmt.Sprintf("You've spent %s%s, averaging %s per day.",
			FormatMoney(p.TotalSpent), forWindow, FormatMoney(p.AverageDaily))
	}
	return fmt.Sprintf("You've spent %s%s.", FormatMoney(p.TotalSpent), forWindow)
}

func recurringFallback(fp *factpack.FactPack, window string) string {
	if len(fp.Recurring) == 0 {
		return "I didn't detect recurring charges in this period. " + genericFallback(window)
	}
	var b strings.Builder
	b.WriteString("Your recurring charges this period:\n")
	for _, r := range fp.Recurring {
		name := r.Merchant
		if name == "" {
			name = r.ID
		}
		if r.Frequency != "" {
			fmt.Fprintf(&b, "- %s: %s (%s)\n", name, FormatMoney(r.Amount), r.Frequency)
		} else {
			fmt.Fprintf(&b, "- %s: %s\n", name, FormatMoney(r.Amount))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func genericFallback(window string) string {
	if window != "" {
		return fmt.Sprintf("I can help you review balances, budgets, goals, and spending for %s. What would you like to look at?", window)
	}
	return "I can help you review balances, budgets, goals, and spending. What would you like to look at?"
}
