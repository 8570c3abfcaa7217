package grounding

// Intent is the coarse question category driving prompt selection and
// fallback templates.
type Intent string

const (
	IntentBalance   Intent = "balance"
	IntentBudget    Intent = "budget"
	IntentGoal      Intent = "goal"
	IntentSpending  Intent = "spending"
	IntentRecurring Intent = "recurring"
	IntentGeneral   Intent = "general"
)

// Valid reports whether the intent is one of the known categories.
func (i Intent) Valid() bool {
	switch i {
	case IntentBalance, IntentBudget, IntentGoal, IntentSpending, IntentRecurring, IntentGeneral:
		return true
	}
	return false
}
