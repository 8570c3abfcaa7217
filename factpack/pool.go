package factpack

// PoolKind identifies which fact field a pool entry came from.
type PoolKind string

const (
	KindBudgetSpent       PoolKind = "budget_spent"
	KindBudgetLimit       PoolKind = "budget_limit"
	KindBudgetRemaining   PoolKind = "budget_remaining"
	KindBudgetUtilization PoolKind = "budget_utilization"
	KindBudgetTxnCount    PoolKind = "budget_txn_count"
	KindGoalTarget        PoolKind = "goal_target"
	KindGoalCurrent       PoolKind = "goal_current"
	KindGoalProgress      PoolKind = "goal_progress"
	KindBalance           PoolKind = "balance"
	KindRecurringAmount   PoolKind = "recurring_amount"
	KindTransactionAmount PoolKind = "transaction_amount"
	KindPatternAvgDaily   PoolKind = "pattern_average_daily"
	KindPatternTotal      PoolKind = "pattern_total_spent"
	KindPatternChange     PoolKind = "pattern_change"
)

// PatternsFactID labels pool entries from the aggregate patterns block,
// which has no entity id of its own.
const PatternsFactID = "patterns"

// PoolEntry is one numeric fact with its provenance.
type PoolEntry struct {
	Value  float64
	FactID string
	Kind   PoolKind
}

// Pool flattens every numeric fact into entries with provenance. Only
// positive values participate: zero and negative amounts are never valid
// grounded numbers in this domain.
func (fp *FactPack) Pool() []PoolEntry {
	if fp == nil {
		return nil
	}
	var pool []PoolEntry
	add := func(value float64, factID string, kind PoolKind) {
		if value > 0 {
			pool = append(pool, PoolEntry{Value: value, FactID: factID, Kind: kind})
		}
	}

	for _, b := range fp.Budgets {
		add(b.Spent, b.ID, KindBudgetSpent)
		add(b.Limit, b.ID, KindBudgetLimit)
		add(b.Remaining, b.ID, KindBudgetRemaining)
		add(b.Utilization, b.ID, KindBudgetUtilization)
		add(float64(b.TransactionCount), b.ID, KindBudgetTxnCount)
	}
	for _, g := range fp.Goals {
		add(g.Target, g.ID, KindGoalTarget)
		add(g.Current, g.ID, KindGoalCurrent)
		add(g.Progress, g.ID, KindGoalProgress)
	}
	for _, b := range fp.Balances {
		add(b.Current, b.AccountID, KindBalance)
	}
	for _, r := range fp.Recurring {
		add(r.Amount, r.ID, KindRecurringAmount)
	}
	for _, t := range fp.Transactions {
		add(t.Amount, t.ID, KindTransactionAmount)
	}
	if p := fp.Patterns; p != nil {
		add(p.AverageDaily, PatternsFactID, KindPatternAvgDaily)
		add(p.TotalSpent, PatternsFactID, KindPatternTotal)
		if p.Comparison != nil {
			add(p.Comparison.Change, PatternsFactID, KindPatternChange)
		}
	}
	return pool
}

// Values returns just the numeric half of the pool.
func Values(pool []PoolEntry) []float64 {
	if len(pool) == 0 {
		return nil
	}
	values := make([]float64, len(pool))
	for i, e := range pool {
		values[i] = e.Value
	}
	return values
}
