package factpack

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/walletmind/walletmind/errors"
)

// TimeWindow is the bounded date range all facts in a pack pertain to.
// Answers must not reference dates outside of it.
type TimeWindow struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	TZ     string    `json:"tz,omitempty"`
	Period string    `json:"period,omitempty"`
}

// Contains reports whether t falls inside the window, boundaries included.
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Validate checks the window is present and ordered.
func (w TimeWindow) Validate() error {
	if w.Start.IsZero() {
		return errors.NewValidation("time_window.start", "start is required")
	}
	if w.End.IsZero() {
		return errors.NewValidation("time_window.end", "end is required")
	}
	if w.End.Before(w.Start) {
		return errors.NewValidation("time_window", "end %s precedes start %s",
			w.End.Format(time.RFC3339), w.Start.Format(time.RFC3339))
	}
	return nil
}

// BudgetFact is one category budget with its spend figures for the window.
// Utilization is a percentage on the 0-100 scale.
type BudgetFact struct {
	ID               string   `json:"id"`
	Category         string   `json:"category"`
	Period           string   `json:"period,omitempty"`
	Spent            float64  `json:"spent"`
	Limit            float64  `json:"limit"`
	Remaining        float64  `json:"remaining,omitempty"`
	Utilization      float64  `json:"utilization,omitempty"`
	TransactionCount int      `json:"transactionsCount,omitempty"`
	Evidence         []string `json:"evidence,omitempty"`
}

// GoalFact is one savings goal. Progress is a percentage on the 0-100 scale.
type GoalFact struct {
	ID       string  `json:"id"`
	Name     string  `json:"name,omitempty"`
	Target   float64 `json:"targetAmount"`
	Current  float64 `json:"currentAmount"`
	Progress float64 `json:"progress,omitempty"`
}

// BalanceFact is one account balance.
type BalanceFact struct {
	AccountID string  `json:"accountId"`
	Current   float64 `json:"current"`
	Currency  string  `json:"currency,omitempty"`
}

// RecurringFact is one detected recurring charge.
type RecurringFact struct {
	ID           string    `json:"id"`
	Merchant     string    `json:"merchant,omitempty"`
	Amount       float64   `json:"amount"`
	Frequency    string    `json:"frequency,omitempty"`
	NextExpected time.Time `json:"nextExpectedDate,omitempty"`
}

// TransactionFact is one individual transaction inside the window.
type TransactionFact struct {
	ID       string    `json:"id"`
	Amount   float64   `json:"amount"`
	Merchant string    `json:"merchant,omitempty"`
	Category string    `json:"category,omitempty"`
	PostedAt time.Time `json:"postedAt,omitempty"`
}

// Comparison holds the change versus the previous window, in percent.
type Comparison struct {
	Change float64 `json:"change"`
}

// SpendingPatterns carries aggregate numbers derived upstream. The core
// never computes new aggregates; it only repeats these.
type SpendingPatterns struct {
	AverageDaily float64     `json:"averageDaily,omitempty"`
	TotalSpent   float64     `json:"totalSpent,omitempty"`
	Comparison   *Comparison `json:"comparison,omitempty"`
}

// Meta carries the pack's content fingerprint.
type Meta struct {
	Hash string `json:"hash,omitempty"`
}

// FactPack is the single source of truth for grounding an answer. It arrives
// already time-windowed and with PII stripped; the core treats it as
// read-only.
type FactPack struct {
	SpecVersion  string            `json:"specVersion,omitempty"`
	UserID       string            `json:"userId"`
	GeneratedAt  time.Time         `json:"generatedAt,omitempty"`
	Window       TimeWindow        `json:"time_window"`
	Budgets      []BudgetFact      `json:"budgets,omitempty"`
	Goals        []GoalFact        `json:"goals,omitempty"`
	Balances     []BalanceFact     `json:"balances,omitempty"`
	Recurring    []RecurringFact   `json:"recurring,omitempty"`
	Transactions []TransactionFact `json:"recentTransactions,omitempty"`
	Patterns     *SpendingPatterns `json:"spendingPatterns,omitempty"`
	Meta         Meta              `json:"metadata,omitempty"`
}

// Validate checks the pack is usable for grounding: a present, ordered time
// window and a sanitized user id. Raw identifiers (emails) are rejected
// because the pack contract requires PII to be stripped upstream.
func (fp *FactPack) Validate() error {
	if fp == nil {
		return errors.NewValidation("factPack", "fact pack is required")
	}
	if err := fp.Window.Validate(); err != nil {
		return err
	}
	if fp.UserID == "" {
		return errors.NewValidation("userId", "user id is required")
	}
	if strings.Contains(fp.UserID, "@") {
		return errors.NewValidation("userId", "user id %q looks unsanitized", fp.UserID)
	}
	return nil
}

// ContentHash returns a stable SHA-256 fingerprint of the pack's facts,
// excluding the metadata block so a stored hash does not feed itself.
func (fp *FactPack) ContentHash() string {
	if fp == nil {
		return ""
	}
	clone := *fp
	clone.Meta = Meta{}
	raw, err := json.Marshal(&clone)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
