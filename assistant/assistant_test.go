package assistant

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/walletmind/walletmind/analytics"
	"github.com/walletmind/walletmind/factpack"
	"github.com/walletmind/walletmind/message"
)

// testPack is the fixture most tests ground against. Its value pool is
// 200, 500, 300, 40, 5000, 1250, 25, 1500, 15.99, and 42.50; 2000 is not
// reachable by any grounding rule, which the invented-number tests rely on.
func testPack() *factpack.FactPack {
	return &factpack.FactPack{
		UserID: "sanitized",
		Window: factpack.TimeWindow{
			Start:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			End:    time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC),
			Period: "month",
		},
		Budgets: []factpack.BudgetFact{
			{ID: "bud-groceries", Category: "groceries", Spent: 200, Limit: 500, Remaining: 300, Utilization: 40},
		},
		Goals: []factpack.GoalFact{
			{ID: "goal-vacation", Name: "Vacation", Target: 5000, Current: 1250, Progress: 25},
		},
		Balances: []factpack.BalanceFact{
			{AccountID: "acc-checking", Current: 1500, Currency: "USD"},
			{AccountID: "acc-dormant", Current: 0, Currency: "USD"},
		},
		Recurring: []factpack.RecurringFact{
			{ID: "rec-stream", Merchant: "StreamCo", Amount: 15.99, Frequency: "monthly"},
		},
		Transactions: []factpack.TransactionFact{
			{ID: "txn-1", Amount: 42.50, Merchant: "Grocer", Category: "groceries",
				PostedAt: time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)},
		},
	}
}

// groundedDraft answers the balance question with numbers straight from
// testPack.
func groundedDraft() *WriterOutput {
	return &WriterOutput{
		Version:     SchemaVersion,
		AnswerText:  "Your checking balance is $1,500.00.",
		UsedFactIDs: []string{"acc-checking"},
		NumericMentions: []NumericMention{
			{Value: 1500, Unit: UnitUSD, Kind: MentionLiteral, FactID: "acc-checking"},
		},
		ContentKind: ContentStatus,
	}
}

// strategyDraft proposes action, carries the disclaimer, and stays grounded
// ($300 is the groceries budget remainder).
func strategyDraft() *WriterOutput {
	return &WriterOutput{
		Version: SchemaVersion,
		AnswerText: "You could set aside $300.00 a month for the vacation goal. " +
			DisclaimerText,
		UsedFactIDs: []string{"bud-groceries", "goal-vacation"},
		NumericMentions: []NumericMention{
			{Value: 300, Unit: UnitUSD, Kind: MentionLiteral, FactID: "bud-groceries"},
		},
		ContentKind: ContentStrategy,
	}
}

func draftJSON(t *testing.T, out *WriterOutput) string {
	t.Helper()
	raw, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal draft: %v", err)
	}
	return string(raw)
}

const cleanVerdict = `{"ok":true,"risk":"low","recommend_escalation":false,"issues":[]}`

// fakeClient scripts one model response (or error) and records every call.
type fakeClient struct {
	mu        sync.Mutex
	response  string
	err       error
	calls     int
	prompts   [][]*message.Message
	model     string
	temp      float64
	maxTokens int64
}

func (c *fakeClient) Generate(ctx context.Context, msgs []*message.Message) (*message.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.prompts = append(c.prompts, msgs)
	if c.err != nil {
		return nil, c.err
	}
	return message.NewMessage(message.RoleAssistant, c.response), nil
}

func (c *fakeClient) SetTemperature(temp float64) { c.temp = temp }
func (c *fakeClient) SetMaxTokens(max int64)      { c.maxTokens = max }
func (c *fakeClient) SetModel(model string)       { c.model = model }

func (c *fakeClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *fakeClient) lastPrompt() []*message.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.prompts) == 0 {
		return nil
	}
	return c.prompts[len(c.prompts)-1]
}

// captureSink collects analytics events for assertions.
type captureSink struct {
	mu     sync.Mutex
	events []*analytics.Event
}

func (s *captureSink) Record(ctx context.Context, event *analytics.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *captureSink) Close() error { return nil }

func (s *captureSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]string, 0, len(s.events))
	for _, e := range s.events {
		types = append(types, e.Type)
	}
	return types
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
