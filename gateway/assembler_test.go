package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/walletmind/walletmind/errors"
	"github.com/walletmind/walletmind/factpack"
)

func marchWindow() factpack.TimeWindow {
	return factpack.TimeWindow{
		Start:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC),
		TZ:     "UTC",
		Period: "month",
	}
}

// fixtureBackend serves a consistent set of finance resources and records
// the queries it saw.
func fixtureBackend(t *testing.T) (*httptest.Server, *sync.Map) {
	t.Helper()
	queries := &sync.Map{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries.Store(r.URL.Path, r.URL.Query())
		switch r.URL.Path {
		case EndpointBudgets:
			respond(w, []map[string]any{{
				"id": "bud-groceries", "category": "groceries",
				"spent": 200.0, "limit": 500.0, "remaining": 300.0, "utilization": 40.0,
			}})
		case EndpointGoals:
			respond(w, []map[string]any{{
				"id": "goal-vacation", "name": "Vacation",
				"targetAmount": 5000.0, "currentAmount": 1250.0, "progress": 25.0,
			}})
		case EndpointBalances:
			respond(w, []map[string]any{{
				"accountId": "acc-checking", "current": 1500.0, "currency": "USD",
			}})
		case EndpointRecurring:
			respond(w, []map[string]any{{
				"id": "rec-stream", "merchant": "StreamCo", "amount": 15.99, "frequency": "monthly",
			}})
		case EndpointTransactions:
			respond(w, []map[string]any{{
				"id": "txn-1", "amount": 42.50, "merchant": "Grocer",
				"category": "groceries", "postedAt": "2025-03-15T12:00:00Z",
			}})
		case EndpointPatterns:
			respond(w, map[string]any{
				"averageDaily": 13.5, "totalSpent": 418.5,
				"comparison": map[string]any{"change": -4.2},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	return srv, queries
}

func TestAssembleBuildsSanitizedWindowedPack(t *testing.T) {
	srv, _ := fixtureBackend(t)
	defer srv.Close()

	a := NewAssembler(NewClient(testConfig(srv.URL)))
	fp, err := a.Assemble(context.Background(), marchWindow())
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	if fp.UserID != SanitizedUserID {
		t.Errorf("user id = %q, want %q", fp.UserID, SanitizedUserID)
	}
	if !fp.Window.Start.Equal(marchWindow().Start) || !fp.Window.End.Equal(marchWindow().End) {
		t.Errorf("window not preserved: %+v", fp.Window)
	}
	if err := fp.Validate(); err != nil {
		t.Errorf("assembled pack fails validation: %v", err)
	}

	if len(fp.Budgets) != 1 || fp.Budgets[0].ID != "bud-groceries" || fp.Budgets[0].Limit != 500 {
		t.Errorf("budgets = %+v", fp.Budgets)
	}
	if len(fp.Goals) != 1 || fp.Goals[0].Target != 5000 {
		t.Errorf("goals = %+v", fp.Goals)
	}
	if len(fp.Balances) != 1 || fp.Balances[0].Current != 1500 {
		t.Errorf("balances = %+v", fp.Balances)
	}
	if len(fp.Recurring) != 1 || fp.Recurring[0].Amount != 15.99 {
		t.Errorf("recurring = %+v", fp.Recurring)
	}
	if len(fp.Transactions) != 1 || fp.Transactions[0].Merchant != "Grocer" {
		t.Errorf("transactions = %+v", fp.Transactions)
	}
	if fp.Patterns == nil || fp.Patterns.TotalSpent != 418.5 || fp.Patterns.Comparison == nil {
		t.Errorf("patterns = %+v", fp.Patterns)
	}

	if fp.Meta.Hash == "" {
		t.Fatal("pack has no content hash")
	}
	if fp.Meta.Hash != fp.ContentHash() {
		t.Error("stored hash does not match the content")
	}
}

func TestAssemblePassesWindowBounds(t *testing.T) {
	srv, queries := fixtureBackend(t)
	defer srv.Close()

	a := NewAssembler(NewClient(testConfig(srv.URL)))
	if _, err := a.Assemble(context.Background(), marchWindow()); err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	for _, endpoint := range []string{EndpointTransactions, EndpointPatterns} {
		raw, ok := queries.Load(endpoint)
		if !ok {
			t.Fatalf("%s was never fetched", endpoint)
		}
		q := raw.(url.Values)
		if got := q.Get("from"); got != "2025-03-01T00:00:00Z" {
			t.Errorf("%s from = %q", endpoint, got)
		}
		if got := q.Get("to"); got != "2025-03-31T23:59:59Z" {
			t.Errorf("%s to = %q", endpoint, got)
		}
	}

	// Point-in-time resources are fetched without a window.
	raw, _ := queries.Load(EndpointBalances)
	if q := raw.(url.Values); len(q) != 0 {
		t.Errorf("balances fetched with unexpected query %v", q)
	}
}

func TestAssembleFailsWhenAnyResourceFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == EndpointGoals {
			http.Error(w, "goal service down", http.StatusServiceUnavailable)
			return
		}
		respond(w, []map[string]any{})
	}))
	defer srv.Close()

	a := NewAssembler(NewClient(testConfig(srv.URL)))
	fp, err := a.Assemble(context.Background(), marchWindow())
	if err == nil {
		t.Fatal("expected assembly to fail when one resource fails")
	}
	if fp != nil {
		t.Error("a failed assembly must not hand back a partial pack")
	}
}

func TestAssembleToleratesAbsentSections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == EndpointPatterns {
			_ = json.NewEncoder(w).Encode(Envelope{Success: true, Data: json.RawMessage("null")})
			return
		}
		respond(w, []map[string]any{})
	}))
	defer srv.Close()

	a := NewAssembler(NewClient(testConfig(srv.URL)))
	fp, err := a.Assemble(context.Background(), marchWindow())
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if fp.Patterns != nil {
		t.Errorf("patterns should stay nil when the backend has none, got %+v", fp.Patterns)
	}
	if len(fp.Budgets) != 0 || len(fp.Balances) != 0 {
		t.Errorf("empty sections should decode empty, got %+v", fp)
	}
	if err := fp.Validate(); err != nil {
		t.Errorf("sparse pack fails validation: %v", err)
	}
}

func TestAssembleValidatesInputs(t *testing.T) {
	a := NewAssembler(nil)
	if _, err := a.Assemble(context.Background(), marchWindow()); !errors.IsValidation(err) {
		t.Errorf("nil client: expected a validation error, got %v", err)
	}

	srv, _ := fixtureBackend(t)
	defer srv.Close()
	a = NewAssembler(NewClient(testConfig(srv.URL)))
	if _, err := a.Assemble(context.Background(), factpack.TimeWindow{}); !errors.IsValidation(err) {
		t.Errorf("zero window: expected a validation error, got %v", err)
	}
}
