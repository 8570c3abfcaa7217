package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/walletmind/walletmind/errors"
	"github.com/walletmind/walletmind/factpack"
	"github.com/walletmind/walletmind/pkg/logging"
)

// SanitizedUserID is the only user id an assembled pack ever carries. Real
// identity travels in the gateway headers, never in the facts.
const SanitizedUserID = "sanitized"

// Backend resources the assembler fans in. Each GET returns the fact slice
// directly in the envelope's data field.
const (
	EndpointBudgets      = "/budgets"
	EndpointGoals        = "/goals"
	EndpointBalances     = "/balances"
	EndpointRecurring    = "/recurring"
	EndpointTransactions = "/transactions"
	EndpointPatterns     = "/patterns"
)

// Fetcher is the client surface the assembler reads through.
type Fetcher interface {
	Get(ctx context.Context, endpoint string) (json.RawMessage, error)
}

// Assembler builds windowed, sanitized fact packs out of backend resources.
type Assembler struct {
	client Fetcher
	logger *slog.Logger
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithAssemblerLogger overrides the assembler logger.
func WithAssemblerLogger(logger *slog.Logger) AssemblerOption {
	return func(a *Assembler) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAssembler creates an assembler over the given fetcher.
func NewAssembler(client Fetcher, opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		client: client,
		logger: logging.WithComponent("assembler"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble fetches all six resources concurrently and merges them into one
// pack for the window. Any failed fetch fails the whole assembly: a pack
// silently missing a section would ground answers on incomplete facts.
func (a *Assembler) Assemble(ctx context.Context, window factpack.TimeWindow) (*factpack.FactPack, error) {
	if a.client == nil {
		return nil, errors.NewValidation("client", "assembler has no gateway client")
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	fp := &factpack.FactPack{
		SpecVersion: "1.0",
		UserID:      SanitizedUserID,
		GeneratedAt: time.Now().UTC(),
		Window:      window,
	}

	windowed := windowQuery(window)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.fetchInto(gCtx, EndpointBudgets, &fp.Budgets) })
	g.Go(func() error { return a.fetchInto(gCtx, EndpointGoals, &fp.Goals) })
	g.Go(func() error { return a.fetchInto(gCtx, EndpointBalances, &fp.Balances) })
	g.Go(func() error { return a.fetchInto(gCtx, EndpointRecurring, &fp.Recurring) })
	g.Go(func() error {
		return a.fetchInto(gCtx, EndpointTransactions+"?"+windowed, &fp.Transactions)
	})
	g.Go(func() error {
		var patterns factpack.SpendingPatterns
		ok, err := a.fetch(gCtx, EndpointPatterns+"?"+windowed, &patterns)
		if err != nil {
			return err
		}
		if ok {
			fp.Patterns = &patterns
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to assemble fact pack: %w", err)
	}

	fp.Meta.Hash = fp.ContentHash()
	a.logger.Debug("fact pack assembled",
		"budgets", len(fp.Budgets),
		"goals", len(fp.Goals),
		"balances", len(fp.Balances),
		"recurring", len(fp.Recurring),
		"transactions", len(fp.Transactions),
		"hash", logging.TrimForLog(fp.Meta.Hash, 12))
	return fp, nil
}

func (a *Assembler) fetchInto(ctx context.Context, endpoint string, dst any) error {
	_, err := a.fetch(ctx, endpoint, dst)
	return err
}

// fetch decodes one resource into dst, reporting whether the backend
// returned anything at all.
func (a *Assembler) fetch(ctx context.Context, endpoint string, dst any) (bool, error) {
	data, err := a.client.Get(ctx, endpoint)
	if err != nil {
		return false, err
	}
	if len(data) == 0 || string(data) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", endpoint, err)
	}
	return true, nil
}

// windowQuery encodes the window bounds as from/to query parameters.
func windowQuery(window factpack.TimeWindow) string {
	q := url.Values{}
	q.Set("from", window.Start.UTC().Format(time.RFC3339))
	q.Set("to", window.End.UTC().Format(time.RFC3339))
	return q.Encode()
}
