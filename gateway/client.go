// Package gateway is the signed HTTP client for the finance backend, plus
// the assembler that fans backend resources into a FactPack. Reads are
// cached and deduplicated; writes are signed and invalidate what they
// touched. The answer cascade never imports this package; callers assemble
// a pack and hand it in.
package gateway

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/walletmind/walletmind/cache"
	"github.com/walletmind/walletmind/config"
	"github.com/walletmind/walletmind/errors"
	"github.com/walletmind/walletmind/pkg/logging"
)

// Config holds the connection settings for the backend gateway.
type Config struct {
	// BaseURL is the backend root, e.g. "https://api.example.com/v1".
	BaseURL string

	// BearerToken authenticates every call.
	BearerToken string

	// UserID is sent as the identity header on every call.
	UserID string

	// SigningKey signs write requests. Writes fail without it; reads never
	// need it.
	SigningKey []byte

	// Timeout bounds each round trip.
	Timeout time.Duration

	// CacheTTL is how long GET responses stay fresh.
	CacheTTL time.Duration
}

// DefaultConfig returns gateway settings with conservative bounds.
func DefaultConfig() *Config {
	return &Config{
		Timeout:  8 * time.Second,
		CacheTTL: time.Minute,
	}
}

// ConfigFromEnv builds a config from WALLETMIND_GATEWAY_* variables.
func ConfigFromEnv() *Config {
	return &Config{
		BaseURL:     config.Env("WALLETMIND_GATEWAY_URL", ""),
		BearerToken: config.Env("WALLETMIND_GATEWAY_TOKEN", ""),
		UserID:      config.Env("WALLETMIND_GATEWAY_USER_ID", ""),
		SigningKey:  []byte(config.Env("WALLETMIND_GATEWAY_SIGNING_KEY", "")),
		Timeout:     config.EnvDuration("WALLETMIND_GATEWAY_TIMEOUT", 8*time.Second),
		CacheTTL:    config.EnvDuration("WALLETMIND_GATEWAY_CACHE_TTL", time.Minute),
	}
}

// Validate checks the config can reach a backend.
func (c *Config) Validate() error {
	if c == nil {
		return errors.NewValidation("config", "gateway config is required")
	}
	if c.BaseURL == "" {
		return errors.NewValidation("base_url", "base url is required")
	}
	return nil
}

// Envelope is the backend's uniform response shape.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Client talks to the backend: bearer + identity headers on every call,
// HMAC signatures on writes, TTL-cached and single-flighted GETs, and a
// cancellation registry keyed by endpoint path.
type Client struct {
	config *Config
	http   *http.Client
	store  cache.Store
	signer *Signer
	logger *slog.Logger

	flight singleflight.Group

	mu      sync.Mutex
	nextID  uint64
	active  map[string]map[uint64]context.CancelFunc
	written map[string]map[string]struct{} // path -> cache keys holding its responses
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithCache sets the store backing the GET response cache.
func WithCache(store cache.Store) ClientOption {
	return func(c *Client) {
		if store != nil {
			c.store = store
		}
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger overrides the client logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a gateway client. A nil config gets defaults; without a
// cache option, responses cache in process memory.
func NewClient(cfg *Config, opts ...ClientOption) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	c := &Client{
		config:  cfg,
		http:    &http.Client{},
		logger:  logging.WithComponent("gateway"),
		active:  make(map[string]map[uint64]context.CancelFunc),
		written: make(map[string]map[string]struct{}),
	}
	if len(cfg.SigningKey) > 0 {
		c.signer = NewSigner(cfg.SigningKey)
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.store = cache.NewMemoryStore(nil)
	}
	return c
}

// Get fetches a resource. Fresh cached responses are returned without a
// round trip; concurrent identical fetches share one underlying call.
func (c *Client) Get(ctx context.Context, endpoint string) (json.RawMessage, error) {
	if err := c.config.Validate(); err != nil {
		return nil, err
	}
	path, query := splitEndpoint(endpoint)
	if path == "" {
		return nil, errors.NewValidation("endpoint", "endpoint is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	key := cacheKey(path, query, nil)
	if cached, ok, err := c.store.Get(ctx, key); err == nil && ok {
		return json.RawMessage(cached), nil
	}

	result, err, _ := c.flight.Do(key, func() (any, error) {
		// A caller that lost an earlier race may have filled the cache.
		if cached, ok, err := c.store.Get(ctx, key); err == nil && ok {
			return json.RawMessage(cached), nil
		}
		data, err := c.do(ctx, http.MethodGet, path, query, nil)
		if err != nil {
			return nil, err
		}
		if err := c.store.Set(ctx, key, string(data), c.config.CacheTTL); err != nil {
			c.logger.Debug("response cache write failed", "endpoint", path, "error", err)
		} else {
			c.remember(path, key)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(json.RawMessage), nil
}

// Post creates a resource. The call is signed and the endpoint's cached
// reads are invalidated on success.
func (c *Client) Post(ctx context.Context, endpoint string, body any) (json.RawMessage, error) {
	return c.write(ctx, http.MethodPost, endpoint, body)
}

// Put replaces a resource. Signed; invalidates on success.
func (c *Client) Put(ctx context.Context, endpoint string, body any) (json.RawMessage, error) {
	return c.write(ctx, http.MethodPut, endpoint, body)
}

// Patch updates part of a resource. Signed; invalidates on success.
func (c *Client) Patch(ctx context.Context, endpoint string, body any) (json.RawMessage, error) {
	return c.write(ctx, http.MethodPatch, endpoint, body)
}

// Delete removes a resource. Signed; invalidates on success.
func (c *Client) Delete(ctx context.Context, endpoint string) (json.RawMessage, error) {
	return c.write(ctx, http.MethodDelete, endpoint, nil)
}

// Cancel aborts every in-flight call to the given endpoint path.
func (c *Client) Cancel(endpoint string) {
	path, _ := splitEndpoint(endpoint)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cancel := range c.active[path] {
		cancel()
	}
	delete(c.active, path)
}

// CancelAll aborts every in-flight call.
func (c *Client) CancelAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for path, calls := range c.active {
		for _, cancel := range calls {
			cancel()
		}
		delete(c.active, path)
	}
}

func (c *Client) write(ctx context.Context, method, endpoint string, body any) (json.RawMessage, error) {
	if err := c.config.Validate(); err != nil {
		return nil, err
	}
	path, query := splitEndpoint(endpoint)
	if path == "" {
		return nil, errors.NewValidation("endpoint", "endpoint is required")
	}
	if c.signer == nil {
		return nil, errors.NewValidation("signing_key", "%s %s requires a signing key", method, path)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	data, err := c.do(ctx, method, path, query, body)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, path)
	return data, nil
}

// do performs one round trip and unwraps the response envelope. The
// signature covers the path without its query string.
func (c *Client) do(ctx context.Context, method, path, query string, body any) (json.RawMessage, error) {
	var bodyJSON []byte
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyJSON = raw
	}

	callCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	done := c.track(path, cancel)
	defer done()

	url := c.config.BaseURL + path
	if query != "" {
		url += "?" + query
	}
	var reader io.Reader
	if bodyJSON != nil {
		reader = bytes.NewReader(bodyJSON)
	}
	req, err := http.NewRequestWithContext(callCtx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.config.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.BearerToken)
	}
	if c.config.UserID != "" {
		req.Header.Set("X-User-ID", c.config.UserID)
	}
	if method != http.MethodGet && c.signer != nil {
		sig := c.signer.Sign(method, path, bodyJSON)
		req.Header.Set(HeaderTimestamp, sig.Timestamp)
		req.Header.Set(HeaderNonce, sig.Nonce)
		req.Header.Set(HeaderSignature, sig.Signature)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.NewTransport(method+" "+path, 0, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewTransport(method+" "+path, resp.StatusCode, err)
	}
	c.logger.Debug("gateway call",
		"method", method,
		"endpoint", path,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.NewTransport(method+" "+path, resp.StatusCode,
			fmt.Errorf("backend returned %d: %s", resp.StatusCode, logging.TrimForLog(string(respBody), 200)))
	}

	var env Envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response envelope: %w", err)
	}
	if !env.Success {
		return nil, fmt.Errorf("backend rejected %s %s: %s", method, path, env.Error)
	}
	return env.Data, nil
}

// remember indexes a cache key under its path so a later write can find
// every query variant to invalidate.
func (c *Client) remember(path, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.written[path] == nil {
		c.written[path] = make(map[string]struct{})
	}
	c.written[path][key] = struct{}{}
}

// invalidate drops every cached read of the written resource and of its
// parent list, so the next fetch observes the write.
func (c *Client) invalidate(ctx context.Context, path string) {
	paths := []string{path}
	if parent := parentPath(path); parent != "" {
		paths = append(paths, parent)
	}

	c.mu.Lock()
	var keys []string
	for _, p := range paths {
		for key := range c.written[p] {
			keys = append(keys, key)
		}
		delete(c.written, p)
	}
	c.mu.Unlock()

	for _, key := range keys {
		if err := c.store.Delete(ctx, key); err != nil {
			c.logger.Debug("cache invalidation failed", "key", key, "error", err)
		}
	}
}

// track registers an in-flight call under its path so Cancel can reach it.
// The returned func deregisters and releases the context.
func (c *Client) track(path string, cancel context.CancelFunc) func() {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	if c.active[path] == nil {
		c.active[path] = make(map[uint64]context.CancelFunc)
	}
	c.active[path][id] = cancel
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		if calls, ok := c.active[path]; ok {
			delete(calls, id)
			if len(calls) == 0 {
				delete(c.active, path)
			}
		}
		c.mu.Unlock()
		cancel()
	}
}

// splitEndpoint separates an endpoint into its normalized path (single
// leading slash, no trailing slash) and its raw query string. Signatures
// and the cancellation registry use the path; cache keys use both.
func splitEndpoint(endpoint string) (path, query string) {
	if i := strings.Index(endpoint, "#"); i >= 0 {
		endpoint = endpoint[:i]
	}
	if i := strings.Index(endpoint, "?"); i >= 0 {
		endpoint, query = endpoint[:i], endpoint[i+1:]
	}
	path = "/" + strings.Trim(endpoint, "/")
	if path == "/" {
		return "", query
	}
	return path, query
}

// parentPath returns the list endpoint one level up, or "" at the top.
func parentPath(path string) string {
	i := strings.LastIndex(path, "/")
	if i <= 0 {
		return ""
	}
	return path[:i]
}

// cacheKey names a cached GET response. The query string and body hash
// participate so windowed fetches never collide.
func cacheKey(path, query string, bodyJSON []byte) string {
	key := "gateway:" + path
	if query != "" {
		key += "?" + query
	}
	if len(bodyJSON) > 0 {
		sum := sha256.Sum256(bodyJSON)
		key += ":" + hex.EncodeToString(sum[:8])
	}
	return key
}
