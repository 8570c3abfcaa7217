package middleware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/walletmind/walletmind/message"
	"github.com/walletmind/walletmind/pkg/logging"
)

// Context represents the middleware execution context
type Context struct {
	// Original user input
	Input string

	// Session the request belongs to, when known
	SessionID string

	// Response produced by the final handler
	Response *message.Message

	// Error from execution
	Error error

	// Metadata for passing data between middlewares
	Metadata map[string]any

	// Internal state
	context context.Context
}

// NewContext creates a new middleware context
func NewContext(ctx context.Context) *Context {
	return &Context{
		Metadata: make(map[string]any),
		context:  ctx,
	}
}

// Context returns the underlying context.Context
func (c *Context) Context() context.Context {
	return c.context
}

// Middleware defines the interface for middleware components
// Middlewares can intercept and modify requests/responses around the cascade
type Middleware interface {
	// Name returns the name of the middleware for logging and debugging
	Name() string

	// Execute runs the middleware logic
	// It receives the current context and a next handler to continue the chain
	// Returning error will stop the middleware chain
	Execute(ctx *Context, next Handler) error
}

// Handler is the function called to pass control to the next middleware
type Handler func(*Context) error

// Chain represents a sequence of middleware to be executed
type Chain struct {
	middlewares []Middleware
}

// NewChain creates a new middleware chain
func NewChain(middlewares ...Middleware) *Chain {
	return &Chain{
		middlewares: middlewares,
	}
}

// Add appends a middleware to the chain
func (c *Chain) Add(m Middleware) *Chain {
	c.middlewares = append(c.middlewares, m)
	return c
}

// Execute runs all middlewares in the chain
func (c *Chain) Execute(ctx *Context, finalHandler Handler) error {
	return c.executeMiddleware(ctx, 0, finalHandler)
}

// executeMiddleware recursively executes middlewares in sequence
func (c *Chain) executeMiddleware(ctx *Context, index int, finalHandler Handler) error {
	if index >= len(c.middlewares) {
		// All middlewares executed, call the final handler
		return finalHandler(ctx)
	}

	// Create a handler for the next middleware
	nextHandler := func(ctx *Context) error {
		return c.executeMiddleware(ctx, index+1, finalHandler)
	}

	// Execute current middleware
	return c.middlewares[index].Execute(ctx, nextHandler)
}

// RequestLogger logs the request on the way in and the outcome on the way out
type RequestLogger struct {
	logger *slog.Logger
}

// NewRequestLogger creates a request logging middleware. A nil logger
// falls back to the shared logger.
func NewRequestLogger(logger *slog.Logger) *RequestLogger {
	if logger == nil {
		logger = logging.WithComponent("middleware")
	}
	return &RequestLogger{logger: logger}
}

// Name returns the middleware name
func (m *RequestLogger) Name() string {
	return "RequestLogger"
}

// Execute logs the request and its outcome
func (m *RequestLogger) Execute(ctx *Context, next Handler) error {
	start := time.Now()
	m.logger.Info("request received",
		"session_id", ctx.SessionID,
		"input", logging.TrimForLog(ctx.Input, 120))

	err := next(ctx)

	attrs := []any{
		"session_id", ctx.SessionID,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if ctx.Response != nil {
		attrs = append(attrs, "output", logging.TrimForLog(ctx.Response.Text(), 120))
	}
	if err != nil {
		attrs = append(attrs, "error", err)
		m.logger.Error("request failed", attrs...)
		return err
	}

	m.logger.Info("request completed", attrs...)
	return nil
}

// ErrorHandler handles errors in the middleware chain
type ErrorHandler struct {
	handler func(error) error
}

// NewErrorHandler creates an error handling middleware
func NewErrorHandler(handler func(error) error) *ErrorHandler {
	return &ErrorHandler{handler: handler}
}

// Name returns the middleware name
func (m *ErrorHandler) Name() string {
	return "ErrorHandler"
}

// Execute handles errors from downstream middlewares
func (m *ErrorHandler) Execute(ctx *Context, next Handler) error {
	err := next(ctx)
	if err != nil && m.handler != nil {
		return m.handler(err)
	}
	return err
}

// InputValidator validates and cleans input
type InputValidator struct {
	validator func(string) error
}

// NewInputValidator creates an input validation middleware
func NewInputValidator(validator func(string) error) *InputValidator {
	return &InputValidator{validator: validator}
}

// Name returns the middleware name
func (m *InputValidator) Name() string {
	return "InputValidator"
}

// Execute validates the input
func (m *InputValidator) Execute(ctx *Context, next Handler) error {
	if m.validator != nil {
		if err := m.validator(ctx.Input); err != nil {
			return err
		}
	}
	return next(ctx)
}

// RateLimiter caps how many requests pass through this chain instance
type RateLimiter struct {
	mu          sync.Mutex
	maxRequests int
	counter     int
}

// NewRateLimiter creates a rate limiting middleware
func NewRateLimiter(maxRequests int) *RateLimiter {
	return &RateLimiter{maxRequests: maxRequests}
}

// Name returns the middleware name
func (m *RateLimiter) Name() string {
	return "RateLimiter"
}

// Execute checks rate limit
func (m *RateLimiter) Execute(ctx *Context, next Handler) error {
	m.mu.Lock()
	if m.counter >= m.maxRequests {
		m.mu.Unlock()
		return ErrRateLimitExceeded
	}
	m.counter++
	m.mu.Unlock()

	return next(ctx)
}

// Reset resets the rate limiter counter
func (m *RateLimiter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter = 0
}

// Counter returns the current request count
func (m *RateLimiter) Counter() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counter
}
