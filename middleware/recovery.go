package middleware

import (
	"fmt"
	"log/slog"

	"github.com/walletmind/walletmind/pkg/logging"
)

// Recovery converts panics from downstream handlers into errors so a
// misbehaving stage can never crash the caller.
type Recovery struct {
	logger *slog.Logger
}

// NewRecovery creates a panic recovery middleware
func NewRecovery(logger *slog.Logger) *Recovery {
	if logger == nil {
		logger = logging.WithComponent("middleware")
	}
	return &Recovery{logger: logger}
}

// Name returns the middleware name
func (m *Recovery) Name() string {
	return "Recovery"
}

// Execute runs the rest of the chain and turns any panic into an error
func (m *Recovery) Execute(ctx *Context, next Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("panic recovered", "session_id", ctx.SessionID, "panic", r)
			err = fmt.Errorf("%w: %v", ErrPanicRecovered, r)
		}
	}()
	return next(ctx)
}
