package caption

import (
	"context"
	"sync"

	"captionkit/logger"
)

// Backend performs one remote generation call.
type Backend interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Quota is the usage collaborator consulted before and after each generation.
type Quota interface {
	// CanMakeRequest reports whether another request is allowed. When it is not,
	// the returned message is shown to the user verbatim.
	CanMakeRequest(ctx context.Context) (bool, string, error)
	// IncrementUsage records one successful generation.
	IncrementUsage(ctx context.Context) error
}

const defaultQuotaMessage = "You have used all of your caption requests for today. Upgrade your plan or try again tomorrow."

// Generator sequences quota check, remote call with retries, and result shaping.
type Generator struct {
	backend Backend
	quota   Quota
	policy  RetryPolicy
	log     *logger.Logger

	mu        sync.Mutex
	remaining int
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p RetryPolicy) GeneratorOption {
	return func(g *Generator) {
		g.policy = p
	}
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) GeneratorOption {
	return func(g *Generator) {
		g.log = logger.OrNop(log)
	}
}

// NewGenerator builds a Generator. quota may be nil when no limit applies.
func NewGenerator(backend Backend, quota Quota, opts ...GeneratorOption) *Generator {
	g := &Generator{
		backend:   backend,
		quota:     quota,
		policy:    DefaultRetryPolicy(),
		log:       logger.Nop(),
		remaining: -1,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns the captions for req. Usage is incremented exactly once on
// success and never on failure.
func (g *Generator) Generate(ctx context.Context, req Request) ([]Caption, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, Terminal(err.Error(), nil)
	}

	if g.quota != nil {
		ok, msg, err := g.quota.CanMakeRequest(ctx)
		if err != nil {
			return nil, Terminal("could not check your request quota", err)
		}
		if !ok {
			if msg == "" {
				msg = defaultQuotaMessage
			}
			return nil, QuotaExceeded(msg)
		}
	}

	var resp *Response
	err := g.policy.Do(ctx, func(attempt int) error {
		if attempt > 0 {
			g.log.Info("retrying caption generation", "attempt", attempt+1, "platform", req.Platform)
		}
		r, err := g.backend.Generate(ctx, req)
		if err != nil {
			g.log.Debug("caption generation attempt failed", "attempt", attempt+1, "error", err)
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, g.surface(err)
	}

	if resp == nil {
		return nil, Terminal("the caption service sent an empty response", nil)
	}
	captions := Shape(resp.Captions)
	if len(captions) == 0 {
		return nil, Terminal("the caption service returned no captions", nil)
	}

	if g.quota != nil {
		if err := g.quota.IncrementUsage(ctx); err != nil {
			g.log.Warn("failed to record caption usage (ignored)", "error", err)
		}
	}

	g.mu.Lock()
	g.remaining = resp.RequestsRemaining
	g.mu.Unlock()

	return captions, nil
}

// LastRemaining returns requestsRemaining from the last successful call, or -1.
func (g *Generator) LastRemaining() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.remaining
}

// surface turns a final backend error into a classified error. Transient errors
// that outlived their retries become terminal.
func (g *Generator) surface(err error) error {
	switch KindOf(err) {
	case KindQuotaExceeded, KindTerminal:
		return err
	case KindTransient:
		return Terminal("the caption service is unavailable right now, please try again", err)
	}
	if Classify(err) {
		return Terminal("the caption service is unavailable right now, please try again", Transient(err))
	}
	return Terminal("caption generation failed", err)
}
