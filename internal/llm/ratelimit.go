package llm

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimitedClient wraps a Client with a token-bucket limiter that backs
// off when the wrapped client reports ErrRateLimited and recovers slowly
// otherwise (AIMD: additive increase, multiplicative decrease). One
// instance should be shared across all callers of a given provider client
// within a process.
type RateLimitedClient struct {
	next Client

	mu         sync.Mutex
	limiter    *rate.Limiter
	currentTPM float64
	minTPM     float64
	maxTPM     float64
	recovery   float64
}

// NewRateLimited wraps next with an adaptive tokens-per-minute budget.
// maxTPM is clamped up to at least initialTPM; when initialTPM is zero or
// negative a conservative 60000 tokens/minute default is used.
func NewRateLimited(next Client, initialTPM, maxTPM float64) *RateLimitedClient {
	if initialTPM <= 0 {
		initialTPM = 60000
	}
	if maxTPM <= 0 || maxTPM < initialTPM {
		maxTPM = initialTPM
	}
	minTPM := initialTPM * 0.1
	if minTPM < 1 {
		minTPM = 1
	}
	recovery := initialTPM * 0.05
	if recovery < 1 {
		recovery = 1
	}
	return &RateLimitedClient{
		next:       next,
		limiter:    rate.NewLimiter(rate.Limit(initialTPM/60.0), int(initialTPM)),
		currentTPM: initialTPM,
		minTPM:     minTPM,
		maxTPM:     maxTPM,
		recovery:   recovery,
	}
}

// Complete waits for limiter capacity estimated from the request, delegates
// to the wrapped client, and adjusts the budget based on the outcome.
func (c *RateLimitedClient) Complete(ctx context.Context, req Request) (Response, error) {
	if err := c.limiter.WaitN(ctx, estimateTokens(req)); err != nil {
		return Response{}, err
	}
	resp, err := c.next.Complete(ctx, req)
	c.observe(err)
	return resp, err
}

func (c *RateLimitedClient) observe(err error) {
	if err == nil {
		c.adjust(c.recovery, c.maxTPM)
		return
	}
	if errors.Is(err, ErrRateLimited) {
		c.adjust(-c.currentTPM*0.5, c.minTPM)
	}
}

// adjust moves currentTPM by delta (positive for recovery, a negative
// target for backoff is passed in as a full replacement via floor/ceiling
// clamping) and reconfigures the limiter.
func (c *RateLimitedClient) adjust(delta, bound float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var next float64
	if delta < 0 {
		next = c.currentTPM * 0.5
		if next < bound {
			next = bound
		}
	} else {
		next = c.currentTPM + delta
		if next > bound {
			next = bound
		}
	}
	if next == c.currentTPM {
		return
	}
	c.currentTPM = next
	c.limiter.SetLimit(rate.Limit(next / 60.0))
	c.limiter.SetBurst(int(next))
}

// estimateTokens is a cheap heuristic: characters / 3, plus a fixed buffer
// for system prompt and provider framing overhead.
func estimateTokens(req Request) int {
	chars := 0
	for _, m := range req.Messages {
		chars += len(m.Content)
	}
	if chars <= 0 {
		return 500
	}
	tokens := chars / 3
	if tokens < 1 {
		tokens = 1
	}
	return tokens + 500
}
