package queries

import (
	"context"
	"errors"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

// ErrClassifierBusy marks a transient provider failure (model still loading,
// provider overloaded). The chain retries exactly once after a fixed delay
// before falling back.
var ErrClassifierBusy = errors.New("classifier busy")

const busyRetryDelay = 5 * time.Second

// Chain is the always-succeeds classifier: it tries the primary model-backed
// classifier and falls back to the rule engine on any failure. A nil primary
// means rules-only operation.
type Chain struct {
	primary    Classifier
	fallback   *Rules
	logger     log.Logger
	metrics    *Metrics
	retryDelay time.Duration
}

// NewChain builds a classifier chain. metrics may be nil.
func NewChain(primary Classifier, fallback *Rules, logger log.Logger, metrics *Metrics) *Chain {
	if logger == nil {
		logger = log.Nop()
	}
	return &Chain{
		primary:    primary,
		fallback:   fallback,
		logger:     logger,
		metrics:    metrics,
		retryDelay: busyRetryDelay,
	}
}

// Classify never returns an error: every failure path resolves through the
// rule engine. Which path produced the result is visible in the Reasoning
// field and the classifications metric.
func (c *Chain) Classify(ctx context.Context, in Intake) (*Classification, error) {
	if c.primary != nil {
		res, err := c.primary.Classify(ctx, in)
		if errors.Is(err, ErrClassifierBusy) {
			c.logger.Warn(ctx, "classifier busy, retrying once", "delay", c.retryDelay)
			select {
			case <-time.After(c.retryDelay):
				res, err = c.primary.Classify(ctx, in)
			case <-ctx.Done():
				err = ctx.Err()
			}
		}
		if err == nil && res != nil {
			c.observe("primary")
			return res, nil
		}
		c.logger.Warn(ctx, "primary classifier failed, using fallback", "error", err)
	}

	res, _ := c.fallback.Classify(ctx, in)
	c.observe("fallback")
	return res, nil
}

// Suggest drafts a reply via the primary suggester when it has one, with the
// same silent fallback to the template engine.
func (c *Chain) Suggest(ctx context.Context, q *Query) (string, error) {
	if s, ok := c.primary.(Suggester); ok && s != nil {
		text, err := s.Suggest(ctx, q)
		if err == nil && text != "" {
			return text, nil
		}
		c.logger.Warn(ctx, "primary suggester failed, using template", "error", err)
	}
	return c.fallback.Suggest(ctx, q)
}

func (c *Chain) observe(path string) {
	if c.metrics != nil {
		c.metrics.ClassificationsTotal.WithLabelValues(path).Inc()
	}
}
