package llm

import (
	"context"
	"log/slog"
)

// Chain tries multiple providers in order until one succeeds.
// Useful for falling back from a cloud provider to a local one.
type Chain struct {
	providers []Provider
	logger    *slog.Logger
}

// NewChain creates a provider chain.
func NewChain(providers ...Provider) *Chain {
	return &Chain{
		providers: providers,
		logger:    slog.Default().With("component", "llm.chain"),
	}
}

// NewChainWithLogger creates a provider chain with a custom logger.
func NewChainWithLogger(logger *slog.Logger, providers ...Provider) *Chain {
	return &Chain{
		providers: providers,
		logger:    logger.With("component", "llm.chain"),
	}
}

// Chat tries each provider until one succeeds.
func (c *Chain) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if len(c.providers) == 0 {
		return nil, ErrAllProvidersFailed
	}

	var errs []error
	for i, provider := range c.providers {
		resp, err := provider.Chat(ctx, req)
		if err == nil {
			return resp, nil
		}

		errs = append(errs, err)
		if i < len(c.providers)-1 {
			c.logger.Warn("provider failed, trying next",
				"provider", i,
				"error", err,
			)
		}
	}

	return nil, &ChainError{Errors: errs}
}

// Stream tries each provider until one returns a stream.
func (c *Chain) Stream(ctx context.Context, req *ChatRequest) (Stream, error) {
	if len(c.providers) == 0 {
		return nil, ErrAllProvidersFailed
	}

	var errs []error
	for i, provider := range c.providers {
		stream, err := provider.Stream(ctx, req)
		if err == nil {
			return stream, nil
		}

		errs = append(errs, err)
		if i < len(c.providers)-1 {
			c.logger.Warn("provider failed, trying next",
				"provider", i,
				"error", err,
			)
		}
	}

	return nil, &ChainError{Errors: errs}
}

// Health returns nil if any provider is healthy.
func (c *Chain) Health(ctx context.Context) error {
	var lastErr error
	for _, provider := range c.providers {
		if err := provider.Health(ctx); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	if lastErr != nil {
		return lastErr
	}
	return ErrAllProvidersFailed
}

// Close closes all providers, returning the first error.
func (c *Chain) Close() error {
	var firstErr error
	for _, provider := range c.providers {
		if err := provider.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Ensure Chain implements Provider.
var _ Provider = (*Chain)(nil)
