package llm

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limited wraps a Provider so calls to Generate are spaced to at most
// perMinute requests per minute.
type Limited struct {
	Provider
	limiter *rate.Limiter
}

// NewLimited returns p unchanged when perMinute is not positive.
func NewLimited(p Provider, perMinute int) Provider {
	if p == nil || perMinute <= 0 {
		return p
	}
	return &Limited{
		Provider: p,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
}

// Generate waits for the limiter before delegating.
func (l *Limited) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return l.Provider.Generate(ctx, prompt, maxTokens)
}
