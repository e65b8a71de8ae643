package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimited 限制对后端的请求速率
type RateLimited struct {
	next    Completer
	limiter *rate.Limiter
}

func NewRateLimited(next Completer, rps float64, burst int) *RateLimited {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *RateLimited) Complete(ctx context.Context, req Request) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.next.Complete(ctx, req)
}
