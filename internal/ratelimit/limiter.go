package ratelimit

import "context"

// RateLimiter gates outbound dispatch per channel so claimed notifications
// never exceed what the downstream gateway accepts. Allow answers
// immediately; Wait blocks until a slot opens or the context ends.
type RateLimiter interface {
	Allow(ctx context.Context, channel string) (bool, error)
	Wait(ctx context.Context, channel string) error
}
