// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/tadagpt/conversation-gateway/pkg/core/schema"
	"github.com/tadagpt/conversation-gateway/pkg/observability/logging"
)

// RateLimitOptions configures the conversation route limiter.
type RateLimitOptions struct {
	Rate     string // limiter formatted rate, e.g. "60-M"
	Store    string // memory or redis
	RedisURL string
	Prefix   string
	Logger   *logging.Logger
}

// RateLimiter throttles requests per client id and caller IP.
type RateLimiter struct {
	limiter    *limiter.Limiter
	middleware *stdlib.Middleware
	redis      *redis.Client
}

// NewRateLimiter builds a limiter. A redis store that cannot be created
// falls back to memory.
func NewRateLimiter(opts RateLimitOptions) (*RateLimiter, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.Component("ratelimit")

	rate, err := limiter.NewRateFromFormatted(opts.Rate)
	if err != nil {
		return nil, fmt.Errorf("invalid rate %q: %w", opts.Rate, err)
	}

	storeOpts := limiter.StoreOptions{
		Prefix:          opts.Prefix,
		CleanUpInterval: limiter.DefaultCleanUpInterval,
	}

	rl := &RateLimiter{}
	var store limiter.Store
	switch opts.Store {
	case "redis":
		store, rl.redis, err = newRedisStore(opts.RedisURL, storeOpts)
		if err != nil {
			logger.Warn("failed to create redis store for rate limiting, falling back to memory", "error", err)
			store = memorystore.NewStoreWithOptions(storeOpts)
		}
	default:
		store = memorystore.NewStoreWithOptions(storeOpts)
	}

	rl.limiter = limiter.New(store, rate)
	rl.middleware = stdlib.NewMiddleware(rl.limiter,
		stdlib.WithKeyGetter(rl.key),
		stdlib.WithLimitReachedHandler(limitReached),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error("rate limiter failed", "path", r.URL.Path, "error", err)
			writeJSON(w, http.StatusInternalServerError, schema.ErrorResponse{
				Message: "Rate limiter unavailable",
				Error:   err.Error(),
			})
		}),
	)
	return rl, nil
}

func newRedisStore(url string, opts limiter.StoreOptions) (limiter.Store, *redis.Client, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(options)
	store, err := redisstore.NewStoreWithOptions(client, opts)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return store, client, nil
}

// Wrap applies the limit to next. It must wrap a handler registered on the
// mux so that path values are available to the key.
func (rl *RateLimiter) Wrap(next http.Handler) http.Handler {
	if rl == nil {
		return next
	}
	return rl.middleware.Handler(next)
}

// Close releases the redis connection, if any.
func (rl *RateLimiter) Close() error {
	if rl == nil || rl.redis == nil {
		return nil
	}
	return rl.redis.Close()
}

func (rl *RateLimiter) key(r *http.Request) string {
	return r.PathValue("clientId") + ":" + rl.limiter.GetIPKey(r)
}

func limitReached(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusTooManyRequests, schema.ErrorResponse{
		Message: "Too many requests",
		Error:   "rate limit exceeded",
	})
}
