package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"go.uber.org/zap"

	"github.com/benvon/eisenhower-todo/internal/models"
	"github.com/benvon/eisenhower-todo/internal/request"
)

// DefaultRatelimitRate applies until a rate is stored, in ulule/limiter format
const DefaultRatelimitRate = "10-S"

// RatelimitConfigStore loads and seeds the stored rate
type RatelimitConfigStore interface {
	Get(ctx context.Context) (*models.RatelimitConfig, error)
	Set(ctx context.Context, c *models.RatelimitConfig) error
}

// RateLimitReloader wraps ulule/limiter and periodically reloads the rate from the database.
type RateLimitReloader struct {
	next        http.Handler
	store       limiter.Store
	repo        RatelimitConfigStore
	defaultRate string
	log         *zap.Logger
	interval    time.Duration
	mu          sync.RWMutex
	current     http.Handler
}

// NewRateLimitReloader creates a rate limit middleware over store. The store is
// shared across reloads so counters survive a rate change.
func NewRateLimitReloader(store limiter.Store, repo RatelimitConfigStore, defaultRate string, log *zap.Logger, reloadInterval time.Duration) (*RateLimitReloader, error) {
	if defaultRate == "" {
		defaultRate = DefaultRatelimitRate
	}
	if _, err := limiter.NewRateFromFormatted(defaultRate); err != nil {
		return nil, fmt.Errorf("invalid default rate %q: %w", defaultRate, err)
	}
	return &RateLimitReloader{
		store:       store,
		repo:        repo,
		defaultRate: defaultRate,
		log:         log,
		interval:    reloadInterval,
	}, nil
}

// Middleware returns a middleware that wraps next with rate limiting and hot-reload.
func (r *RateLimitReloader) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		r.next = next
		r.load(context.Background())
		return r
	}
}

// Start runs the reload loop until ctx is cancelled. Call after Middleware() is applied.
func (r *RateLimitReloader) Start(ctx context.Context) {
	runReloadLoop(ctx, r.interval, r.load)
}

func (r *RateLimitReloader) load(ctx context.Context) {
	if r.next == nil {
		return
	}

	rateStr := r.defaultRate
	cfg, err := r.repo.Get(ctx)
	switch {
	case err != nil:
		r.log.Warn("failed_to_load_ratelimit_config_using_default",
			zap.Error(err),
			zap.String("default_rate", r.defaultRate),
		)
	case cfg != nil && cfg.Rate != "":
		rateStr = cfg.Rate
	default:
		if err := r.repo.Set(ctx, &models.RatelimitConfig{Rate: r.defaultRate}); err != nil {
			r.log.Error("failed_to_save_default_ratelimit_config",
				zap.Error(err),
				zap.String("default_rate", r.defaultRate),
			)
		}
	}

	rate, err := limiter.NewRateFromFormatted(rateStr)
	if err != nil {
		r.log.Error("failed_to_parse_rate_limit_using_default",
			zap.Error(err),
			zap.String("rate_str", rateStr),
		)
		// validated in the constructor
		rate, _ = limiter.NewRateFromFormatted(r.defaultRate)
	}

	mw := stdlibmw.NewMiddleware(limiter.New(r.store, rate),
		stdlibmw.WithKeyGetter(request.ClientIP),
		stdlibmw.WithLimitReachedHandler(func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded", r.log)
		}),
		stdlibmw.WithErrorHandler(func(w http.ResponseWriter, _ *http.Request, err error) {
			r.log.Error("rate_limiter_store_error", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Rate limiter unavailable", r.log)
		}),
	)
	h := mw.Handler(r.next)

	r.mu.Lock()
	r.current = h
	r.mu.Unlock()
}

// ServeHTTP implements http.Handler.
func (r *RateLimitReloader) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	serveCurrent(&r.mu, &r.current, r.next, w, req)
}
