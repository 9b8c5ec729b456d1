package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/benvon/eisenhower-todo/internal/database"
	"github.com/benvon/eisenhower-todo/internal/models"
)

const (
	defaultCORSOrigin = "http://localhost:3000"
	defaultCORSMaxAge = 86400
)

// CorsConfigStore loads the stored CORS policy
type CorsConfigStore interface {
	Get(ctx context.Context) (*models.CorsConfig, error)
}

// CORSReloader wraps rs/cors and periodically reloads its policy from the database.
type CORSReloader struct {
	next     http.Handler
	repo     CorsConfigStore
	fallback string
	log      *zap.Logger
	interval time.Duration
	mu       sync.RWMutex
	current  http.Handler
}

// NewCORSReloader creates a CORS middleware backed by repo. fallbackOrigins
// (usually FRONTEND_URL) applies while no policy is stored.
func NewCORSReloader(repo CorsConfigStore, fallbackOrigins string, log *zap.Logger, reloadInterval time.Duration) *CORSReloader {
	return &CORSReloader{
		repo:     repo,
		fallback: strings.TrimSpace(fallbackOrigins),
		log:      log,
		interval: reloadInterval,
	}
}

// Middleware returns a middleware that wraps next with CORS and hot-reload.
func (r *CORSReloader) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		r.next = next
		r.load(context.Background())
		return r
	}
}

// Start runs the reload loop until ctx is cancelled. Call after Middleware() is applied.
func (r *CORSReloader) Start(ctx context.Context) {
	runReloadLoop(ctx, r.interval, r.load)
}

func (r *CORSReloader) load(ctx context.Context) {
	if r.next == nil {
		return
	}

	origins := database.AllowedOriginsSlice(r.fallback)
	allowCreds := true
	maxAge := defaultCORSMaxAge

	cfg, err := r.repo.Get(ctx)
	switch {
	case err != nil:
		r.log.Warn("failed_to_load_cors_config_using_fallback", zap.Error(err))
	case cfg != nil:
		origins = database.AllowedOriginsSlice(cfg.AllowedOrigins)
		allowCreds = cfg.AllowCredentials
		maxAge = cfg.MaxAge
	}
	if len(origins) == 0 {
		origins = []string{defaultCORSOrigin}
	}

	h := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: allowCreds,
		MaxAge:           maxAge,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "traceparent"},
	}).Handler(r.next)

	r.mu.Lock()
	r.current = h
	r.mu.Unlock()
}

// ServeHTTP implements http.Handler.
func (r *CORSReloader) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	serveCurrent(&r.mu, &r.current, r.next, w, req)
}

// runReloadLoop calls load every interval until ctx is done
func runReloadLoop(ctx context.Context, interval time.Duration, load func(context.Context)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			load(ctx)
		}
	}
}

func serveCurrent(mu *sync.RWMutex, current *http.Handler, next http.Handler, w http.ResponseWriter, req *http.Request) {
	mu.RLock()
	h := *current
	mu.RUnlock()
	if h != nil {
		h.ServeHTTP(w, req)
		return
	}
	if next != nil {
		next.ServeHTTP(w, req)
	}
}
