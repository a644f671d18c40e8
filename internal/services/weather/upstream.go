package weather

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// StatusError is a non-2xx answer from an upstream.
type StatusError struct {
	Upstream string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s upstream status %d: %s", e.Upstream, e.Code, e.Body)
}

// clientSide reports errors that say nothing about the upstream's health.
func clientSide(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code >= 400 && se.Code < 500 && se.Code != http.StatusTooManyRequests
}

type UpstreamConfig struct {
	Name    string
	Timeout time.Duration

	BreakerFailures int
	BreakerOpenFor  time.Duration
	BreakerInterval time.Duration

	Retries       int
	RetryInterval time.Duration

	// CacheTTL <= 0 disables response caching.
	CacheTTL  time.Duration
	CacheSize int
}

// Upstream wraps GETs towards one third-party API with a circuit breaker,
// retries, a response cache and in-flight request coalescing.
type Upstream struct {
	name    string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	cache   *expirable.LRU[string, []byte]
	group   singleflight.Group

	retries       int
	retryInterval time.Duration

	metrics *Metrics
	logger  *zap.Logger
}

func NewUpstream(cfg UpstreamConfig, metrics *Metrics, logger *zap.Logger) *Upstream {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BreakerFailures < 1 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerOpenFor <= 0 {
		cfg.BreakerOpenFor = 30 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 200 * time.Millisecond
	}

	u := &Upstream{
		name:          cfg.Name,
		client:        &http.Client{Timeout: cfg.Timeout},
		retries:       cfg.Retries,
		retryInterval: cfg.RetryInterval,
		metrics:       metrics,
		logger:        logger.With(zap.String("upstream", cfg.Name)),
	}
	fails := uint32(cfg.BreakerFailures)
	u.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     cfg.Name,
		Interval: cfg.BreakerInterval,
		Timeout:  cfg.BreakerOpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= fails
		},
		IsSuccessful: func(err error) bool {
			return err == nil || clientSide(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			u.logger.Warn("circuit breaker state change", zap.String("from", from.String()), zap.String("to", to.String()))
			u.metrics.setBreaker(name, to)
		},
	})
	u.metrics.setBreaker(cfg.Name, gobreaker.StateClosed)
	if cfg.CacheTTL > 0 {
		if cfg.CacheSize <= 0 {
			cfg.CacheSize = 256
		}
		u.cache = expirable.NewLRU[string, []byte](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	return u
}

func (u *Upstream) Name() string { return u.name }

func (u *Upstream) State() gobreaker.State { return u.breaker.State() }

// Get returns the body of a 2xx answer to GET rawURL.
func (u *Upstream) Get(ctx context.Context, rawURL string) ([]byte, error) {
	if u.cache != nil {
		if b, ok := u.cache.Get(rawURL); ok {
			u.metrics.observe(u.name, "cache_hit", 0)
			return b, nil
		}
	}

	// the shared fetch outlives any single caller; each caller waits on its own ctx
	ch := u.group.DoChan(rawURL, func() (any, error) {
		return u.load(context.WithoutCancel(ctx), rawURL)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			if errors.Is(r.Err, gobreaker.ErrOpenState) || errors.Is(r.Err, gobreaker.ErrTooManyRequests) {
				return nil, fmt.Errorf("%s: %w", u.name, r.Err)
			}
			return nil, r.Err
		}
		if r.Shared {
			u.logger.Debug("coalesced request")
		}
		return r.Val.([]byte), nil
	}
}

// load fetches rawURL through the breaker and fills the cache.
func (u *Upstream) load(ctx context.Context, rawURL string) ([]byte, error) {
	start := time.Now()
	res, err := u.breaker.Execute(func() (any, error) {
		return u.fetchWithRetry(ctx, rawURL)
	})
	u.metrics.observe(u.name, outcome(err), time.Since(start))
	if err != nil {
		return nil, err
	}
	b := res.([]byte)
	if u.cache != nil {
		u.cache.Add(rawURL, b)
	}
	return b, nil
}

func (u *Upstream) fetchWithRetry(ctx context.Context, rawURL string) ([]byte, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = u.retryInterval
	bo.MaxElapsedTime = 0

	var body []byte
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		b, err := u.fetch(ctx, rawURL)
		if err != nil {
			if clientSide(err) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			u.logger.Debug("upstream attempt failed", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		body = b
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(u.retries)), ctx))
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (u *Upstream) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request error: %w", u.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, &StatusError{Upstream: u.name, Code: resp.StatusCode, Body: string(b)}
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("%s read error: %w", u.name, err)
	}
	return b, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "breaker_open"
	case clientSide(err):
		return "client_error"
	default:
		return "error"
	}
}
