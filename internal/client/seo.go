package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"resty.dev/v3"

	"handy/catalog/internal/config"
	"handy/catalog/internal/endpoint"
)

const primaryTermPath = "/wp-json/handy/v1/primary-term"

var ErrCircuitOpen = errors.New("seo client circuit breaker is open")

// SEOClient asks the host CMS for the primary term an SEO plugin stored for an
// item.
type SEOClient interface {
	PrimaryTerm(ctx context.Context, itemID int64, taxonomy string) (int64, bool, error)
}

type primaryTermResponse struct {
	TermID int64 `json:"term_id"`
}

type seoClient struct {
	rl         ratelimit.Limiter
	httpClient *resty.Client
	endpoints  endpoint.Supplier
	timeout    time.Duration

	// Circuit breaker for an overloaded CMS
	circuitBreakerMutex sync.RWMutex
	openUntil           time.Time
	circuitBreakerDelay time.Duration
}

func NewSEOClient(cfg config.SEOConfig, endpoints endpoint.Supplier) SEOClient {
	rps := cfg.MaxRequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "handy-catalog/1.0")

	return &seoClient{
		rl:                  ratelimit.New(rps),
		httpClient:          client,
		endpoints:           endpoints,
		timeout:             timeout,
		circuitBreakerDelay: time.Duration(max(cfg.BreakerCooldown, 1)) * time.Second,
	}
}

// PrimaryTerm returns ok=false when the SEO plugin has no primary term for the
// item.
func (c *seoClient) PrimaryTerm(ctx context.Context, itemID int64, taxonomy string) (int64, bool, error) {
	if c.isCircuitBreakerOpen() {
		remaining := c.getRemainingCircuitBreakerTime()
		log.Debugf("🚫 SEO request blocked by circuit breaker. Remaining time: %v", remaining.Round(time.Second))
		return 0, false, fmt.Errorf("%w for %v more", ErrCircuitOpen, remaining.Round(time.Second))
	}

	attempts := max(c.endpoints.Len(), 1)
	var lastErr error
	for i := 0; i < attempts; i++ {
		origin := c.endpoints.Get()
		if origin == "" {
			return 0, false, errors.New("no CMS origin configured")
		}

		termID, ok, overloaded, err := c.fetch(ctx, origin, itemID, taxonomy)
		if err == nil {
			return termID, ok, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return 0, false, fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		if !overloaded {
			return 0, false, err
		}
		log.Warnf("🔄 Origin %s is overloaded, switching to the next one", origin)
	}

	c.triggerCircuitBreaker()
	return 0, false, lastErr
}

func (c *seoClient) fetch(ctx context.Context, origin string, itemID int64, taxonomy string) (int64, bool, bool, error) {
	c.rl.Take()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.httpClient.R().
		SetContext(reqCtx).
		SetQueryParam("post_id", strconv.FormatInt(itemID, 10)).
		SetQueryParam("taxonomy", taxonomy).
		Get(origin + primaryTermPath)
	if err != nil {
		return 0, false, true, fmt.Errorf("failed to fetch primary term: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusNotFound, http.StatusNoContent:
		return 0, false, false, nil
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return 0, false, true, fmt.Errorf("HTTP error: %d %s", resp.StatusCode(), resp.Status())
	}
	if resp.IsError() {
		return 0, false, false, fmt.Errorf("HTTP error: %d %s", resp.StatusCode(), resp.Status())
	}

	var body primaryTermResponse
	if err := json.Unmarshal([]byte(resp.String()), &body); err != nil {
		return 0, false, false, fmt.Errorf("failed to decode primary term response: %w", err)
	}
	if body.TermID <= 0 {
		return 0, false, false, nil
	}

	log.Debugf("Primary %s term for item %d is %d", taxonomy, itemID, body.TermID)
	return body.TermID, true, false, nil
}

func (c *seoClient) isCircuitBreakerOpen() bool {
	c.circuitBreakerMutex.RLock()
	now := time.Now()
	wasOpen := now.Before(c.openUntil)
	wasTriggered := !c.openUntil.IsZero()
	c.circuitBreakerMutex.RUnlock()

	if !wasOpen && wasTriggered {
		c.circuitBreakerMutex.Lock()
		if !c.openUntil.IsZero() && now.After(c.openUntil) {
			c.openUntil = time.Time{}
			log.Infof("✅ SEO circuit breaker re-enabled - requests are now allowed")
		}
		c.circuitBreakerMutex.Unlock()
	}

	return wasOpen
}

func (c *seoClient) triggerCircuitBreaker() {
	c.circuitBreakerMutex.Lock()
	defer c.circuitBreakerMutex.Unlock()

	c.openUntil = time.Now().Add(c.circuitBreakerDelay)
	log.Warnf("🚫 SEO circuit breaker activated! Requests disabled until %v", c.openUntil.Format("15:04:05"))
}

func (c *seoClient) getRemainingCircuitBreakerTime() time.Duration {
	c.circuitBreakerMutex.RLock()
	defer c.circuitBreakerMutex.RUnlock()

	remaining := time.Until(c.openUntil)
	if remaining < 0 {
		return 0
	}
	return remaining
}
