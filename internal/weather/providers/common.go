package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-ics/internal/metrics"
	"github.com/i474232898/weather-ics/internal/weather"
)

const userAgent = "weather-ics/1.0"

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client  *http.Client
	Timeout time.Duration
	Backoff BackoffConfig
}

var (
	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errUnexpected    = errors.New("unexpected status code")
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

func defaultHTTPConfig(client *http.Client, timeout time.Duration) HTTPClientConfig {
	return HTTPClientConfig{
		Client:  client,
		Timeout: timeout,
		Backoff: BackoffConfig{
			MaxRetries:      2,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     3 * time.Second,
		},
	}
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
}

// doRequestWithResilience executes the HTTP request under a local timeout
// with retries, exponential backoff and a circuit breaker. Client errors
// (4xx other than 429) are not retried.
func doRequestWithResilience(
	ctx context.Context,
	provider string,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) (*http.Response, context.CancelFunc, error) {
	if cfg.Client == nil {
		return nil, nil, errNoHTTPClient
	}
	if cfg.Backoff.MaxRetries < 0 || cfg.Backoff.InitialInterval <= 0 {
		return nil, nil, errInvalidConfig
	}

	cancel := context.CancelFunc(func() {})
	if cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = cfg.Backoff.InitialInterval
	if cfg.Backoff.MaxInterval > 0 {
		expo.MaxInterval = cfg.Backoff.MaxInterval
	}
	expo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(cfg.Backoff.MaxRetries)), ctx)

	start := time.Now()
	resp, err := backoff.RetryWithData[*http.Response](func() (*http.Response, error) {
		req, err := buildRequest()
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req = req.WithContext(ctx)
		req.Header.Set("User-Agent", userAgent)

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, execErr
			}

			switch {
			case resp.StatusCode == http.StatusTooManyRequests:
				resp.Body.Close()
				return nil, errRateLimited
			case resp.StatusCode >= 500:
				resp.Body.Close()
				return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
			case resp.StatusCode < 200 || resp.StatusCode >= 300:
				resp.Body.Close()
				return nil, backoff.Permanent(fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode))
			}
			return resp, nil
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return nil, backoff.Permanent(fmt.Errorf("%w: %v", errCircuitOpen, err))
			}
			return nil, err
		}

		resp, ok := result.(*http.Response)
		if !ok {
			return nil, backoff.Permanent(fmt.Errorf("unexpected result type from circuit breaker"))
		}
		return resp, nil
	}, policy)
	metrics.UpstreamLatency.WithLabelValues(provider).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(provider, "error").Inc()
		cancel()
		return nil, nil, &weather.UpstreamError{
			Provider: provider,
			Timeout:  errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded),
			Err:      err,
		}
	}
	metrics.UpstreamRequests.WithLabelValues(provider, "ok").Inc()
	return resp, cancel, nil
}

// upstreamErr builds an UpstreamError for payload-level failures.
func upstreamErr(provider string, format string, args ...any) error {
	return &weather.UpstreamError{Provider: provider, Err: fmt.Errorf(format, args...)}
}
