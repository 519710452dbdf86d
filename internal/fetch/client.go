// Package fetch performs the job's HTTP GETs with transport-level retry and
// maps every failure onto the application's error categories.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"syscall"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"firdscli/internal/config"
	apperrors "firdscli/internal/errors"
)

// Getter is the subset of Client used by the feed locator and the archive
// resolver
type Getter interface {
	Get(ctx context.Context, url string) (io.ReadCloser, error)
}

// Client wraps a retrying HTTP client
type Client struct {
	http      *retryablehttp.Client
	userAgent string
	logger    *slog.Logger
}

// Option configures a Client
type Option func(*clientOptions)

type clientOptions struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// WithTracerProvider instruments requests with spans from tp
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *clientOptions) { o.tracerProvider = tp }
}

// WithMeterProvider records client metrics on mp
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *clientOptions) { o.meterProvider = mp }
}

// NewClient creates a client from the HTTP configuration. RetryMax of zero
// makes every request a single attempt.
func NewClient(cfg config.HTTPConfig, logger *slog.Logger, opts ...Option) *Client {
	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}

	var otelOpts []otelhttp.Option
	if o.tracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(o.tracerProvider))
	}
	if o.meterProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(o.meterProvider))
	}

	logger = logger.With(slog.String("component", "http"))

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{
		Timeout:   cfg.Timeout,
		Transport: otelhttp.NewTransport(cleanhttp.DefaultPooledTransport(), otelOpts...),
	}
	rc.RetryMax = cfg.RetryMax
	rc.RetryWaitMin = cfg.RetryWaitMin
	rc.RetryWaitMax = cfg.RetryWaitMax
	rc.Logger = nil
	// Hand back the last response or error so it can be classified.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			logger.WarnContext(req.Context(), "retrying_request",
				slog.String("url", req.URL.String()),
				slog.Int("attempt", attempt))
		}
	}

	return &Client{
		http:      rc,
		userAgent: cfg.UserAgent,
		logger:    logger,
	}
}

// Get issues a GET and returns the body of a 2xx response. The caller closes
// the body. Failures are *errors.AppError values of category HTTP_STATUS,
// CONNECTION, TIMEOUT, TRANSPORT or CANCELLED.
func (c *Client) Get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.NewTransportError(fmt.Sprintf("invalid request for %s", url), err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	c.logger.DebugContext(ctx, "http_get", slog.String("url", url))

	resp, err := c.http.Do(req)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		classified := Classify(ctx, url, err)
		c.logger.ErrorContext(ctx, "http_get_failed",
			slog.String("url", url),
			slog.String("error", err.Error()),
			slog.String("error_type", string(apperrors.TypeOf(classified))))
		return nil, classified
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		c.logger.ErrorContext(ctx, "http_bad_status",
			slog.String("url", url),
			slog.Int("status_code", resp.StatusCode),
			slog.String("status", resp.Status))
		return nil, apperrors.NewHTTPStatusError(url, resp.StatusCode, resp.Status)
	}

	c.logger.DebugContext(ctx, "http_get_ok",
		slog.String("url", url),
		slog.Int64("content_length", resp.ContentLength))

	return resp.Body, nil
}

// Classify maps a transport failure to its category. A cancelled or expired
// parent context wins over whatever the transport reported.
func Classify(ctx context.Context, url string, err error) error {
	if ctx.Err() != nil {
		return apperrors.NewCancelledError(fmt.Sprintf("request to %s cancelled", url), err)
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return apperrors.NewTimeoutError(fmt.Sprintf("request to %s timed out", url), err)
	}

	var (
		opErr  *net.OpError
		dnsErr *net.DNSError
	)
	if errors.As(err, &dnsErr) || errors.As(err, &opErr) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return apperrors.NewConnectionError(fmt.Sprintf("cannot connect to %s", url), err)
	}

	return apperrors.NewTransportError(fmt.Sprintf("request to %s failed", url), err)
}
