package adapter

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"

	"github.com/pkritskov/shellsync/internal/config"
	"github.com/pkritskov/shellsync/internal/logger"
)

const defaultUserAgent = "shellsync/1.0"

type httpRemoteRepository struct {
	client *resty.Client
	tokens TokenSource
	retry  retryPolicy

	logger *logger.Logger
}

// NewHTTPRemoteRepository constructs an HTTP/REST implementation of
// [RemoteRepository]. It normalises and validates the base URL from
// cfg.BaseURL, configures the underlying resty client with the resolved base
// URL, default headers, and request timeout, and wires the jittered retry
// policy from the backoff settings.
//
// Returns an error if cfg.BaseURL is empty or cannot be parsed as a valid
// URL.
func NewHTTPRemoteRepository(cfg config.Remote, tokens TokenSource, log *logger.Logger) (RemoteRepository, error) {
	baseURL, err := normalizeBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid remote base url: %w", err)
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(cfg.RequestTimeout).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", defaultUserAgent)

	if tokens == nil {
		tokens = NewStaticTokenSource(cfg.Token)
	}

	return &httpRemoteRepository{
		client: client,
		tokens: tokens,
		retry: retryPolicy{
			base:        cfg.BackoffBase,
			cap:         cfg.BackoffCap,
			maxAttempts: cfg.RetryMaxAttempts,
		},
		logger: log,
	}, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty address")
	}

	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("address must include host and scheme")
	}

	return strings.TrimRight(u.String(), "/"), nil
}

// Create implements [RemoteRepository]. It POSTs body to
// POST /{container}/elements and returns the server's representation of the
// created element. Transient failures are retried per the configured
// backoff schedule.
func (h *httpRemoteRepository) Create(ctx context.Context, container string, body []byte) ([]byte, error) {
	resp, err := h.execute(ctx, func(req *resty.Request) (*resty.Response, error) {
		return req.SetBody(body).Post(elementsPath(container))
	})
	if err != nil {
		return nil, fmt.Errorf("create element: %w", err)
	}

	return resp.Body(), nil
}

// Fetch implements [RemoteRepository]. It GETs
// GET /{container}/elements/{path} and captures the Last-Modified response
// header as the optional server timestamp. Returns [ErrNotFound] (wrapped)
// when the server responds 404.
func (h *httpRemoteRepository) Fetch(ctx context.Context, container, path string) (FetchResult, error) {
	resp, err := h.execute(ctx, func(req *resty.Request) (*resty.Response, error) {
		return req.Get(elementPath(container, path))
	})
	if err != nil {
		return FetchResult{}, fmt.Errorf("fetch element: %w", err)
	}

	return FetchResult{
		Body:       resp.Body(),
		ModifiedAt: parseLastModified(resp.Header().Get("Last-Modified")),
	}, nil
}

// Update implements [RemoteRepository]. It PUTs body to
// PUT /{container}/elements/{path}.
func (h *httpRemoteRepository) Update(ctx context.Context, container, path string, body []byte) error {
	_, err := h.execute(ctx, func(req *resty.Request) (*resty.Response, error) {
		return req.SetBody(body).Put(elementPath(container, path))
	})
	if err != nil {
		return fmt.Errorf("update element: %w", err)
	}

	return nil
}

// Delete implements [RemoteRepository]. It sends
// DELETE /{container}/elements/{path}. A 404 response surfaces as a wrapped
// [ErrNotFound]; deciding whether "already gone" counts as success is left
// to the caller.
func (h *httpRemoteRepository) Delete(ctx context.Context, container, path string) error {
	_, err := h.execute(ctx, func(req *resty.Request) (*resty.Response, error) {
		return req.Delete(elementPath(container, path))
	})
	if err != nil {
		return fmt.Errorf("delete element: %w", err)
	}

	return nil
}

// execute runs send under the retry policy. Network-level failures and
// retryable HTTP errors (429, 5xx) are retried with jittered exponential
// backoff until the attempt budget is exhausted; terminal errors are
// surfaced immediately. The last error is returned once retries run out.
func (h *httpRemoteRepository) execute(ctx context.Context, send func(*resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	var resp *resty.Response

	attempt := func() error {
		req, err := h.authedRequest(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err = send(req)
		if err != nil {
			// transport-level failure (DNS, connect, timeout) — retryable
			return fmt.Errorf("request failed: %w", err)
		}

		if mapped := mapHTTPError(resp); mapped != nil {
			if IsRetryable(mapped) {
				h.logger.Debug().
					Int("status", resp.StatusCode()).
					Str("url", resp.Request.URL).
					Msg("retryable response from remote repository")
				return mapped
			}
			return backoff.Permanent(mapped)
		}

		return nil
	}

	err := backoff.Retry(attempt, backoff.WithContext(h.retry.backOff(), ctx))
	if err != nil {
		return resp, err
	}
	return resp, nil
}

func (h *httpRemoteRepository) authedRequest(ctx context.Context) (*resty.Request, error) {
	req := h.client.R().SetContext(ctx)

	token, err := h.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("obtain bearer token: %w", err)
	}
	if token != "" {
		req.SetHeader("Authorization", "Bearer "+token)
	}

	return req, nil
}

func elementsPath(container string) string {
	return "/" + url.PathEscape(container) + "/elements"
}

func elementPath(container, path string) string {
	return elementsPath(container) + "/" + url.PathEscape(path)
}

func parseLastModified(value string) *time.Time {
	if value == "" {
		return nil
	}
	ts, err := time.Parse(time.RFC1123, value)
	if err != nil {
		return nil
	}
	ts = ts.UTC()
	return &ts
}
