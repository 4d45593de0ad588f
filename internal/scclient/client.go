// Package scclient is the SafetyCulture audit API client: paginated audit
// search plus per-audit detail fetch, with retry/backoff handled internally
// so callers never see a transient failure that still had budget left.
package scclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"warranty-sync-service/internal/config"
)

const (
	maxAttempts           = 3
	baseBackoff           = 500 * time.Millisecond
	defaultRateLimitDelay = 5 * time.Second
)

var errUnexpectedStatus = errors.New("unexpected http status code")

// RawPayload is one audit document as returned by the remote API.
type RawPayload = map[string]any

// Page is one page of audit payloads. An empty NextPageToken means the
// listing is exhausted.
type Page struct {
	Audits        []RawPayload
	NextPageToken string
}

type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	token      string
	pageSize   int
	log        *zap.Logger
}

func NewClient(cfg config.SafetyCultureConfig, pageSize int, log *zap.Logger) (*Client, error) {
	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", cfg.BaseURL, err)
	}
	if pageSize <= 0 {
		pageSize = 100
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.GetTimeout()},
		baseURL:    baseURL,
		token:      cfg.APIToken,
		pageSize:   pageSize,
		log:        log,
	}, nil
}

type searchResponse struct {
	Count  int          `json:"count"`
	Total  int          `json:"total"`
	Audits []searchItem `json:"audits"`
}

type searchItem struct {
	AuditID    string `json:"audit_id"`
	ModifiedAt string `json:"modified_at"`
}

// FetchPage returns one page of full audit payloads for the template. A nil
// modifiedSince fetches everything (full sync); otherwise the server filters
// to audits modified at or after the timestamp. The page token is opaque to
// callers; pass the previous page's NextPageToken, or "" for the first page.
func (c *Client) FetchPage(ctx context.Context, templateID string, modifiedSince *time.Time, pageToken string) (*Page, error) {
	offset := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid page token %q", pageToken)
		}
		offset = n
	}

	query := url.Values{}
	query.Set("template", templateID)
	query.Set("order", "asc")
	query.Set("limit", strconv.Itoa(c.pageSize))
	query.Set("offset", strconv.Itoa(offset))
	if modifiedSince != nil {
		query.Set("modified_after", modifiedSince.UTC().Format(time.RFC3339))
	}

	var search searchResponse
	if err := c.getJSON(ctx, "/audits/search", query, &search); err != nil {
		return nil, err
	}

	page := &Page{Audits: make([]RawPayload, 0, len(search.Audits))}
	for _, item := range search.Audits {
		var payload RawPayload
		if err := c.getJSON(ctx, "/audits/"+url.PathEscape(item.AuditID), nil, &payload); err != nil {
			return nil, err
		}
		page.Audits = append(page.Audits, payload)
	}

	if next := offset + len(search.Audits); len(search.Audits) > 0 && next < search.Total {
		page.NextPageToken = strconv.Itoa(next)
	}
	return page, nil
}

// getJSON performs one GET with bounded retries. AuthError and unexpected
// status codes return immediately; transient and rate-limit failures retry
// with backoff until the attempt budget runs out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL.ResolveReference(&url.URL{Path: path})
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			delay := retryDelay(lastErr, attempt)
			c.log.Warn("remote api request failed, retrying",
				zap.String("url", u.Redacted()),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := c.doOnce(ctx, u.String(), out)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &TransientError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return &TransientError{Err: err}
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("error unmarshaling response body: %w", err)
		}
		return nil

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthError{StatusCode: resp.StatusCode}

	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{RetryAfter: retryAfter(resp)}

	case resp.StatusCode >= http.StatusInternalServerError:
		return &TransientError{Err: fmt.Errorf("%w: %d", errUnexpectedStatus, resp.StatusCode)}

	default:
		return fmt.Errorf("%w: %d", errUnexpectedStatus, resp.StatusCode)
	}
}

func retryable(err error) bool {
	var transient *TransientError
	var rateLimit *RateLimitError
	return errors.As(err, &transient) || errors.As(err, &rateLimit)
}

func retryDelay(err error, attempt int) time.Duration {
	var rateLimit *RateLimitError
	if errors.As(err, &rateLimit) {
		if rateLimit.RetryAfter > 0 {
			return rateLimit.RetryAfter
		}
		return defaultRateLimitDelay
	}
	// 500ms, 1s, 2s, ...
	return baseBackoff << (attempt - 2)
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}
