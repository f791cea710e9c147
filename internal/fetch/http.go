package fetch

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// getHTTP downloads url into dst. Network timeouts, 429 and 5xx responses are
// retried with exponential backoff (honouring Retry-After); other non-2xx
// statuses fail immediately with a classified *StatusError.
func (f *Fetcher) getHTTP(ctx context.Context, url string, header http.Header, dst string) (int64, error) {
	backoff := f.retryBaseDelay
	var lastErr error
	for attempt := 1; attempt <= f.retryMaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return 0, fmt.Errorf("build request: %w", err)
		}
		for k, vals := range header {
			for _, v := range vals {
				req.Header.Add(k, v)
			}
		}
		req.Header.Set("User-Agent", "crashscope")

		resp, err := f.httpClient.Do(req)
		if err != nil {
			if isRetryableNetErr(err) && attempt < f.retryMaxAttempts {
				lastErr = err
				f.log.Warn("download failed, retrying", zap.String("url", url), zap.Int("attempt", attempt), zap.Error(err))
				if err := sleep(ctx, f.capped(withJitter(backoff))); err != nil {
					return 0, err
				}
				backoff *= 2
				continue
			}
			return 0, fmt.Errorf("http request: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			serr := statusError(url, resp)
			resp.Body.Close()
			retryable := resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599)
			if !retryable || attempt >= f.retryMaxAttempts {
				return 0, classify(serr, resp)
			}
			lastErr = serr
			wait := f.capped(withJitter(backoff))
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := parseRetryAfterSeconds(ra); err == nil {
					wait = time.Duration(secs) * time.Second
				}
			}
			f.log.Warn("download failed, retrying", zap.String("url", url), zap.Int("status", resp.StatusCode), zap.Int("attempt", attempt), zap.Duration("wait", wait))
			if err := sleep(ctx, wait); err != nil {
				return 0, err
			}
			backoff *= 2
			continue
		}

		n, err := f.writeBody(resp.Body, resp.ContentLength, path.Base(req.URL.Path), dst)
		resp.Body.Close()
		if err != nil {
			if isRetryableNetErr(err) && attempt < f.retryMaxAttempts {
				lastErr = err
				f.log.Warn("download interrupted, retrying", zap.String("url", url), zap.Int("attempt", attempt), zap.Error(err))
				if err := sleep(ctx, f.capped(withJitter(backoff))); err != nil {
					return 0, err
				}
				backoff *= 2
				continue
			}
			return 0, fmt.Errorf("read body: %w", err)
		}
		return n, nil
	}
	return 0, lastErr
}

// getKaggle downloads the dataset archive through the Kaggle API using basic
// auth. Kaggle answers with a redirect to storage; the client follows it and
// drops the Authorization header on the cross-host hop.
func (f *Fetcher) getKaggle(ctx context.Context, src Source, dst string) (int64, error) {
	if f.kaggleUser == "" || f.kaggleKey == "" {
		return 0, errors.New("kaggle credentials missing (set kaggle_username and kaggle_key, or CRASHSCOPE_KAGGLE_USERNAME/CRASHSCOPE_KAGGLE_KEY)")
	}
	url := fmt.Sprintf("%s/datasets/download/%s/%s", f.kaggleBaseURL, src.Owner, src.Dataset)
	auth := base64.StdEncoding.EncodeToString([]byte(f.kaggleUser + ":" + f.kaggleKey))
	h := http.Header{}
	h.Set("Authorization", "Basic "+auth)
	return f.getHTTP(ctx, url, h, dst)
}

func statusError(url string, resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200] + "…"
	}
	return &StatusError{URL: url, StatusCode: resp.StatusCode, Message: msg, RequestID: extractRequestID(resp)}
}

// classify maps a StatusError to a typed error.
func classify(e *StatusError, resp *http.Response) error {
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return &AuthError{StatusError: e}
	case e.StatusCode == http.StatusNotFound:
		return &NotFoundError{StatusError: e}
	case e.StatusCode == http.StatusTooManyRequests:
		var ra time.Duration
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := parseRetryAfterSeconds(v); err == nil && secs > 0 {
				ra = time.Duration(secs) * time.Second
			}
		}
		return &RateLimitError{StatusError: e, RetryAfter: ra}
	}
	return e
}

func (f *Fetcher) capped(d time.Duration) time.Duration {
	if f.retryMaxDelay > 0 && d > f.retryMaxDelay {
		return f.retryMaxDelay
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	return false
}

// parseRetryAfterSeconds interprets Retry-After as seconds or an HTTP date.
func parseRetryAfterSeconds(v string) (int, error) {
	if s, err := strconv.Atoi(v); err == nil {
		return s, nil
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return int(d.Seconds()), nil
	}
	return 0, fmt.Errorf("invalid Retry-After: %q", v)
}

func extractRequestID(resp *http.Response) string {
	for _, k := range []string{"X-Request-Id", "X-Amz-Request-Id", "X-Kaggle-Request-Id"} {
		if v := resp.Header.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// withJitter applies ±20% jitter.
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 500 * time.Millisecond
	}
	out := time.Duration(float64(d) * (0.8 + rand.Float64()*0.4))
	if out <= 0 {
		return d
	}
	return out
}
