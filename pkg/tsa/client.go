// Copyright 2025 The Tsaudit Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tsa is the HTTP client for the Time Stamping Authority. It posts
// raw TSQ bytes and returns raw TSR bytes, retrying transient failures with
// exponential backoff and validating that the response body parses as an
// RFC 3161 timestamp response before handing it back.
package tsa

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/digitorus/timestamp"
	tsaclient "github.com/sigstore/timestamp-authority/pkg/client"
)

// timestampReplyMediaType is the RFC 3161 response media type.
const timestampReplyMediaType = "application/timestamp-reply"

// maxResponseBytes caps how much of a TSA response is read. Real tokens are
// a few kilobytes.
const maxResponseBytes = 1 << 20

// ErrUnavailable reports that no usable TSR could be obtained from the
// authority. Issuance treats it as a degraded outcome, not a failure.
var ErrUnavailable = errors.New("tsa: no usable response from authority")

// Options configures a Client.
type Options struct {
	// URL is the authority endpoint receiving the POST.
	URL string
	// MaxAttempts is the total number of tries, including the first.
	// Values below 1 mean a single attempt.
	MaxAttempts int
	// BackoffFactor scales the exponential sleep between attempts, in
	// seconds: factor * 2^(attempt-1).
	BackoffFactor float64
	// RetryStatuses are the HTTP status codes retried besides transport
	// errors. Defaults to 429, 500, 502, 503, 504.
	RetryStatuses []int
	// Timeout bounds each individual attempt.
	Timeout time.Duration
	// UserAgent is sent on every request when non-empty.
	UserAgent string
}

// Client requests timestamp tokens from one authority.
type Client struct {
	opts Options
	http *http.Client
}

// New builds a Client from opts, filling in defaults.
func New(opts Options) *Client {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	if opts.BackoffFactor <= 0 {
		opts.BackoffFactor = 1
	}
	if len(opts.RetryStatuses) == 0 {
		opts.RetryStatuses = []int{http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Client{
		opts: opts,
		http: &http.Client{Timeout: opts.Timeout},
	}
}

// RequestToken posts tsq to the authority and returns the TSR bytes. The
// returned bytes have been parsed once to confirm they are structurally an
// RFC 3161 response; callers store them opaquely. All failure modes wrap
// ErrUnavailable.
func (c *Client) RequestToken(ctx context.Context, tsq []byte) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, c.backoff(attempt-1)); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
			}
		}

		tsr, retryable, err := c.post(ctx, tsq)
		if err == nil {
			return tsr, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return nil, fmt.Errorf("%w: %w", ErrUnavailable, lastErr)
}

func (c *Client) post(ctx context.Context, tsq []byte) (tsr []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.URL, bytes.NewReader(tsq))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", tsaclient.TimestampQueryMediaType)
	req.Header.Set("Accept", timestampReplyMediaType)
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.retryStatus(resp.StatusCode), fmt.Errorf("authority returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, true, fmt.Errorf("reading response body: %w", err)
	}
	if _, err := timestamp.ParseResponse(body); err != nil {
		return nil, false, fmt.Errorf("response is not a valid timestamp response: %w", err)
	}
	return body, false, nil
}

func (c *Client) retryStatus(code int) bool {
	for _, s := range c.opts.RetryStatuses {
		if s == code {
			return true
		}
	}
	return false
}

// backoff mirrors the urllib3 formula: factor * 2^(retry-1) seconds.
func (c *Client) backoff(retry int) time.Duration {
	return time.Duration(c.opts.BackoffFactor * float64(int(1)<<(retry-1)) * float64(time.Second))
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
