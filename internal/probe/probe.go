// Package probe checks from the outside that a responder is serving.
package probe

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Config holds probe settings.
type Config struct {
	URL     string        // full URL to GET
	Expect  string        // required body; empty accepts any body
	Timeout time.Duration // max time for the whole check
}

// Result is the outcome of a single probe.
type Result struct {
	Status   int
	Body     string
	Duration time.Duration
}

// maxBody bounds how much of the response is read for comparison.
const maxBody = 64 << 10

// Check performs one GET and returns an error unless the response is 200
// and, when Expect is set, the body matches it exactly.
func Check(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	client := &http.Client{Timeout: cfg.Timeout}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	res := &Result{
		Status:   resp.StatusCode,
		Body:     string(body),
		Duration: time.Since(start),
	}

	if resp.StatusCode != http.StatusOK {
		return res, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	if cfg.Expect != "" && res.Body != cfg.Expect {
		return res, fmt.Errorf("unexpected body: %q", res.Body)
	}
	return res, nil
}

// Dial reports whether anything accepts TCP connections at addr.
func Dial(ctx context.Context, addr string, timeout time.Duration) error {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("tcp connect failed: %w", err)
	}
	conn.Close()
	return nil
}
