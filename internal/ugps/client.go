// Package ugps talks to the Water Linked Underwater GPS topside box.
package ugps

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/relabs-tech/nmea_injector/internal/gps"
)

const (
	DefaultURL            = "https://demo.waterlinked.com"
	DefaultRequestTimeout = 1 * time.Second
	DefaultProbeInterval  = 5 * time.Second

	externalMasterPath = "/api/v1/external/master"
	aboutPath          = "/api/v1/about/"

	maxErrorBody = 512
)

// ErrUnexpectedStatus is wrapped by StatusError.
var ErrUnexpectedStatus = errors.New("ugps: unexpected status")

// StatusError is a non-2xx reply from the topside.
type StatusError struct {
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ugps: HTTP %s: %s", e.Status, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }

type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient returns a client for the topside at baseURL. Every request is
// bounded by timeout so a hung connection cannot stall the caller.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With("component", "ugps"),
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

// SetExternalMaster sends the topside position and heading. Any 2xx reply is
// success; everything else, including transport failures, is an error.
func (c *Client) SetExternalMaster(ctx context.Context, snap gps.Snapshot) error {
	return c.put(ctx, externalMasterPath, snap)
}

func (c *Client) put(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("ugps: encode %s: %w", path, err)
	}
	url := c.baseURL + path
	c.logger.Debug("request", "method", http.MethodPut, "url", url, "json", string(payload))

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("ugps: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ugps: put %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Code: resp.StatusCode, Status: resp.Status, Body: strings.TrimSpace(string(b))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	c.logger.Debug("response", "status", resp.Status)
	return nil
}

// Probe checks that the topside answers HTTP at all. Any response counts as
// reachable; only transport failures are errors.
func (c *Client) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+aboutPath, nil)
	if err != nil {
		return fmt.Errorf("ugps: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ugps: probe: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil
}

// WaitForConnection probes every interval until the topside answers. It never
// gives up on its own; it returns ctx.Err() when ctx is cancelled.
func (c *Client) WaitForConnection(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	for {
		c.logger.Info("scanning for Water Linked underwater GPS", "url", c.baseURL)
		err := c.Probe(ctx)
		if err == nil {
			c.logger.Info("underwater GPS found", "url", c.baseURL)
			return nil
		}
		c.logger.Debug("probe failed", "err", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
