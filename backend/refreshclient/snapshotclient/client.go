// Package snapshotclient is the client-side HTTP peer of
// backend/refresh/api.Server: it resolves the backend's lazily-published
// base URL, performs conditional snapshot GETs with ETag support, and
// formats backend-reported errors (spec.md §4.3, §6).
package snapshotclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/luxury-yacht/app/backend/refresh"
	"github.com/luxury-yacht/app/backend/refreshclient"
)

// Snapshot mirrors backend/refresh.Snapshot, the wire payload returned by
// GET /api/v2/snapshots/<domain>.
type Snapshot struct {
	Domain      string                `json:"domain"`
	Scope       string                `json:"scope,omitempty"`
	Version     uint64                `json:"version"`
	Checksum    string                `json:"checksum"`
	GeneratedAt int64                 `json:"generatedAt"`
	Sequence    uint64                `json:"sequence"`
	Payload     interface{}           `json:"payload"`
	Stats       refresh.SnapshotStats `json:"stats"`
	ETag        string                `json:"-"`
	NotModified bool                  `json:"-"`
}

// TelemetrySummary mirrors the payload returned by
// GET /api/v2/telemetry/summary.
type TelemetrySummary struct {
	Raw json.RawMessage
}

// FetchOptions parametrizes FetchSnapshot.
type FetchOptions struct {
	Scope       string
	IfNoneMatch string
}

// BaseURLFunc resolves the backend's published base URL; it returns an
// error whose message matches refresh subsystem not initialised while the
// backend has not finished wiring its HTTP server yet.
type BaseURLFunc func(ctx context.Context) (string, error)

var notInitialisedPattern = regexp.MustCompile(`(?i)refresh subsystem not initialised`)

const (
	maxReadinessAttempts = 30
	readinessInitialWait = 200 * time.Millisecond
	readinessMaxWait     = time.Second

	maxSnapshotAttempts = 3
)

var snapshotRetryDelays = []time.Duration{200 * time.Millisecond, 400 * time.Millisecond}

// Client is the refresh core's HTTP peer for the backend's refresh API.
type Client struct {
	httpClient  *http.Client
	resolveBase BaseURLFunc
	logger      refreshclient.Logger
	clock       refreshclient.Clock

	baseGroup singleflight.Group

	// baseMu guards baseURL/baseValid. singleflight.Group only dedupes
	// concurrent resolver calls sharing the same key; it does nothing to
	// serialize a concurrent InvalidateRefreshBaseURL call (fired on every
	// kubeconfig change) against cachedBaseURL reads or the resolver's own
	// write, so these two fields get their own lock.
	baseMu    sync.Mutex
	baseURL   string
	baseValid bool
}

// New constructs a Client. httpClient, logger and clock default to
// http.DefaultClient, a no-op logger and the real clock when nil.
func New(resolveBase BaseURLFunc, httpClient *http.Client, logger refreshclient.Logger, clock refreshclient.Clock) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if clock == nil {
		clock = refreshclient.NewRealClock()
	}
	return &Client{
		httpClient:  httpClient,
		resolveBase: resolveBase,
		logger:      logger,
		clock:       clock,
	}
}

// EnsureRefreshBaseURL resolves and caches the backend base URL, retrying
// while the backend reports it has not initialised yet (spec.md §4.3).
// Concurrent callers collapse onto a single resolution attempt.
func (c *Client) EnsureRefreshBaseURL(ctx context.Context) (string, error) {
	if cached, ok := c.cachedBaseURL(); ok {
		return cached, nil
	}

	v, err, _ := c.baseGroup.Do("base-url", func() (interface{}, error) {
		if cached, ok := c.cachedBaseURL(); ok {
			return cached, nil
		}
		url, err := c.resolveWithRetry(ctx)
		if err != nil {
			return "", err
		}
		c.baseMu.Lock()
		c.baseURL = url
		c.baseValid = true
		c.baseMu.Unlock()
		return url, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) cachedBaseURL() (string, bool) {
	c.baseMu.Lock()
	defer c.baseMu.Unlock()
	if c.baseValid && c.baseURL != "" {
		return c.baseURL, true
	}
	return "", false
}

// InvalidateRefreshBaseURL forces the next EnsureRefreshBaseURL call to
// re-resolve the backend address.
func (c *Client) InvalidateRefreshBaseURL() {
	c.baseMu.Lock()
	c.baseValid = false
	c.baseMu.Unlock()
}

func (c *Client) resolveWithRetry(ctx context.Context) (string, error) {
	if c.resolveBase == nil {
		return "", errors.New("no base URL resolver configured")
	}
	wait := readinessInitialWait
	var lastErr error
	for attempt := 0; attempt < maxReadinessAttempts; attempt++ {
		url, err := c.resolveBase(ctx)
		if err == nil {
			return url, nil
		}
		lastErr = err
		if !notInitialisedPattern.MatchString(err.Error()) {
			return "", err
		}
		if attempt == maxReadinessAttempts-1 {
			break
		}
		if err := c.sleep(ctx, wait); err != nil {
			return "", err
		}
		wait *= 2
		if wait > readinessMaxWait {
			wait = readinessMaxWait
		}
	}
	return "", fmt.Errorf("refresh base URL never became ready: %w", lastErr)
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// FetchSnapshot performs GET /api/v2/snapshots/<domain>, retrying transient
// network failures twice before giving up (spec.md §4.3).
func (c *Client) FetchSnapshot(ctx context.Context, domain string, opts FetchOptions) (Snapshot, error) {
	var lastErr error
	for attempt := 0; attempt < maxSnapshotAttempts; attempt++ {
		snap, err := c.fetchSnapshotOnce(ctx, domain, opts)
		if err == nil {
			return snap, nil
		}
		if ctx.Err() != nil {
			return Snapshot{}, refreshclient.NewAbortError("snapshot fetch cancelled")
		}
		lastErr = err
		if !refreshclient.IsNetworkTransient(err) || attempt == maxSnapshotAttempts-1 {
			return Snapshot{}, err
		}
		c.InvalidateRefreshBaseURL()
		if err := c.sleep(ctx, snapshotRetryDelays[attempt]); err != nil {
			return Snapshot{}, refreshclient.NewAbortError("snapshot fetch cancelled")
		}
	}
	return Snapshot{}, lastErr
}

func (c *Client) fetchSnapshotOnce(ctx context.Context, domain string, opts FetchOptions) (Snapshot, error) {
	base, err := c.EnsureRefreshBaseURL(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	url := fmt.Sprintf("%s/api/v2/snapshots/%s", strings.TrimRight(base, "/"), domain)
	if opts.Scope != "" {
		url += "?scope=" + urlQueryEscape(opts.Scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Snapshot{}, err
	}
	if opts.IfNoneMatch != "" {
		req.Header.Set("If-None-Match", opts.IfNoneMatch)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return Snapshot{NotModified: true}, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Snapshot{}, err
	}

	if resp.StatusCode == http.StatusOK {
		var snap Snapshot
		if err := json.Unmarshal(body, &snap); err != nil {
			return Snapshot{}, err
		}
		snap.ETag = resp.Header.Get("ETag")
		return snap, nil
	}

	return Snapshot{}, formatResponseError(resp.StatusCode, resp.Status, body)
}

// statusPayload mirrors the permission-denied and generic error body shapes
// the backend may return (spec.md §6).
type statusPayload struct {
	Kind    string `json:"kind"`
	Reason  string `json:"reason"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details struct {
		Domain   string `json:"domain,omitempty"`
		Resource string `json:"resource,omitempty"`
		Kind     string `json:"kind,omitempty"`
		Name     string `json:"name,omitempty"`
	} `json:"details"`
}

// formatResponseError centralizes permission-denied formatting (spec.md §9
// Open Question c): the orchestrator never reformats a 403 body itself.
func formatResponseError(statusCode int, status string, body []byte) error {
	var payload statusPayload
	if len(body) > 0 {
		_ = json.Unmarshal(body, &payload)
	}

	if payload.Reason == "Forbidden" && payload.Code == http.StatusForbidden {
		resource := firstNonEmpty(payload.Details.Resource, payload.Details.Kind, payload.Details.Name)
		permErr := refresh.PermissionDeniedError{Domain: payload.Details.Domain, Resource: resource}
		if payload.Message != "" && !strings.Contains(payload.Message, permErr.Domain) {
			return fmt.Errorf("%s: %s", payload.Message, permErr.Error())
		}
		if payload.Message != "" {
			return errors.New(payload.Message)
		}
		return permErr
	}

	if payload.Message != "" {
		return errors.New(payload.Message)
	}
	return fmt.Errorf("snapshot request failed: %d %s", statusCode, status)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func urlQueryEscape(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, " ", "%20"), "|", "%7C")
}

// FetchTelemetrySummary performs GET /api/v2/telemetry/summary.
func (c *Client) FetchTelemetrySummary(ctx context.Context) (TelemetrySummary, error) {
	base, err := c.EnsureRefreshBaseURL(ctx)
	if err != nil {
		return TelemetrySummary{}, err
	}
	url := strings.TrimRight(base, "/") + "/api/v2/telemetry/summary"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return TelemetrySummary{}, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return TelemetrySummary{}, fmt.Errorf("telemetry request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return TelemetrySummary{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return TelemetrySummary{}, formatResponseError(resp.StatusCode, resp.Status, body)
	}
	return TelemetrySummary{Raw: body}, nil
}

// SetMetricsActive calls POST /api/v2/metrics/active{active}. Domains with
// a metrics-only overlay call this as their stream becomes visible or
// hidden, so the backend's demand poller does not run when nothing needs
// usage data.
func (c *Client) SetMetricsActive(ctx context.Context, active bool) error {
	base, err := c.EnsureRefreshBaseURL(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(struct {
		Active bool `json:"active"`
	}{Active: active})
	if err != nil {
		return err
	}
	url := strings.TrimRight(base, "/") + "/api/v2/metrics/active"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(payload)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("metrics active request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return formatResponseError(resp.StatusCode, resp.Status, body)
	}
	return nil
}
