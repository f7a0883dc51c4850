package manifest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"launcher/internal/debug"
	appErrors "launcher/internal/errors"
	"launcher/internal/store"
)

// Default configuration values.
const (
	DefaultTimeout = 10 * time.Second
	DefaultMaxAge  = 10 * time.Minute

	// SignatureSuffix is appended to the manifest URL to locate its signature.
	SignatureSuffix = ".sig"

	maxManifestBytes = 4 << 20
)

var log = debug.Component("manifest")

// Cache persists the last origin response. *store.Store satisfies it.
type Cache interface {
	LoadManifest(ctx context.Context, url string) (store.CachedManifest, bool, error)
	SaveManifest(ctx context.Context, m store.CachedManifest) error
	TouchManifest(ctx context.Context, url string, fetchedAt time.Time) error
}

// FetchError is returned by Fetch on failure. The wrapped error carries a
// code: CodeOffline when the origin is unreachable, otherwise a more specific
// manifest code. Cached holds the last known manifest, if any, so callers can
// keep showing news while offline.
type FetchError struct {
	Err    error
	Cached *Manifest
}

func (e *FetchError) Error() string { return e.Err.Error() }
func (e *FetchError) Unwrap() error { return e.Err }

// Offline reports whether the failure is a connectivity problem.
func (e *FetchError) Offline() bool {
	return appErrors.IsCode(e.Err, appErrors.CodeOffline)
}

// Client fetches the manifest from a single URL.
type Client struct {
	url        string
	httpClient *http.Client
	cache      Cache
	maxAge     time.Duration
	verifier   *Verifier
	userAgent  string
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithCache enables the manifest cache.
func WithCache(cache Cache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithMaxAge sets how long a cached manifest is served without contacting the
// origin. Zero always revalidates.
func WithMaxAge(d time.Duration) Option {
	return func(c *Client) {
		c.maxAge = d
	}
}

// WithVerifier requires every origin response to carry a valid signature.
func WithVerifier(v *Verifier) Option {
	return func(c *Client) {
		c.verifier = v
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithClock overrides time.Now; used by tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a manifest client for url.
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url:        strings.TrimSpace(url),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		maxAge:     DefaultMaxAge,
		userAgent:  "launcher-manifest-client",
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the manifest location.
func (c *Client) URL() string { return c.url }

// Fetch returns the current manifest. A forced fetch always goes to the origin
// and asks intermediaries not to serve a cached copy. A normal fetch serves a
// fresh cache entry and otherwise revalidates it with If-None-Match.
//
// Every error is a *FetchError.
func (c *Client) Fetch(ctx context.Context, force bool) (*Manifest, error) {
	if c.url == "" {
		return nil, &FetchError{Err: appErrors.New(appErrors.CodeConfigurationError, "no manifest url configured", nil)}
	}

	cached, haveCache := c.loadCache(ctx)
	if !force && haveCache && c.maxAge > 0 && c.now().Sub(cached.FetchedAt) < c.maxAge {
		if m, err := Decode(cached.Body); err == nil {
			log.Logf("serving cached manifest fetched %s", cached.FetchedAt.Format(time.RFC3339))
			return m, nil
		}
	}

	m, err := c.fetchOrigin(ctx, force, cached, haveCache)
	if err == nil {
		return m, nil
	}
	classified := Classify(err)
	log.Logf("fetch failed (force=%v, code=%s): %v", force, appErrors.CodeOf(classified), err)
	fe := &FetchError{Err: classified}
	if haveCache {
		if cm, decodeErr := Decode(cached.Body); decodeErr == nil {
			fe.Cached = cm
		}
	}
	return nil, fe
}

func (c *Client) loadCache(ctx context.Context) (store.CachedManifest, bool) {
	if c.cache == nil {
		return store.CachedManifest{}, false
	}
	cached, ok, err := c.cache.LoadManifest(ctx, c.url)
	if err != nil {
		log.Logf("load cache: %v", err)
		return store.CachedManifest{}, false
	}
	return cached, ok
}

func (c *Client) fetchOrigin(ctx context.Context, force bool, cached store.CachedManifest, haveCache bool) (*Manifest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, appErrors.New(appErrors.CodeConfigurationError, fmt.Sprintf("bad manifest url: %v", err), err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if force {
		req.Header.Set("Cache-Control", "no-cache")
		req.Header.Set("Pragma", "no-cache")
	} else if haveCache && cached.ETag != "" {
		req.Header.Set("If-None-Match", cached.ETag)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotModified && haveCache && !force {
		m, err := Decode(cached.Body)
		if err != nil {
			return nil, err
		}
		if err := c.cache.TouchManifest(ctx, c.url, c.now()); err != nil {
			log.Logf("touch cache: %v", err)
		}
		log.Logf("manifest not modified (etag %s)", cached.ETag)
		return m, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, appErrors.New(appErrors.CodeManifestFailed,
			fmt.Sprintf("manifest server returned %s", resp.Status), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read manifest body: %w", err)
	}
	if len(body) > maxManifestBytes {
		return nil, appErrors.New(appErrors.CodeManifestInvalid, "manifest exceeds 4 MiB", nil)
	}

	if c.verifier != nil {
		if err := c.verify(ctx, body); err != nil {
			return nil, err
		}
	}

	m, err := Decode(body)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		entry := store.CachedManifest{URL: c.url, Body: body, ETag: resp.Header.Get("ETag"), FetchedAt: c.now()}
		if err := c.cache.SaveManifest(ctx, entry); err != nil {
			log.Logf("save cache: %v", err)
		}
	}
	log.Logf("fetched manifest latest_version=%s force=%v", m.LatestVersion, force)
	return m, nil
}

func (c *Client) verify(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+SignatureSuffix, nil)
	if err != nil {
		return fmt.Errorf("create signature request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Cache-Control", "no-cache")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return appErrors.New(appErrors.CodeSignatureInvalid,
			fmt.Sprintf("manifest signature unavailable: %s", resp.Status), nil)
	}
	sig, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("read manifest signature: %w", err)
	}
	return c.verifier.Verify(body, sig)
}
