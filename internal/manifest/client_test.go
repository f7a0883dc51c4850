package manifest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	appErrors "launcher/internal/errors"
	"launcher/internal/store"
)

type memCache struct {
	mu      sync.Mutex
	entries map[string]store.CachedManifest
	saves   int
	touches int
	loadErr error
}

func newMemCache() *memCache {
	return &memCache{entries: map[string]store.CachedManifest{}}
}

func (c *memCache) LoadManifest(_ context.Context, url string) (store.CachedManifest, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loadErr != nil {
		return store.CachedManifest{}, false, c.loadErr
	}
	m, ok := c.entries[url]
	return m, ok, nil
}

func (c *memCache) SaveManifest(_ context.Context, m store.CachedManifest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saves++
	c.entries[m.URL] = m
	return nil
}

func (c *memCache) TouchManifest(_ context.Context, url string, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touches++
	m := c.entries[url]
	m.FetchedAt = at
	c.entries[url] = m
	return nil
}

func manifestBody(version string) string {
	return fmt.Sprintf(`{"game_name":"Skyforge","latest_version":%q,"background":"bg.jpg"}`, version)
}

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time          { return f.now }
func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func TestFetchSavesCache(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("ETag", `"v130"`)
		_, _ = fmt.Fprint(w, manifestBody("1.3.0"))
	}))
	defer server.Close()

	cache := newMemCache()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := NewClient(server.URL, WithCache(cache), WithClock(clock.Now))

	m, err := c.Fetch(context.Background(), false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if m.LatestVersion != "1.3.0" || len(m.Backgrounds) != 1 {
		t.Fatalf("unexpected manifest %+v", m)
	}
	entry := cache.entries[server.URL]
	if entry.ETag != `"v130"` || !entry.FetchedAt.Equal(clock.now) {
		t.Fatalf("cache entry = %+v", entry)
	}

	// Within max-age the cache is served without a request.
	clock.Advance(5 * time.Minute)
	if _, err := c.Fetch(context.Background(), false); err != nil {
		t.Fatalf("cached Fetch: %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected 1 origin hit, got %d", hits.Load())
	}
	if got := cache.entries[server.URL]; !got.FetchedAt.Equal(entry.FetchedAt) {
		t.Fatalf("serving from cache must not touch FetchedAt: %v", got.FetchedAt)
	}
}

func TestFetchRevalidatesStaleCache(t *testing.T) {
	var sawIfNoneMatch atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawIfNoneMatch.Store(r.Header.Get("If-None-Match"))
		if r.Header.Get("If-None-Match") == `"v130"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		_, _ = fmt.Fprint(w, manifestBody("9.9.9"))
	}))
	defer server.Close()

	cache := newMemCache()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	cache.entries[server.URL] = store.CachedManifest{
		URL:       server.URL,
		Body:      []byte(manifestBody("1.3.0")),
		ETag:      `"v130"`,
		FetchedAt: clock.now.Add(-time.Hour),
	}
	c := NewClient(server.URL, WithCache(cache), WithClock(clock.Now))

	m, err := c.Fetch(context.Background(), false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if m.LatestVersion != "1.3.0" {
		t.Fatalf("LatestVersion = %q, want cached 1.3.0", m.LatestVersion)
	}
	if got := sawIfNoneMatch.Load(); got != `"v130"` {
		t.Fatalf("If-None-Match = %v", got)
	}
	if cache.touches != 1 || !cache.entries[server.URL].FetchedAt.Equal(clock.now) {
		t.Fatalf("cache not touched: touches=%d entry=%+v", cache.touches, cache.entries[server.URL])
	}
}

func TestForcedFetchBypassesCache(t *testing.T) {
	var gotCacheControl, gotIfNoneMatch atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCacheControl.Store(r.Header.Get("Cache-Control"))
		gotIfNoneMatch.Store(r.Header.Get("If-None-Match"))
		_, _ = fmt.Fprint(w, manifestBody("1.4.0"))
	}))
	defer server.Close()

	cache := newMemCache()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	cache.entries[server.URL] = store.CachedManifest{URL: server.URL, Body: []byte(manifestBody("1.3.0")), ETag: `"v130"`, FetchedAt: clock.now}
	c := NewClient(server.URL, WithCache(cache), WithClock(clock.Now))

	m, err := c.Fetch(context.Background(), true)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if m.LatestVersion != "1.4.0" {
		t.Fatalf("forced fetch returned %q, want origin 1.4.0", m.LatestVersion)
	}
	if gotCacheControl.Load() != "no-cache" {
		t.Fatalf("Cache-Control = %v", gotCacheControl.Load())
	}
	if gotIfNoneMatch.Load() != "" {
		t.Fatalf("forced fetch sent If-None-Match %v", gotIfNoneMatch.Load())
	}
	if string(cache.entries[server.URL].Body) != manifestBody("1.4.0") {
		t.Fatal("forced fetch did not replace cache")
	}
}

func TestFetchOfflineAttachesCachedManifest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	cache := newMemCache()
	cache.entries[url] = store.CachedManifest{URL: url, Body: []byte(manifestBody("1.3.0")), FetchedAt: time.Unix(0, 0)}
	c := NewClient(url, WithCache(cache))

	_, err := c.Fetch(context.Background(), true)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %T %v", err, err)
	}
	if !fe.Offline() {
		t.Fatalf("expected offline classification, got %s (%v)", appErrors.CodeOf(err), err)
	}
	if fe.Cached == nil || fe.Cached.LatestVersion != "1.3.0" {
		t.Fatalf("cached manifest not attached: %+v", fe.Cached)
	}
}

func TestFetchOtherFailures(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantCode appErrors.Code
	}{
		{
			name:     "server error",
			handler:  func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
			wantCode: appErrors.CodeManifestFailed,
		},
		{
			name:     "malformed body",
			handler:  func(w http.ResponseWriter, r *http.Request) { _, _ = fmt.Fprint(w, "<html>") },
			wantCode: appErrors.CodeManifestInvalid,
		},
		{
			name:     "sentinel version",
			handler:  func(w http.ResponseWriter, r *http.Request) { _, _ = fmt.Fprint(w, manifestBody("0.0.0")) },
			wantCode: appErrors.CodeManifestInvalid,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			_, err := NewClient(server.URL).Fetch(context.Background(), false)
			var fe *FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("expected *FetchError, got %v", err)
			}
			if fe.Offline() {
				t.Fatal("should not be offline")
			}
			if got := appErrors.CodeOf(err); got != tt.wantCode {
				t.Fatalf("code = %s, want %s", got, tt.wantCode)
			}
			if err.Error() == "" {
				t.Fatal("error message should be non-empty for display")
			}
		})
	}
}

func TestFetchWithoutURL(t *testing.T) {
	_, err := NewClient("  ").Fetch(context.Background(), false)
	if !appErrors.IsCode(err, appErrors.CodeConfigurationError) {
		t.Fatalf("code = %s, want configuration_error", appErrors.CodeOf(err))
	}
}

func TestFetchIgnoresBrokenCache(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, manifestBody("1.3.0"))
	}))
	defer server.Close()

	cache := newMemCache()
	cache.loadErr = errors.New("disk gone")
	m, err := NewClient(server.URL, WithCache(cache)).Fetch(context.Background(), false)
	if err != nil || m.LatestVersion != "1.3.0" {
		t.Fatalf("Fetch = %+v, %v", m, err)
	}
}

func TestFetchTimeoutIsOffline(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	_, err := NewClient(server.URL, WithTimeout(50*time.Millisecond)).Fetch(context.Background(), false)
	if !appErrors.IsCode(err, appErrors.CodeOffline) {
		t.Fatalf("code = %s, want offline (%v)", appErrors.CodeOf(err), err)
	}
}

func TestFetchWithSQLiteStore(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, manifestBody("2.0.0"))
	}))
	defer server.Close()

	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), store.FileName))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer func() { _ = s.Close() }()

	c := NewClient(server.URL, WithCache(s))
	if _, err := c.Fetch(context.Background(), false); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	cached, ok, err := s.LoadManifest(context.Background(), server.URL)
	if err != nil || !ok {
		t.Fatalf("LoadManifest = %v, %v", ok, err)
	}
	m, err := Decode(cached.Body)
	if err != nil || m.LatestVersion != "2.0.0" {
		t.Fatalf("cached manifest = %+v, %v", m, err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want appErrors.Code
	}{
		{"dns", &net.DNSError{Err: "no such host", Name: "cdn.example"}, appErrors.CodeOffline},
		{"dial", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connect: connection refused")}, appErrors.CodeOffline},
		{"deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), appErrors.CodeOffline},
		{"canceled", context.Canceled, appErrors.CodeManifestFailed},
		{"other", errors.New("boom"), appErrors.CodeManifestFailed},
		{"already coded", appErrors.New(appErrors.CodeSignatureInvalid, "bad sig", nil), appErrors.CodeSignatureInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := appErrors.CodeOf(Classify(tt.err)); got != tt.want {
				t.Fatalf("Classify(%v) code = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
	if Classify(nil) != nil {
		t.Fatal("Classify(nil) should be nil")
	}
	if got := Classify(errors.New("boom")).Error(); got != "boom" {
		t.Fatalf("other failure message = %q, want verbatim", got)
	}
}
