package atlas

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultLoadTimeout bounds a single fetch + decode.
const DefaultLoadTimeout = 30 * time.Second

// Fetcher opens the raw bytes of a sprite sheet.
type Fetcher func(ctx context.Context, src string) (io.ReadCloser, error)

// Signal resolves once a load attempt finishes. Fields are written before
// done is closed and never again, so reads after Done are race free.
type Signal struct {
	source string
	done   chan struct{}
	atlas  *Atlas
	err    error
}

func newSignal(src string) *Signal {
	return &Signal{source: src, done: make(chan struct{})}
}

func failedSignal(src string, err error) *Signal {
	s := newSignal(src)
	s.resolve(nil, err)
	return s
}

func (s *Signal) resolve(a *Atlas, err error) {
	s.atlas = a
	s.err = err
	close(s.done)
}

// Source returns the requested sprite sheet location.
func (s *Signal) Source() string { return s.source }

// Done is closed when the load has succeeded or failed.
func (s *Signal) Done() <-chan struct{} { return s.done }

// Wait blocks until the load resolves or ctx is done.
func (s *Signal) Wait(ctx context.Context) (*Atlas, error) {
	select {
	case <-s.done:
		return s.atlas, s.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result reports the outcome without blocking. resolved is false while the
// load is still pending.
func (s *Signal) Result() (a *Atlas, err error, resolved bool) {
	select {
	case <-s.done:
		return s.atlas, s.err, true
	default:
		return nil, nil, false
	}
}

func (s *Signal) failed() bool {
	_, err, resolved := s.Result()
	return resolved && err != nil
}

// Loader loads exactly one sprite sheet per process. Concurrent Load calls
// share the pending Signal; a failed Signal is dropped so the next Load
// retries.
type Loader struct {
	geom    Geometry
	fetch   Fetcher
	timeout time.Duration

	mu      sync.Mutex
	source  string
	current *Signal

	fetches atomic.Int64
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFetcher replaces the default file/HTTP fetcher.
func WithFetcher(f Fetcher) LoaderOption {
	return func(l *Loader) {
		if f != nil {
			l.fetch = f
		}
	}
}

// WithHTTPClient sets the client used for http(s) sources.
func WithHTTPClient(c *http.Client) LoaderOption {
	return func(l *Loader) {
		if c != nil {
			l.fetch = defaultFetcher(c)
		}
	}
}

// WithLoadTimeout bounds each attempt.
func WithLoadTimeout(d time.Duration) LoaderOption {
	return func(l *Loader) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// NewLoader creates a loader for sheets laid out with geom.
func NewLoader(geom Geometry, opts ...LoaderOption) *Loader {
	l := &Loader{
		geom:    geom,
		fetch:   defaultFetcher(&http.Client{Timeout: DefaultLoadTimeout}),
		timeout: DefaultLoadTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Geometry returns the tile layout the loader decodes with.
func (l *Loader) Geometry() Geometry { return l.geom }

// Fetches returns how many fetches have been issued.
func (l *Loader) Fetches() int64 { return l.fetches.Load() }

// Load begins loading src, or returns the signal of the load already pending
// or completed for src.
func (l *Loader) Load(src string) *Signal {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current != nil && !l.current.failed() {
		if l.source != src {
			return failedSignal(src, fmt.Errorf("%w: have %q, requested %q", ErrSourceMismatch, l.source, src))
		}
		return l.current
	}

	sig := newSignal(src)
	l.source = src
	l.current = sig
	l.fetches.Add(1)
	go l.run(sig)
	return sig
}

// Current returns the latest signal, or nil if Load was never called.
func (l *Loader) Current() *Signal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

func (l *Loader) run(sig *Signal) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	a, err := l.load(ctx, sig.source)
	if err != nil {
		slog.Default().Warn("atlas load failed", "source", sig.source, "error", err)
		sig.resolve(nil, err)
		return
	}
	slog.Default().Info("atlas loaded",
		"source", sig.source,
		"bounds", a.Bounds().Size().String(),
		"tiles", a.TileCount(),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	sig.resolve(a, nil)
}

func (l *Loader) load(ctx context.Context, src string) (*Atlas, error) {
	rc, err := l.fetch(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %w", ErrAssetLoad, src, err)
	}
	defer rc.Close()
	return Decode(rc, l.geom, src)
}

func defaultFetcher(client *http.Client) Fetcher {
	return func(ctx context.Context, src string) (io.ReadCloser, error) {
		if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
			if err != nil {
				return nil, err
			}
			resp, err := client.Do(req)
			if err != nil {
				return nil, err
			}
			if resp.StatusCode != http.StatusOK {
				resp.Body.Close()
				return nil, fmt.Errorf("unexpected status %s", resp.Status)
			}
			return resp.Body, nil
		}
		return os.Open(src)
	}
}
