// Package source turns configured sources into locators the audio backend
// can open.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/soundloop/internal/model"
)

// Resolution errors.
var (
	ErrSourceNotFound    = errors.New("source not found")
	ErrUnsupportedScheme = errors.New("unsupported url scheme")
)

// DefaultCacheTTL is how long a successful resolution is reused.
const DefaultCacheTTL = 5 * time.Minute

// maxConcurrent bounds ResolveAll.
const maxConcurrent = 8

// Resolver maps a source to a backend locator.
type Resolver interface {
	Resolve(ctx context.Context, src model.Source) (string, error)
}

// LocalResolver resolves file sources against an asset directory and
// validates URL sources. Successful results are cached.
type LocalResolver struct {
	mu       sync.RWMutex
	assetDir string
	cache    *cache.Cache
	logger   *slog.Logger
}

// NewLocalResolver creates a resolver. Relative file paths are joined to
// assetDir. A ttl of 0 uses DefaultCacheTTL.
func NewLocalResolver(assetDir string, ttl time.Duration, logger *slog.Logger) *LocalResolver {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	return &LocalResolver{
		assetDir: expandHome(assetDir),
		cache:    cache.New(ttl, 2*ttl),
		logger:   logger,
	}
}

// Resolve implements Resolver.
func (r *LocalResolver) Resolve(ctx context.Context, src model.Source) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := cacheKey(src)
	if v, ok := r.cache.Get(key); ok {
		return v.(string), nil
	}

	var locator string
	var err error
	switch s := src.(type) {
	case model.FileSource:
		locator, err = r.resolveFile(s.Path)
	case model.URLSource:
		locator, err = r.resolveURL(s.URL)
	default:
		err = fmt.Errorf("%w: %T", model.ErrUnknownKind, src)
	}
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", src.SourceID(), err)
	}

	r.cache.Set(key, locator, cache.DefaultExpiration)
	r.logger.Debug("source resolved", "source_id", src.SourceID(), "locator", locator)
	return locator, nil
}

// Invalidate drops every cached resolution.
func (r *LocalResolver) Invalidate() {
	r.cache.Flush()
}

// SetAssetDir changes the base directory for relative file sources.
// Cached results are dropped when it changes.
func (r *LocalResolver) SetAssetDir(dir string) {
	dir = expandHome(dir)

	r.mu.Lock()
	changed := r.assetDir != dir
	r.assetDir = dir
	r.mu.Unlock()

	if changed {
		r.logger.Debug("asset directory changed", "asset_dir", dir)
		r.cache.Flush()
	}
}

func (r *LocalResolver) resolveFile(path string) (string, error) {
	path = expandHome(path)

	r.mu.RLock()
	assetDir := r.assetDir
	r.mu.RUnlock()

	if !filepath.IsAbs(path) && assetDir != "" {
		path = filepath.Join(assetDir, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(abs)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrSourceNotFound, abs)
	}
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", abs)
	}
	return abs, nil
}

func (r *LocalResolver) resolveURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}

	switch u.Scheme {
	case "http", "https":
		if u.Host == "" {
			return "", fmt.Errorf("invalid url %q: missing host", raw)
		}
		return u.String(), nil
	case "file":
		return r.resolveFile(u.Path)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

func cacheKey(src model.Source) string {
	switch s := src.(type) {
	case model.FileSource:
		return "file:" + s.Path
	case model.URLSource:
		return "url:" + s.URL
	default:
		return string(src.Kind()) + ":" + src.SourceID()
	}
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// Resolved is the outcome of resolving one source.
type Resolved struct {
	Source  model.Source
	Locator string
	Err     error
}

// OK reports whether the source resolved.
func (r Resolved) OK() bool {
	return r.Err == nil
}

// ResolveAll resolves sources concurrently. Results keep the input order.
// Failed sources are logged and reported in their Resolved entry; only
// context cancellation is returned as an error.
func ResolveAll(ctx context.Context, resolver Resolver, sources []model.Source, logger *slog.Logger) ([]Resolved, error) {
	if logger == nil {
		logger = slog.Default()
	}

	results := make([]Resolved, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	for i, src := range sources {
		g.Go(func() error {
			locator, err := resolver.Resolve(gctx, src)
			results[i] = Resolved{Source: src, Locator: locator, Err: err}
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				logger.Warn("source resolution failed, skipping", "source_id", src.SourceID(), "error", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("resolve sources: %w", err)
	}
	return results, nil
}
