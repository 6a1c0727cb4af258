package assets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"messaging/internal/constants"
	"messaging/internal/logger"
	"messaging/pkg/metrics"
)

// Cache keeps local copies of remote image assets referenced by in-app
// messages. The url to path map is eventually consistent: a url is mapped
// once its download finishes, to the local file on success or to itself on
// failure.
type Cache struct {
	fs          afero.Fs
	dir         string
	downloader  Downloader
	concurrency int
	logger      logger.Logger

	mu       sync.RWMutex
	paths    map[string]string
	retained map[string]struct{}

	pending sync.WaitGroup
}

func NewCache(fs afero.Fs, dir string, downloader Downloader, concurrency int, log logger.Logger) *Cache {
	if concurrency <= 0 {
		concurrency = constants.DefaultAssetConcurrency
	}
	if concurrency > constants.MaxAssetConcurrency {
		concurrency = constants.MaxAssetConcurrency
	}
	return &Cache{
		fs:          fs,
		dir:         filepath.Join(dir, constants.ImageAssetsDirectory),
		downloader:  downloader,
		concurrency: concurrency,
		logger:      log,
		paths:       make(map[string]string),
		retained:    make(map[string]struct{}),
	}
}

// CacheImageAssets retains exactly the given http(s) urls: files for any
// other url are evicted and missing ones are downloaded in the background.
// A download that finishes after its url stopped being retained is dropped.
func (c *Cache) CacheImageAssets(ctx context.Context, urls []string) {
	retain := make(map[string]string)
	for _, u := range urls {
		if isRemote(u) {
			retain[u] = fileName(u)
		}
	}

	c.evict(ctx, retain)

	var missing []string
	for u, name := range retain {
		if !c.resolveExisting(u, name) {
			missing = append(missing, u)
		}
	}

	if len(missing) == 0 {
		return
	}

	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		c.download(ctx, missing)
	}()
}

func (c *Cache) download(ctx context.Context, urls []string) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for _, u := range urls {
		u := u
		g.Go(func() error {
			data, err := c.downloader.Download(gctx, u)
			if err == nil {
				err = c.write(fileName(u), data)
			}
			if err != nil {
				c.logger.WarnwCtx(ctx, "Failed to cache image asset, using remote url",
					"url", u,
					"error", err,
				)
				c.complete(ctx, u, "")
				return nil
			}
			c.complete(ctx, u, filepath.Join(c.dir, fileName(u)))
			return nil
		})
	}

	_ = g.Wait()
}

// complete maps u to local, or to itself when local is empty. Results for
// urls evicted while downloading are discarded along with their file.
func (c *Cache) complete(ctx context.Context, u, local string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.retained[u]; !ok {
		if local != "" {
			if err := c.fs.Remove(local); err != nil && !os.IsNotExist(err) {
				c.logger.WarnwCtx(ctx, "Failed to evict image asset", "file", local, "error", err)
			}
		}
		return
	}

	if local == "" {
		local = u
	}
	c.paths[u] = local
	metrics.AssetsCached.Set(float64(len(c.paths)))
}

func (c *Cache) write(name string, data []byte) error {
	if err := c.fs.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	target := filepath.Join(c.dir, name)
	tmp := target + ".tmp"
	if err := afero.WriteFile(c.fs, tmp, data, 0o644); err != nil {
		return err
	}
	return c.fs.Rename(tmp, target)
}

func (c *Cache) resolveExisting(u, name string) bool {
	c.mu.RLock()
	mapped, ok := c.paths[u]
	c.mu.RUnlock()
	if ok && mapped != u {
		return true
	}

	local := filepath.Join(c.dir, name)
	if exists, _ := afero.Exists(c.fs, local); exists {
		c.set(u, local)
		return true
	}
	return false
}

func (c *Cache) evict(ctx context.Context, retain map[string]string) {
	keep := make(map[string]struct{}, len(retain))
	for _, name := range retain {
		keep[name] = struct{}{}
	}

	c.mu.Lock()
	c.retained = make(map[string]struct{}, len(retain))
	for u := range retain {
		c.retained[u] = struct{}{}
	}
	for u := range c.paths {
		if _, ok := retain[u]; !ok {
			delete(c.paths, u)
		}
	}
	metrics.AssetsCached.Set(float64(len(c.paths)))
	c.mu.Unlock()

	entries, err := afero.ReadDir(c.fs, c.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.WarnwCtx(ctx, "Failed to list image assets", "dir", c.dir, "error", err)
		}
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := keep[entry.Name()]; ok {
			continue
		}
		if err := c.fs.Remove(filepath.Join(c.dir, entry.Name())); err != nil {
			c.logger.WarnwCtx(ctx, "Failed to evict image asset", "file", entry.Name(), "error", err)
			continue
		}
		metrics.AssetsEvictedTotal.Inc()
	}
}

func (c *Cache) set(u, p string) {
	c.mu.Lock()
	c.paths[u] = p
	metrics.AssetsCached.Set(float64(len(c.paths)))
	c.mu.Unlock()
}

// AssetPath returns the mapped location for url, if any.
func (c *Cache) AssetPath(u string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.paths[u]
	return p, ok
}

// Snapshot returns a copy of the url to location map.
func (c *Cache) Snapshot() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.paths))
	for k, v := range c.paths {
		out[k] = v
	}
	return out
}

// Clear evicts every cached asset.
func (c *Cache) Clear(ctx context.Context) {
	c.evict(ctx, nil)
}

// Wait blocks until background downloads started so far have finished.
func (c *Cache) Wait() {
	c.pending.Wait()
}

func isRemote(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func fileName(u string) string {
	sum := sha256.Sum256([]byte(u))
	name := hex.EncodeToString(sum[:])
	if parsed, err := url.Parse(u); err == nil {
		if ext := strings.ToLower(path.Ext(parsed.Path)); len(ext) > 1 && len(ext) <= 5 {
			name += ext
		}
	}
	return name
}
