package storage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"
)

const (
	// CoverExtension is appended to cache keys to form disk file names
	CoverExtension = ".jpg"
	// CoverQuality is the JPEG quality for every image written to disk
	CoverQuality = 90
	// DefaultMemoryEntries bounds the in-memory tier
	DefaultMemoryEntries = 256

	maxImageBytes   = 10 << 20
	maxKeyBytes     = 200
	downloadTimeout = 30 * time.Second
)

var (
	invalidFileChars = regexp.MustCompile(`[\\/:*?"<>|\x00-\x1f]`)
)

// ImageCacheOptions configures an ImageCache. Zero values pick defaults.
type ImageCacheOptions struct {
	HTTPClient    *http.Client
	MemoryEntries int
	Logger        *slog.Logger
}

// ImageCache keeps cover images in memory and in a directory on disk,
// fetching from the network on a miss. Lookups never return errors: a
// missing image is reported as nil.
type ImageCache struct {
	dir    string
	client *http.Client
	memory *lru.Cache[string, image.Image]
	group  singleflight.Group
	log    *slog.Logger
}

// NewImageCache creates a cache rooted at dir, creating it if needed
func NewImageCache(dir string, opts ImageCacheOptions) (*ImageCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	entries := opts.MemoryEntries
	if entries <= 0 {
		entries = DefaultMemoryEntries
	}
	memory, err := lru.New[string, image.Image](entries)
	if err != nil {
		return nil, err
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ImageCache{
		dir:    dir,
		client: client,
		memory: memory,
		log:    logger.With("component", "image_cache"),
	}, nil
}

// Dir returns the disk tier's directory
func (c *ImageCache) Dir() string {
	return c.dir
}

// DiskPath returns where the image for key is stored on disk
func (c *ImageCache) DiskPath(key string) string {
	return filepath.Join(c.dir, sanitizeKey(key)+CoverExtension)
}

// LocalCoverPath returns the disk location of a locally saved cover
func (c *ImageCache) LocalCoverPath(filename string) string {
	return filepath.Join(c.dir, sanitizeKey(filename))
}

// CachedImage returns the in-memory image for key without touching disk or network
func (c *ImageCache) CachedImage(key string) image.Image {
	img, ok := c.memory.Get(key)
	if !ok {
		return nil
	}
	return img
}

// FetchImage returns the image for key from memory, then disk, then rawURL.
// A fetched image is kept in memory and written to disk on a best-effort basis.
func (c *ImageCache) FetchImage(ctx context.Context, rawURL, key string) image.Image {
	if img := c.CachedImage(key); img != nil {
		return img
	}
	if img := c.loadFile(c.DiskPath(key)); img != nil {
		c.memory.Add(key, img)
		return img
	}

	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		c.log.Debug("no usable cover url", "key", key, "url", rawURL)
		return nil
	}

	// The shared download outlives any single caller; each caller still
	// stops waiting when its own ctx ends.
	ch := c.group.DoChan(key, func() (any, error) {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), downloadTimeout)
		defer cancel()
		img, err := c.download(dctx, u.String())
		if err != nil {
			c.log.Debug("cover fetch failed", "key", key, "url", rawURL, "error", err)
			return nil, err
		}
		c.memory.Add(key, img)
		if err := c.writeJPEG(c.DiskPath(key), img); err != nil {
			c.log.Warn("failed to write cover to disk", "key", key, "error", err)
		}
		return img, nil
	})

	select {
	case <-ctx.Done():
		c.log.Debug("stopped waiting for cover", "key", key, "error", ctx.Err())
		return nil
	case res := <-ch:
		img, _ := res.Val.(image.Image)
		return img
	}
}

// SaveLocalCover encodes img as JPEG under a name derived from ownerID and
// returns that name for the owner to persist
func (c *ImageCache) SaveLocalCover(img image.Image, ownerID string) (string, error) {
	if img == nil {
		return "", ErrEncoding
	}
	filename := "cover_" + sanitizeKey(ownerID) + CoverExtension
	if err := c.writeJPEG(c.LocalCoverPath(filename), img); err != nil {
		return "", err
	}
	c.memory.Add(filename, img)
	return filename, nil
}

// LocalCover returns a previously saved cover from memory or disk. It never fetches.
func (c *ImageCache) LocalCover(filename string) image.Image {
	if filename == "" {
		return nil
	}
	if img := c.CachedImage(filename); img != nil {
		return img
	}
	img := c.loadFile(c.LocalCoverPath(filename))
	if img != nil {
		c.memory.Add(filename, img)
	}
	return img
}

func (c *ImageCache) download(ctx context.Context, rawURL string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	img, _, err := image.Decode(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

func (c *ImageCache) loadFile(path string) image.Image {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		c.log.Debug("unreadable cover on disk", "path", path, "error", err)
		return nil
	}
	return img
}

func (c *ImageCache) writeJPEG(path string, img image.Image) error {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: CoverQuality}); err != nil {
		return fmt.Errorf("%w: %w", ErrEncoding, err)
	}
	if buf.Len() == 0 {
		return ErrEncoding
	}
	return writeFileAtomic(path, buf.Bytes(), 0o644)
}

// sanitizeKey maps a cache key to a safe file name
func sanitizeKey(key string) string {
	key = invalidFileChars.ReplaceAllString(key, "_")
	if len(key) > maxKeyBytes {
		cut := maxKeyBytes
		for cut > 0 && !utf8.RuneStart(key[cut]) {
			cut--
		}
		key = key[:cut]
	}
	key = strings.Trim(key, " .")
	if key == "" {
		return "_"
	}
	return key
}
