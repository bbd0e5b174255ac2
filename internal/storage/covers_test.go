package storage

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 8, 12))
	for x := 0; x < 8; x++ {
		for y := 0; y < 12; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	return img
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage()))
	return buf.Bytes()
}

func setupTestCache(t *testing.T) *ImageCache {
	t.Helper()
	cache, err := NewImageCache(filepath.Join(t.TempDir(), "BookCovers"), ImageCacheOptions{})
	require.NoError(t, err)
	return cache
}

func TestNewImageCacheCreatesDirectory(t *testing.T) {
	cache := setupTestCache(t)
	info, err := os.Stat(cache.Dir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestFetchImageFallbackChain(t *testing.T) {
	body := pngBytes(t)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(body)
	}))
	coverURL := srv.URL + "/cover.png"

	dir := filepath.Join(t.TempDir(), "BookCovers")
	cache, err := NewImageCache(dir, ImageCacheOptions{HTTPClient: srv.Client()})
	require.NoError(t, err)

	assert.Nil(t, cache.CachedImage("vol-1"))
	img := cache.FetchImage(context.Background(), coverURL, "vol-1")
	require.NotNil(t, img)
	assert.Equal(t, image.Rect(0, 0, 8, 12), img.Bounds())
	assert.Equal(t, int32(1), hits.Load())

	// both tiers populated
	assert.NotNil(t, cache.CachedImage("vol-1"))
	_, err = os.Stat(filepath.Join(dir, "vol-1.jpg"))
	require.NoError(t, err)

	// memory hit
	require.NotNil(t, cache.FetchImage(context.Background(), coverURL, "vol-1"))
	assert.Equal(t, int32(1), hits.Load())

	// fresh memory, network gone: disk hit
	srv.Close()
	reopened, err := NewImageCache(dir, ImageCacheOptions{})
	require.NoError(t, err)
	img = reopened.FetchImage(context.Background(), coverURL, "vol-1")
	require.NotNil(t, img)
	assert.Equal(t, 8, img.Bounds().Dx())
	assert.NotNil(t, reopened.CachedImage("vol-1"))
}

func TestFetchImageFailuresReturnNil(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		url     func(base string) string
	}{
		{
			name:    "not found",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) },
			url:     func(base string) string { return base + "/missing.jpg" },
		},
		{
			name:    "not an image",
			handler: func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("<html></html>")) },
			url:     func(base string) string { return base + "/page" },
		},
		{
			name:    "malformed url",
			handler: func(w http.ResponseWriter, r *http.Request) {},
			url:     func(string) string { return "::not a url" },
		},
		{
			name:    "unsupported scheme",
			handler: func(w http.ResponseWriter, r *http.Request) {},
			url:     func(string) string { return "file:///etc/passwd" },
		},
		{
			name:    "empty url",
			handler: func(w http.ResponseWriter, r *http.Request) {},
			url:     func(string) string { return "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			cache := setupTestCache(t)
			assert.Nil(t, cache.FetchImage(context.Background(), tt.url(srv.URL), "key"))
			assert.Nil(t, cache.CachedImage("key"))
			_, err := os.Stat(cache.DiskPath("key"))
			assert.True(t, os.IsNotExist(err))
		})
	}
}

func TestFetchImageUnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	cache := setupTestCache(t)
	assert.Nil(t, cache.FetchImage(context.Background(), srv.URL+"/a.jpg", "key"))
}

func TestFetchImageCoalescesConcurrentRequests(t *testing.T) {
	body := pngBytes(t)
	release := make(chan struct{})
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	cache, err := NewImageCache(t.TempDir(), ImageCacheOptions{HTTPClient: srv.Client()})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]image.Image, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = cache.FetchImage(context.Background(), srv.URL+"/c.png", "same")
		}(i)
	}
	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()

	for _, img := range results {
		assert.NotNil(t, img)
	}
	assert.LessOrEqual(t, hits.Load(), int32(4))
}

func TestFetchImageCancelledCallerDoesNotFailOthers(t *testing.T) {
	body := pngBytes(t)
	release := make(chan struct{})
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	cache, err := NewImageCache(t.TempDir(), ImageCacheOptions{HTTPClient: srv.Client()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan image.Image, 1)
	go func() {
		first <- cache.FetchImage(ctx, srv.URL+"/c.png", "shared")
	}()
	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, 5*time.Millisecond)

	second := make(chan image.Image, 1)
	go func() {
		second <- cache.FetchImage(context.Background(), srv.URL+"/c.png", "shared")
	}()

	cancel()
	select {
	case img := <-first:
		assert.Nil(t, img, "cancelled caller gets nothing")
	case <-time.After(time.Second):
		t.Fatal("cancelled caller still waiting for the download")
	}

	close(release)
	select {
	case img := <-second:
		assert.NotNil(t, img, "live caller still receives the shared download")
	case <-time.After(2 * time.Second):
		t.Fatal("live caller never received the image")
	}
	assert.NotNil(t, cache.CachedImage("shared"))
	assert.FileExists(t, cache.DiskPath("shared"))
}

func TestFetchImageDiskWriteFailureStillReturnsImage(t *testing.T) {
	body := pngBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	cache, err := NewImageCache(t.TempDir(), ImageCacheOptions{HTTPClient: srv.Client()})
	require.NoError(t, err)
	// a directory at the target path makes the rename fail
	require.NoError(t, os.MkdirAll(cache.DiskPath("blocked"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cache.DiskPath("blocked"), "x"), nil, 0o644))

	img := cache.FetchImage(context.Background(), srv.URL+"/c.png", "blocked")
	assert.NotNil(t, img)
	assert.NotNil(t, cache.CachedImage("blocked"))
}

func TestSaveLocalCover(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "BookCovers")
	cache, err := NewImageCache(dir, ImageCacheOptions{})
	require.NoError(t, err)

	filename, err := cache.SaveLocalCover(testImage(), "book-123")
	require.NoError(t, err)
	assert.Equal(t, "cover_book-123.jpg", filename)
	assert.NotNil(t, cache.CachedImage(filename))

	data, err := os.ReadFile(filepath.Join(dir, filename))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8}, data[:2], "written as JPEG")

	reopened, err := NewImageCache(dir, ImageCacheOptions{})
	require.NoError(t, err)
	img := reopened.LocalCover(filename)
	require.NotNil(t, img)
	assert.Equal(t, image.Rect(0, 0, 8, 12), img.Bounds())
}

func TestSaveLocalCoverNilImage(t *testing.T) {
	cache := setupTestCache(t)
	_, err := cache.SaveLocalCover(nil, "book")
	assert.ErrorIs(t, err, ErrEncoding)
}

func TestLocalCoverMissing(t *testing.T) {
	cache := setupTestCache(t)
	assert.Nil(t, cache.LocalCover("cover_nope.jpg"))
	assert.Nil(t, cache.LocalCover(""))
}

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"vol-1", "vol-1"},
		{"cover_abc.jpg", "cover_abc.jpg"},
		{"../../etc/passwd", "_.._etc_passwd"},
		{`a:b*c?d"e<f>g|h`, "a_b_c_d_e_f_g_h"},
		{"", "_"},
		{"..", "_"},
		{strings.Repeat("x", 250), strings.Repeat("x", 200)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeKey(tt.input))
		})
	}
}

func TestSanitizeKeyKeepsWholeRunes(t *testing.T) {
	// "a" then two-byte runes: byte 200 falls inside a rune
	key := "a" + strings.Repeat("ł", 150)

	got := sanitizeKey(key)
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), 200)
	assert.Equal(t, "a"+strings.Repeat("ł", 99), got)
}
