package services

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeColorCache struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeColorCache() *fakeColorCache {
	return &fakeColorCache{values: make(map[string]string)}
}

func (c *fakeColorCache) Get(_ context.Context, posterURL string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[posterURL]
	return v, ok, nil
}

func (c *fakeColorCache) Set(_ context.Context, posterURL, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[posterURL] = value
	return nil
}

func encodePNG(t *testing.T, fill color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 20, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 20; x++ {
			img.SetRGBA(x, y, fill)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newPosterServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	purple := encodePNG(t, color.RGBA{R: 128, G: 100, B: 140, A: 255})
	black := encodePNG(t, color.RGBA{A: 255})
	mux := http.NewServeMux()
	mux.HandleFunc("GET /purple.png", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(purple)
	})
	mux.HandleFunc("GET /black.png", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(black)
	})
	mux.HandleFunc("GET /garbage.png", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "not an image")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDominantColorCaches(t *testing.T) {
	var hits atomic.Int32
	srv := newPosterServer(t, &hits)
	cache := newFakeColorCache()
	svc := NewPosterService(cache, time.Second, log.New(io.Discard, "", 0))
	ctx := context.Background()

	hex, ok, err := svc.DominantColor(ctx, srv.URL+"/purple.png")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "#80648c", hex)

	hex, ok, err = svc.DominantColor(ctx, srv.URL+"/purple.png")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "#80648c", hex)
	assert.Equal(t, int32(1), hits.Load())
}

func TestDominantColorNone(t *testing.T) {
	var hits atomic.Int32
	srv := newPosterServer(t, &hits)
	cache := newFakeColorCache()
	svc := NewPosterService(cache, time.Second, log.New(io.Discard, "", 0))
	ctx := context.Background()

	_, ok, err := svc.DominantColor(ctx, srv.URL+"/black.png")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, noColor, cache.values[srv.URL+"/black.png"])

	_, ok, err = svc.DominantColor(ctx, srv.URL+"/black.png")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int32(1), hits.Load())
}

func TestDominantColorErrors(t *testing.T) {
	var hits atomic.Int32
	srv := newPosterServer(t, &hits)
	svc := NewPosterService(nil, time.Second, log.New(io.Discard, "", 0))
	ctx := context.Background()

	_, _, err := svc.DominantColor(ctx, "file:///etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidPosterURL)

	_, _, err = svc.DominantColor(ctx, srv.URL+"/missing.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")

	_, _, err = svc.DominantColor(ctx, srv.URL+"/garbage.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}

// pngHeader returns a PNG that declares the given size but carries no pixel
// data; its config decodes while a full decode would have to allocate
func pngHeader(width, height uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	chunk := make([]byte, 0, 17)
	chunk = append(chunk, "IHDR"...)
	chunk = binary.BigEndian.AppendUint32(chunk, width)
	chunk = binary.BigEndian.AppendUint32(chunk, height)
	chunk = append(chunk, 8, 6, 0, 0, 0) // 8-bit RGBA, no interlace

	_ = binary.Write(&buf, binary.BigEndian, uint32(13))
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestDominantColorRejectsOversizedPoster(t *testing.T) {
	huge := pngHeader(12000, 12000)
	cfg, err := png.DecodeConfig(bytes.NewReader(huge))
	require.NoError(t, err)
	require.Equal(t, 12000, cfg.Width)

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(huge)
	}))
	t.Cleanup(srv.Close)

	cache := newFakeColorCache()
	svc := NewPosterService(cache, time.Second, log.New(io.Discard, "", 0))
	_, _, err = svc.DominantColor(context.Background(), srv.URL+"/huge.png")
	require.ErrorIs(t, err, ErrPosterTooLarge)
	assert.Contains(t, err.Error(), "12000x12000")
	assert.Empty(t, cache.values)
	assert.Equal(t, int32(1), hits.Load())
}
