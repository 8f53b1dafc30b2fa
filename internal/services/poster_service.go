package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/liamwears/reeldiary/internal/palette"
)

const (
	maxPosterBytes  = 10 << 20
	maxPosterPixels = 4096 * 4096
	noColor         = "none"
)

var (
	// ErrInvalidPosterURL is returned for poster URLs that are not absolute http(s) URLs
	ErrInvalidPosterURL = errors.New("invalid poster url")
	// ErrPosterTooLarge is returned for posters whose declared dimensions exceed the pixel limit
	ErrPosterTooLarge = errors.New("poster dimensions too large")
)

// ColorCache remembers the dominant color computed for a poster URL
type ColorCache interface {
	Get(ctx context.Context, posterURL string) (string, bool, error)
	Set(ctx context.Context, posterURL, value string) error
}

// PosterService computes dominant poster colors
type PosterService struct {
	client *http.Client
	cache  ColorCache
	logger *log.Logger
}

// NewPosterService creates a new PosterService. cache may be nil.
func NewPosterService(cache ColorCache, timeout time.Duration, logger *log.Logger) *PosterService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PosterService{
		client: &http.Client{Timeout: timeout},
		cache:  cache,
		logger: logger,
	}
}

// DominantColor returns the poster's dominant color as #rrggbb. ok is false
// when every pixel was filtered out.
func (s *PosterService) DominantColor(ctx context.Context, posterURL string) (hex string, ok bool, err error) {
	u, err := url.Parse(posterURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false, fmt.Errorf("%w: %q", ErrInvalidPosterURL, posterURL)
	}

	if s.cache != nil {
		cached, found, err := s.cache.Get(ctx, posterURL)
		if err != nil {
			s.logger.Printf("Failed to read poster color cache: %v", err)
		} else if found {
			if cached == noColor {
				return "", false, nil
			}
			return cached, true, nil
		}
	}

	img, err := s.fetch(ctx, posterURL)
	if err != nil {
		return "", false, err
	}

	c, ok := palette.Dominant(img)
	value := noColor
	if ok {
		hex = palette.Hex(c)
		value = hex
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, posterURL, value); err != nil {
			s.logger.Printf("Failed to write poster color cache: %v", err)
		}
	}
	return hex, ok, nil
}

func (s *PosterService) fetch(ctx context.Context, posterURL string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, posterURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, remoteErr("fetch poster", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch poster: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPosterBytes))
	if err != nil {
		return nil, remoteErr("read poster", err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to decode poster: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > maxPosterPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrPosterTooLarge, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to decode poster: %w", err)
	}
	return img, nil
}
