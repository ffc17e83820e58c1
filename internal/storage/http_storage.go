package storage

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "go-trap-coverage/internal/errors"

	"github.com/die-net/lrucache"
	"github.com/disintegration/imaging"
	"github.com/gregjones/httpcache"
)

const (
	maxAttempts = 3

	defaultMaxImageBytes = 32 * 1024 * 1024
)

// HTTPImageFetcher loads images over HTTP. Listing reads a plain-text
// manifest with one image URL per line; relative entries resolve against
// the manifest URL.
type HTTPImageFetcher struct {
	client         *http.Client
	retryBackoff   time.Duration
	allowedSchemes []string
	maxImageBytes  int64
}

// HTTPOption customizes an HTTPImageFetcher
type HTTPOption func(*HTTPImageFetcher)

// WithTimeout sets the overall per-request timeout
func WithTimeout(d time.Duration) HTTPOption {
	return func(h *HTTPImageFetcher) {
		if d > 0 {
			h.client.Timeout = d
		}
	}
}

// WithRetryBackoff sets the base delay between attempts. Attempt n waits n
// times the base.
func WithRetryBackoff(d time.Duration) HTTPOption {
	return func(h *HTTPImageFetcher) {
		h.retryBackoff = d
	}
}

// WithAllowedSchemes restricts the URL schemes accepted by LoadImage
func WithAllowedSchemes(schemes ...string) HTTPOption {
	return func(h *HTTPImageFetcher) {
		h.allowedSchemes = schemes
	}
}

// WithMaxImageBytes caps the size of a downloaded image body
func WithMaxImageBytes(n int64) HTTPOption {
	return func(h *HTTPImageFetcher) {
		if n > 0 {
			h.maxImageBytes = n
		}
	}
}

// WithCache keeps up to maxBytes of cacheable responses in memory for at
// most ttl. Servers that send no caching headers are not cached.
func WithCache(maxBytes int64, ttl time.Duration) HTTPOption {
	return func(h *HTTPImageFetcher) {
		if maxBytes <= 0 {
			return
		}
		cached := httpcache.NewTransport(lrucache.New(maxBytes, int64(ttl.Seconds())))
		cached.Transport = h.client.Transport
		cached.MarkCachedResponses = true
		h.client.Transport = cached
	}
}

// NewHTTPImageFetcher creates an HTTP image fetcher
func NewHTTPImageFetcher(opts ...HTTPOption) *HTTPImageFetcher {
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 4096,

		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	h := &HTTPImageFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,

			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		retryBackoff:   time.Second,
		allowedSchemes: []string{"http", "https"},
		maxImageBytes:  defaultMaxImageBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ValidateURL checks that rawURL is absolute with an allowed scheme
func (h *HTTPImageFetcher) ValidateURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return apperrors.NewValidationError("URL cannot be empty", nil)
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return apperrors.NewValidationError("Invalid URL format", err)
	}
	allowed := false
	for _, scheme := range h.allowedSchemes {
		if parsed.Scheme == scheme {
			allowed = true
			break
		}
	}
	if !allowed {
		return apperrors.NewValidationError(fmt.Sprintf("URL scheme %q not allowed", parsed.Scheme), nil)
	}
	if parsed.Host == "" {
		return apperrors.NewValidationError("URL must have a valid host", nil)
	}
	return nil
}

// LoadImage downloads and decodes the image at ref
func (h *HTTPImageFetcher) LoadImage(ctx context.Context, ref string) (image.Image, error) {
	if err := h.ValidateURL(ref); err != nil {
		return nil, err
	}

	body, err := h.get(ctx, ref, "image/jpeg, image/png, image/webp, image/gif, */*")
	if err != nil {
		return nil, err
	}
	defer body.Close()

	// Read to EOF so cacheable responses are stored
	data, err := io.ReadAll(io.LimitReader(body, h.maxImageBytes+1))
	if err != nil {
		return nil, apperrors.NewNetworkError(fmt.Sprintf("failed to read %s", ref), err)
	}
	if int64(len(data)) > h.maxImageBytes {
		return nil, apperrors.NewImageLoadError(
			fmt.Sprintf("image at %s exceeds %d bytes", ref, h.maxImageBytes), nil)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperrors.NewImageLoadError(fmt.Sprintf("failed to decode image from %s", ref), err)
	}
	return img, nil
}

// ListImages reads the manifest at prefix and returns the image URLs in
// listed order. Blank lines and lines starting with # are skipped.
func (h *HTTPImageFetcher) ListImages(ctx context.Context, prefix string) ([]string, error) {
	if err := h.ValidateURL(prefix); err != nil {
		return nil, err
	}
	base, _ := url.Parse(prefix)

	body, err := h.get(ctx, prefix, "text/plain, */*")
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var refs []string
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entry, err := url.Parse(line)
		if err != nil {
			return nil, apperrors.NewImageLoadError(fmt.Sprintf("invalid manifest entry %q", line), err)
		}
		resolved := base.ResolveReference(entry)
		if !IsImageFile(resolved.Path) {
			continue
		}
		refs = append(refs, resolved.String())
	}
	if err := scanner.Err(); err != nil {
		return nil, apperrors.NewImageLoadError(fmt.Sprintf("failed to read manifest %s", prefix), err)
	}
	return refs, nil
}

// get performs a GET with up to three attempts. Transport errors and 5xx
// responses are retried; 4xx responses are not.
func (h *HTTPImageFetcher) get(ctx context.Context, rawURL, accept string) (io.ReadCloser, error) {
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, apperrors.NewValidationError("invalid URL", err)
		}
		req.Header.Set("Accept", accept)
		req.Header.Set("User-Agent", "Go-Trap-Coverage/1.0")

		resp, err := h.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, apperrors.NewTimeoutError(fmt.Sprintf("fetching %s cancelled", rawURL), ctx.Err())
			}
			lastErr = err
		} else {
			if resp.StatusCode == http.StatusOK {
				return resp.Body, nil
			}
			resp.Body.Close()

			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return nil, apperrors.NewImageLoadError(
					fmt.Sprintf("failed to fetch %s", rawURL),
					fmt.Errorf("client error: status code %d", resp.StatusCode))
			}
			lastErr = fmt.Errorf("server error: status code %d", resp.StatusCode)
		}

		if attempt < maxAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, apperrors.NewTimeoutError(fmt.Sprintf("fetching %s cancelled", rawURL), ctx.Err())
			case <-time.After(time.Duration(attempt+1) * h.retryBackoff):
			}
		}
	}

	return nil, apperrors.NewNetworkError(
		fmt.Sprintf("failed to fetch %s after %d attempts", rawURL, maxAttempts), lastErr)
}
