package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tech4loop/marketplace-backend/pkg/config"
	"github.com/tech4loop/marketplace-backend/pkg/logger"
)

const (
	defaultPublicBase = "https://storage.googleapis.com"
	pingTimeout       = 5 * time.Second
)

// Client resolves product image keys to public object URLs.
type Client struct {
	httpClient *http.Client
	bucket     string
	publicBase string
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// URLResolver is the read-only surface product listings and checkout need.
type URLResolver interface {
	PublicURL(key string) string
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the client used for bucket health checks.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func NewClient(ctx context.Context, cfg config.StorageConfig, logg *logger.Logger, opts ...Option) (*Client, error) {
	bucket := strings.Trim(strings.TrimSpace(cfg.Bucket), "/")
	if bucket == "" {
		return nil, errors.New("storage bucket name is required")
	}

	base := strings.TrimRight(strings.TrimSpace(cfg.PublicBase), "/")
	if base == "" {
		base = defaultPublicBase
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid storage public base: %w", err)
	}

	client := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		bucket:     bucket,
		publicBase: base,
	}
	for _, opt := range opts {
		opt(client)
	}

	if logg != nil {
		ctx = logg.WithField(ctx, "bucket", bucket)
		logg.Info(ctx, "storage client initialized")
	}
	return client, nil
}

func (c *Client) Bucket() string {
	if c == nil {
		return ""
	}
	return c.bucket
}

// PublicURL returns the public URL for an object key. Absolute URLs are
// returned unchanged so legacy rows holding full links keep working.
func (c *Client) PublicURL(key string) string {
	key = strings.TrimSpace(key)
	if key == "" || c == nil {
		return ""
	}
	if strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://") {
		return key
	}

	segments := strings.Split(strings.TrimLeft(key, "/"), "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return fmt.Sprintf("%s/%s/%s", c.publicBase, url.PathEscape(c.bucket), strings.Join(segments, "/"))
}

// Ping checks that the public bucket endpoint answers.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.httpClient == nil {
		return errors.New("storage client not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	u := fmt.Sprintf("%s/%s", c.publicBase, url.PathEscape(c.bucket))
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	// Listing may be forbidden on a public-read bucket; only a missing bucket
	// or a server error counts as unhealthy.
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode >= http.StatusInternalServerError {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if len(b) > 0 {
			return fmt.Errorf("storage bucket check failed: %s: %s", resp.Status, strings.TrimSpace(string(b)))
		}
		return fmt.Errorf("storage bucket check failed: %s", resp.Status)
	}
	return nil
}
