package registry

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/coocood/freecache"

	"keroro/internal/logging"
)

const (
	defaultModelTTL       = 5 * time.Minute
	defaultCacheSizeBytes = 8 * 1024 * 1024
)

// Transport is the subset of the backend client the registry needs.
type Transport interface {
	Get(ctx context.Context, path string, query url.Values, out any) (bool, error)
	Post(ctx context.Context, path string, body, out any) (bool, error)
	Delete(ctx context.Context, path string, out any) (bool, error)
	Once(ctx context.Context, method, path string, query url.Values, body, out any) (bool, error)
	Upload(ctx context.Context, path, field, filename string, content io.Reader, out any) (bool, error)
	ResolveURL(path string) string
}

// Client is the registry client. It owns the model cache.
type Client struct {
	transport Transport
	logger    *slog.Logger
	models    *freecache.Cache
	modelTTL  time.Duration
}

// Option customizes a Client.
type Option func(*clientOptions)

type clientOptions struct {
	logger    *slog.Logger
	ttl       time.Duration
	sizeBytes int
	timer     freecache.Timer
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithModelTTL overrides how long model listings are served from memory.
func WithModelTTL(ttl time.Duration) Option {
	return func(o *clientOptions) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithCacheSize overrides the model cache size in bytes.
func WithCacheSize(bytes int) Option {
	return func(o *clientOptions) {
		if bytes > 0 {
			o.sizeBytes = bytes
		}
	}
}

// WithCacheTimer replaces the cache clock. Tests use it to expire entries.
func WithCacheTimer(timer freecache.Timer) Option {
	return func(o *clientOptions) {
		o.timer = timer
	}
}

// NewClient constructs a registry client.
func NewClient(transport Transport, opts ...Option) *Client {
	options := clientOptions{
		logger:    logging.NewNop(),
		ttl:       defaultModelTTL,
		sizeBytes: defaultCacheSizeBytes,
	}
	for _, opt := range opts {
		opt(&options)
	}
	var cache *freecache.Cache
	if options.timer != nil {
		cache = freecache.NewCacheCustomTimer(options.sizeBytes, options.timer)
	} else {
		cache = freecache.NewCache(options.sizeBytes)
	}
	return &Client{
		transport: transport,
		logger:    logging.NewComponentLogger(options.logger, "registry"),
		models:    cache,
		modelTTL:  options.ttl,
	}
}
