package client

import (
	"net/http"
	"time"

	"github.com/gregjones/httpcache"
	"github.com/gregjones/httpcache/diskcache"
)

// NewCachingHTTPClient returns a client that honours Cache-Control on
// responses, such as the JWKS document of a token issuer. An empty cacheDir
// keeps the cache in memory.
func NewCachingHTTPClient(cacheDir string, timeout time.Duration) *http.Client {
	var cache httpcache.Cache = httpcache.NewMemoryCache()
	if cacheDir != "" {
		cache = diskcache.New(cacheDir)
	}

	return &http.Client{
		Transport: httpcache.NewTransport(cache),
		Timeout:   timeout,
	}
}
