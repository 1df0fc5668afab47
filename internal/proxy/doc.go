// Package proxy answers /<registry>/<operation> requests by combining the
// registry.Manager with the cache store: the cached ETag becomes the prior
// token, fresh results are written back, and not-found results evict.
package proxy
