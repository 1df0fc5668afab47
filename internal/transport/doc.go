// Package transport wraps net/http into the small request/close contract the
// registry backends depend on. It owns connection pooling, proxies and
// timeouts; it never follows redirects so backends can apply their own hop
// rules.
package transport
