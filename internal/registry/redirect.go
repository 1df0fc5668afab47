package registry

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ghpkg/ghpkg/internal/transport"
)

// FollowRedirect 在 resp 为带 Location 的重定向时，用相同 headers 再发一次 GET。
// 只跟随一跳：第二次响应即使仍是重定向也原样返回。
func FollowRedirect(
	ctx context.Context,
	client transport.Client,
	requestURL string,
	resp *transport.Response,
	headers http.Header,
) (*transport.Response, error) {
	if resp == nil || !isRedirect(resp.StatusCode) {
		return resp, nil
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return resp, nil
	}

	target, err := resolveLocation(requestURL, location)
	if err != nil {
		return nil, err
	}
	return client.Request(ctx, target, http.MethodGet, nil, headers)
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently,
		http.StatusFound,
		http.StatusSeeOther,
		http.StatusTemporaryRedirect,
		http.StatusPermanentRedirect:
		return true
	}
	return false
}

func resolveLocation(requestURL, location string) (string, error) {
	loc, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("invalid redirect location %q: %w", location, err)
	}
	if loc.IsAbs() || requestURL == "" {
		return loc.String(), nil
	}
	base, err := url.Parse(requestURL)
	if err != nil {
		return "", fmt.Errorf("invalid request url %q: %w", requestURL, err)
	}
	return base.ResolveReference(loc).String(), nil
}
