package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// Response 是一次上游交换的完整结果，正文已读入内存。
type Response struct {
	StatusCode int
	Header     http.Header
	Data       []byte
}

// Client 是 registry 依赖的最小 HTTP 能力：发请求 + 释放连接。
type Client interface {
	Request(ctx context.Context, rawURL, method string, body []byte, headers http.Header) (*Response, error)
	Close()
}

// Options 控制底层连接池与超时，registry 本身不关心这些参数。
type Options struct {
	Timeout      time.Duration
	MaxIdleConns int
	Proxy        *url.URL
}

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// HTTPClient 基于 net/http 实现 Client。重定向不会自动跟随，由调用方决定是否再发一次请求。
type HTTPClient struct {
	client    *http.Client
	transport *http.Transport
	closeOnce sync.Once
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient 根据 Options 构建独立的连接池，每个 registry 持有一份。
func NewHTTPClient(opts Options) *HTTPClient {
	timeout := 30 * time.Second
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	tr := defaultTransport.Clone()
	if opts.MaxIdleConns > 0 {
		tr.MaxIdleConns = opts.MaxIdleConns
		tr.MaxIdleConnsPerHost = opts.MaxIdleConns
	}
	if opts.Proxy != nil {
		tr.Proxy = http.ProxyURL(opts.Proxy)
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout:   timeout,
			Transport: tr,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		transport: tr,
	}
}

// Timeout 返回生效的请求超时，主要用于诊断与测试。
func (c *HTTPClient) Timeout() time.Duration {
	return c.client.Timeout
}

// Request 发送请求并读取完整正文。非 2xx 状态码不视为错误，交由调用方解释。
func (c *HTTPClient) Request(ctx context.Context, rawURL, method string, body []byte, headers http.Header) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var reader io.Reader = http.NoBody
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, err
	}
	for key, values := range headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Data:       data,
	}, nil
}

// Close 释放空闲连接，可重复调用。
func (c *HTTPClient) Close() {
	c.closeOnce.Do(func() {
		c.transport.CloseIdleConnections()
	})
}
