package github

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ghpkg/ghpkg/internal/registry"
	"github.com/ghpkg/ghpkg/internal/transport"
)

const (
	// TypeName 是配置中 Type 字段对应的取值。
	TypeName = "github"
	// DefaultURL 在配置未指定 URL 时使用。
	DefaultURL = "https://api.github.com"
	// UserAgent 是所有请求携带的固定标识。
	UserAgent = "ghpkg"
	// MediaType 固定 REST API 的版本。
	MediaType = "application/vnd.github.v3+json"
)

func init() {
	registry.MustRegister(registry.Backend{
		Type:        TypeName,
		Description: "GitHub tags as versions, tarballs as packages",
		DefaultURL:  DefaultURL,
		New: func(s registry.Settings) (registry.Registry, error) {
			return New(Config{URL: s.URL, Token: s.Token}, s.Client, s.Logger)
		},
	})
}

// Config 在构造后只读。
type Config struct {
	URL   string
	Token string
}

// Registry 通过 transport.Client 访问 GitHub。除 transport 外没有可变状态，可并发调用。
type Registry struct {
	cfg        Config
	client     transport.Client
	logger     *logrus.Logger
	headerFunc func() (http.Header, error)
	stopOnce   sync.Once
}

var _ registry.Registry = (*Registry)(nil)

// New 构建后端。client 为空时使用默认 HTTPClient；logger 为空时丢弃日志。
func New(cfg Config, client transport.Client, logger *logrus.Logger) (*Registry, error) {
	cfg.URL = strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if client == nil {
		client = transport.NewHTTPClient(transport.Options{})
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	r := &Registry{cfg: cfg, client: client, logger: logger}
	r.headerFunc = r.buildHeaders
	return r, nil
}

// TypeName 实现 registry.Registry。
func (r *Registry) TypeName() string { return TypeName }

// Config 返回构造时的配置副本。
func (r *Registry) Config() Config { return r.cfg }

// BuildHeaders 生成每次请求的基础头部，调用方可以在此基础上追加 If-None-Match。
func (r *Registry) BuildHeaders() http.Header {
	h := http.Header{}
	h.Set("User-Agent", UserAgent)
	h.Set("Accept", MediaType)
	if r.cfg.Token != "" {
		h.Set("Authorization", "Bearer "+r.cfg.Token)
	}
	return h
}

func (r *Registry) buildHeaders() (http.Header, error) {
	return r.BuildHeaders(), nil
}

// Manifest 列出仓库 tag 并组装成 package.json。
func (r *Registry) Manifest(ctx context.Context, name, etag string) (*registry.Response, error) {
	requestURL := r.repoURL(name) + "/tags"
	resp, err := r.get(ctx, requestURL, etag, false)
	if err != nil {
		return nil, err
	}

	newETag := registry.ParseETag(resp.Header)
	outcome := registry.Classify(resp.StatusCode, newETag, etag)
	r.logResult("manifest", name, "", requestURL, resp.StatusCode, outcome)

	if outcome != registry.OutcomeFresh {
		return fold(outcome, etag, resp.StatusCode, requestURL)
	}
	store, err := assembleManifest(name, newETag, resp.Data)
	if err != nil {
		return nil, err
	}
	return &registry.Response{Store: store, ETag: newETag}, nil
}

// Package 下载指定版本的 tarball，最多跟随一次重定向。
func (r *Registry) Package(ctx context.Context, name, version, etag string) (*registry.Response, error) {
	requestURL := r.repoURL(name) + "/tarball/" + registry.NormalizeVersion(version)
	resp, err := r.get(ctx, requestURL, etag, true)
	if err != nil {
		return nil, err
	}

	newETag := registry.ParseETag(resp.Header)
	outcome := registry.Classify(resp.StatusCode, newETag, etag)
	r.logResult("package", name, version, requestURL, resp.StatusCode, outcome)

	if outcome != registry.OutcomeFresh {
		return fold(outcome, etag, resp.StatusCode, requestURL)
	}
	store, err := assembleArchive(name, version, newETag, resp.Data)
	if err != nil {
		return nil, err
	}
	return &registry.Response{Store: store, ETag: newETag}, nil
}

// Start 无需准备任何资源。
func (r *Registry) Start(context.Context) error { return nil }

// Stop 释放 transport 持有的连接，可重复调用。
func (r *Registry) Stop() error {
	r.stopOnce.Do(r.client.Close)
	return nil
}

func (r *Registry) repoURL(name string) string {
	return r.cfg.URL + "/repos/" + registry.TrimScope(name)
}

func (r *Registry) get(ctx context.Context, requestURL, etag string, followRedirect bool) (*transport.Response, error) {
	headers, err := r.headerFunc()
	if err != nil {
		return nil, err
	}
	if etag != "" {
		headers.Set("If-None-Match", etag)
	}

	started := time.Now()
	resp, err := r.client.Request(ctx, requestURL, http.MethodGet, nil, headers)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", requestURL, err)
	}
	if followRedirect {
		resp, err = registry.FollowRedirect(ctx, r.client, requestURL, resp, headers)
		if err != nil {
			return nil, fmt.Errorf("follow redirect %s: %w", requestURL, err)
		}
	}
	r.logger.WithFields(logrus.Fields{
		"action":     "registry_request",
		"url":        requestURL,
		"status":     resp.StatusCode,
		"elapsed_ms": time.Since(started).Milliseconds(),
	}).Debug("registry upstream exchange")
	return resp, nil
}

func (r *Registry) logResult(operation, name, version, requestURL string, status int, outcome registry.Outcome) {
	fields := logrus.Fields{
		"action":    "registry_result",
		"operation": operation,
		"package":   name,
		"status":    status,
		"outcome":   outcome.String(),
	}
	if version != "" {
		fields["version"] = version
	}
	entry := r.logger.WithFields(fields)
	if outcome == registry.OutcomeError {
		entry.WithField("url", requestURL).Warn("registry returned unexpected status")
		return
	}
	entry.Debug("registry result")
}

// fold 把非 Fresh 的结果折叠成 Response 或 StatusError。
func fold(outcome registry.Outcome, priorETag string, status int, requestURL string) (*registry.Response, error) {
	switch outcome {
	case registry.OutcomeNotModified:
		return &registry.Response{ETag: priorETag}, nil
	case registry.OutcomeNotFound:
		return &registry.Response{}, nil
	default:
		return nil, &registry.StatusError{Code: status, URL: requestURL}
	}
}
