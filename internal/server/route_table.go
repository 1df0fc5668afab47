package server

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/ghpkg/ghpkg/internal/config"
	"github.com/ghpkg/ghpkg/internal/registry"
)

// RegistryRoute 将 Registry 配置与解析后的 URL 聚合在一起，供路由/处理层直接复用。
type RegistryRoute struct {
	// Config 是 config.toml 中声明的 Registry 字段副本。
	Config config.RegistryConfig
	// ListenPort 记录当前监听端口，方便日志输出。
	ListenPort int
	// UpstreamURL 是生效的 API 地址，未配置时取后端默认值。
	UpstreamURL *url.URL
	ProxyURL    *url.URL
}

// Name 返回路由键（小写的 Registry 名称）。
func (r *RegistryRoute) Name() string {
	return strings.ToLower(r.Config.Name)
}

// RouteTable 提供 Registry 名称到 RegistryRoute 的查询能力。
type RouteTable struct {
	routes  map[string]*RegistryRoute
	ordered []*RegistryRoute
}

// NewRouteTable 根据配置构建路由表。调用方应在启动阶段创建一次并复用。
func NewRouteTable(cfg *config.Config) (*RouteTable, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	table := &RouteTable{
		routes: make(map[string]*RegistryRoute, len(cfg.Registries)),
	}

	for _, reg := range cfg.Registries {
		key := strings.ToLower(strings.TrimSpace(reg.Name))
		if key == "" {
			return nil, errors.New("registry name required")
		}
		if _, exists := table.routes[key]; exists {
			return nil, fmt.Errorf("duplicate registry name %s", key)
		}

		route, err := buildRoute(cfg, reg)
		if err != nil {
			return nil, err
		}
		table.routes[key] = route
		table.ordered = append(table.ordered, route)
	}

	return table, nil
}

// Lookup 按名称（大小写不敏感）查找路由。
func (t *RouteTable) Lookup(name string) (*RegistryRoute, bool) {
	if t == nil {
		return nil, false
	}
	route, ok := t.routes[strings.ToLower(strings.TrimSpace(name))]
	return route, ok
}

// List 按配置顺序返回路由副本。
func (t *RouteTable) List() []RegistryRoute {
	if t == nil || len(t.ordered) == 0 {
		return nil
	}
	result := make([]RegistryRoute, len(t.ordered))
	for i, route := range t.ordered {
		result[i] = *route
	}
	return result
}

func buildRoute(cfg *config.Config, reg config.RegistryConfig) (*RegistryRoute, error) {
	rawURL := reg.URL
	if rawURL == "" {
		backend, ok := registry.Resolve(reg.Type)
		if !ok {
			return nil, fmt.Errorf("registry %s: %w: %s", reg.Name, registry.ErrUnknownType, reg.Type)
		}
		rawURL = backend.DefaultURL
	}

	upstreamURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url for registry %s: %w", reg.Name, err)
	}

	var proxyURL *url.URL
	if reg.Proxy != "" {
		proxyURL, err = url.Parse(reg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy for registry %s: %w", reg.Name, err)
		}
	}

	return &RegistryRoute{
		Config:      reg,
		ListenPort:  cfg.Global.ListenPort,
		UpstreamURL: upstreamURL,
		ProxyURL:    proxyURL,
	}, nil
}
