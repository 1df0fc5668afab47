package server

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/ghpkg/ghpkg/internal/config"
	"github.com/ghpkg/ghpkg/internal/registry/github"
)

func TestRouteTableLookup(t *testing.T) {
	cfg := &config.Config{
		Global: config.GlobalConfig{ListenPort: 5000},
		Registries: []config.RegistryConfig{
			{Name: "GitHub", Type: "github", Slave: "enterprise"},
			{Name: "enterprise", Type: "github", URL: "https://ghe.example.com/api/v3", Proxy: "http://127.0.0.1:3128"},
		},
	}

	table, err := NewRouteTable(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	route, ok := table.Lookup("github")
	if !ok {
		t.Fatalf("expected github route")
	}
	if route.UpstreamURL.String() != github.DefaultURL {
		t.Fatalf("default url not applied: %s", route.UpstreamURL)
	}
	if route.ListenPort != 5000 {
		t.Fatalf("listen port mismatch: %d", route.ListenPort)
	}

	route, ok = table.Lookup(" Enterprise ")
	if !ok || route.ProxyURL == nil || route.UpstreamURL.Host != "ghe.example.com" {
		t.Fatalf("unexpected enterprise route: %+v", route)
	}

	if list := table.List(); len(list) != 2 || list[0].Name() != "github" {
		t.Fatalf("unexpected list: %+v", list)
	}
	if _, ok := table.Lookup("missing"); ok {
		t.Fatalf("missing registry should not resolve")
	}
}

func TestRouteTableRejectsDuplicates(t *testing.T) {
	cfg := &config.Config{
		Registries: []config.RegistryConfig{
			{Name: "github", Type: "github"},
			{Name: "GITHUB", Type: "github"},
		},
	}
	if _, err := NewRouteTable(cfg); err == nil {
		t.Fatalf("duplicate names should fail")
	}
}

func TestBuildManagerRegistersEveryRegistry(t *testing.T) {
	cfg := &config.Config{
		Global: config.GlobalConfig{UpstreamTimeout: config.Duration(5e9)},
		Registries: []config.RegistryConfig{
			{Name: "github", Type: "github", Slave: "mirror"},
			{Name: "mirror", Type: "github", URL: "https://ghe.example.com/api/v3"},
		},
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	manager, err := BuildManager(cfg, logger, nil)
	if err != nil {
		t.Fatalf("build manager: %v", err)
	}
	defer manager.Stop()

	entries := manager.Entries()
	if len(entries) != 2 || entries[0].Name != "github" || entries[0].Slave != "mirror" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	r, _ := manager.Get("mirror")
	if gh, ok := r.(*github.Registry); !ok || gh.Config().URL != "https://ghe.example.com/api/v3" {
		t.Fatalf("unexpected backend: %#v", r)
	}

	cfg.Registries = []config.RegistryConfig{{Name: "x", Type: "gitlab"}}
	if _, err := BuildManager(cfg, logger, nil); err == nil {
		t.Fatalf("unknown type should fail")
	}
}
