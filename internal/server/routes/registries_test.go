package routes

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gofiber/fiber/v3"

	"github.com/ghpkg/ghpkg/internal/config"
	"github.com/ghpkg/ghpkg/internal/registry"
	"github.com/ghpkg/ghpkg/internal/server"
)

func TestEncodeRegistries(t *testing.T) {
	upstream, _ := url.Parse("https://api.github.com")
	proxy, _ := url.Parse("http://127.0.0.1:3128")
	routes := []server.RegistryRoute{
		{Config: config.RegistryConfig{Name: "GitHub", Type: "github", Slave: "mirror", Token: "t"}, UpstreamURL: upstream, ProxyURL: proxy},
		{Config: config.RegistryConfig{Name: "mirror", Type: "github"}, UpstreamURL: upstream},
	}

	encoded := encodeRegistries(routes, nil)
	if len(encoded) != 2 {
		t.Fatalf("expected 2 registries, got %d", len(encoded))
	}
	if encoded[0].Name != "github" || encoded[0].AuthMode != "token" || !encoded[0].Proxied {
		t.Fatalf("unexpected first payload: %+v", encoded[0])
	}
	if encoded[1].AuthMode != "anonymous" || encoded[1].Active {
		t.Fatalf("unexpected second payload: %+v", encoded[1])
	}
}

func TestRegistriesEndpoint(t *testing.T) {
	cfg := &config.Config{
		Global:     config.GlobalConfig{ListenPort: 5000},
		Registries: []config.RegistryConfig{{Name: "github", Type: "github"}},
	}
	table, err := server.NewRouteTable(cfg)
	if err != nil {
		t.Fatalf("route table error: %v", err)
	}

	app := fiber.New()
	RegisterRegistryRoutes(app, table, registry.NewManager(nil, nil))
	RegisterMetricsRoute(app, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ghpkg_up 1\n"))
	}))

	resp, err := app.Test(httptest.NewRequest("GET", "/-/registries", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	var payload struct {
		Types      []string          `json:"types"`
		Registries []registryPayload `json:"registries"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(payload.Registries) != 1 || payload.Registries[0].URL != "https://api.github.com" {
		t.Fatalf("unexpected payload: %+v", payload)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/-/metrics", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ghpkg_up 1\n" {
		t.Fatalf("unexpected metrics body: %s", body)
	}
}
