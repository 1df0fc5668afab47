package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"

	"github.com/ghpkg/ghpkg/internal/registry"
	"github.com/ghpkg/ghpkg/internal/server"
)

// RegisterRegistryRoutes 暴露 /-/registries 诊断接口，列出 Registry 与 slave 绑定关系。
func RegisterRegistryRoutes(app *fiber.App, table *server.RouteTable, manager *registry.Manager) {
	if app == nil || table == nil {
		return
	}

	app.Get("/-/registries", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"types":      registry.Types(),
			"registries": encodeRegistries(table.List(), manager),
		})
	})
}

// RegisterMetricsRoute 在 /-/metrics 暴露 Prometheus 指标。
func RegisterMetricsRoute(app *fiber.App, handler http.Handler) {
	if app == nil || handler == nil {
		return
	}
	app.Get("/-/metrics", adaptor.HTTPHandler(handler))
}

type registryPayload struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Slave    string `json:"slave,omitempty"`
	URL      string `json:"url"`
	AuthMode string `json:"auth_mode"`
	Proxied  bool   `json:"proxied"`
	Active   bool   `json:"active"`
}

func encodeRegistries(routes []server.RegistryRoute, manager *registry.Manager) []registryPayload {
	if len(routes) == 0 {
		return nil
	}
	result := make([]registryPayload, 0, len(routes))
	for _, route := range routes {
		item := registryPayload{
			Name:     route.Name(),
			Type:     route.Config.Type,
			Slave:    route.Config.Slave,
			AuthMode: route.Config.AuthMode(),
			Proxied:  route.ProxyURL != nil,
		}
		if route.UpstreamURL != nil {
			item.URL = route.UpstreamURL.String()
		}
		if manager != nil {
			_, item.Active = manager.Get(route.Name())
		}
		result = append(result, item)
	}
	return result
}
