package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Operation 是 /<registry>/<operation> 路径中的操作名。
type Operation string

const (
	OperationManifest Operation = "manifest"
	OperationPackage  Operation = "package"
	OperationVersions Operation = "versions"
	OperationFiles    Operation = "files"
)

// RegistryHandler describes the component that answers registry requests.
// It allows injecting fake handlers during tests.
type RegistryHandler interface {
	Handle(fiber.Ctx, *RegistryRoute, Operation) error
}

// RegistryHandlerFunc adapts a function to the RegistryHandler interface.
type RegistryHandlerFunc func(fiber.Ctx, *RegistryRoute, Operation) error

// Handle makes RegistryHandlerFunc satisfy RegistryHandler.
func (f RegistryHandlerFunc) Handle(c fiber.Ctx, route *RegistryRoute, op Operation) error {
	return f(c, route, op)
}

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger     *logrus.Logger
	Routes     *RouteTable
	Handler    RegistryHandler
	ListenPort int
}

const (
	contextKeyRoute     = "_ghpkg_route"
	contextKeyRequestID = "_ghpkg_request_id"
)

// NewApp builds a Fiber application with registry routing middleware and
// structured error handling. Diagnostics live under /-/ and are registered by
// the routes package.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Routes == nil {
		return nil, errors.New("route table is required")
	}
	if opts.Handler == nil {
		return nil, errors.New("registry handler is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())

	app.Get("/:registry/:operation", func(c fiber.Ctx) error {
		// /-/ 诊断接口由 routes 包在之后注册，交给下一个匹配的路由。
		if isDiagnosticsPath(string(c.Request().URI().Path())) {
			return c.Next()
		}
		route, ok := resolveRoute(c, opts)
		if !ok {
			return renderRegistryUnknown(c, opts.Logger, c.Params("registry"), opts.ListenPort)
		}
		op, ok := parseOperation(c.Params("operation"))
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "operation_not_found"})
		}
		return opts.Handler.Handle(c, route, op)
	})

	return app, nil
}

// requestIDMiddleware 为每个请求生成请求 ID 并回写到响应头。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// resolveRoute 根据路径中的 registry 名称查找 RegistryRoute，并写入 Locals。
func resolveRoute(c fiber.Ctx, opts AppOptions) (*RegistryRoute, bool) {
	route, ok := opts.Routes.Lookup(c.Params("registry"))
	if !ok {
		return nil, false
	}
	c.Locals(contextKeyRoute, route)
	return route, true
}

func renderRegistryUnknown(c fiber.Ctx, logger *logrus.Logger, name string, port int) error {
	logger.WithFields(logrus.Fields{
		"action":   "registry_lookup",
		"registry": name,
		"port":     port,
	}).Warn("registry unmapped")

	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": "registry_not_found",
	})
}

func parseOperation(raw string) (Operation, bool) {
	switch op := Operation(strings.ToLower(raw)); op {
	case OperationManifest, OperationPackage, OperationVersions, OperationFiles:
		return op, true
	}
	return "", false
}

// RouteFromContext returns the route resolved for the current request.
func RouteFromContext(c fiber.Ctx) (*RegistryRoute, bool) {
	if value := c.Locals(contextKeyRoute); value != nil {
		if route, ok := value.(*RegistryRoute); ok {
			return route, true
		}
	}
	return nil, false
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

func isDiagnosticsPath(path string) bool {
	return strings.HasPrefix(path, "/-/")
}
