package server

import (
	"bytes"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/ghpkg/ghpkg/internal/config"
)

func TestRouterDispatchesKnownRegistry(t *testing.T) {
	app := newTestApp(t, 5000)

	resp, err := app.Test(httptest.NewRequest("GET", "/GitHub/manifest?name=@org/pkg", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 204 status, got %d (body=%s)", resp.StatusCode, string(body))
	}
	if app.recorder.routeName != "github" || app.recorder.op != OperationManifest {
		t.Fatalf("unexpected dispatch: %s %s", app.recorder.routeName, app.recorder.op)
	}
	if reqID := resp.Header.Get("X-Request-ID"); reqID == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
}

func TestRouterReturns404WhenRegistryUnknown(t *testing.T) {
	app := newTestApp(t, 5000)

	resp, err := app.Test(httptest.NewRequest("GET", "/gitlab/manifest?name=x", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404 status, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte(`"registry_not_found"`)) {
		t.Fatalf("expected registry_not_found error, got %s", string(body))
	}
}

func TestRouterRejectsUnknownOperation(t *testing.T) {
	app := newTestApp(t, 5000)

	resp, err := app.Test(httptest.NewRequest("GET", "/github/publish", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != fiber.StatusNotFound || !bytes.Contains(body, []byte("operation_not_found")) {
		t.Fatalf("expected operation_not_found, got %d %s", resp.StatusCode, body)
	}
	if app.recorder.routeName != "" {
		t.Fatalf("handler should not run for unknown operation")
	}
}

func TestRouterPassesDiagnosticsThrough(t *testing.T) {
	app := newTestApp(t, 5000)
	app.Get("/-/ping", func(c fiber.Ctx) error { return c.SendString("pong") })

	resp, err := app.Test(httptest.NewRequest("GET", "/-/ping", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "pong" {
		t.Fatalf("expected diagnostics route to answer, got %d %s", resp.StatusCode, body)
	}
}

func TestNewAppValidatesOptions(t *testing.T) {
	logger := logrus.New()
	if _, err := NewApp(AppOptions{Logger: logger, ListenPort: 5000}); err == nil {
		t.Fatalf("missing route table should fail")
	}
	if _, err := NewApp(AppOptions{Logger: logger, Routes: &RouteTable{}, Handler: &handlerRecorder{}}); err == nil {
		t.Fatalf("invalid port should fail")
	}
}

type testApp struct {
	*fiber.App
	recorder *handlerRecorder
}

func newTestApp(t *testing.T, port int) *testApp {
	t.Helper()

	cfg := &config.Config{
		Global: config.GlobalConfig{ListenPort: port},
		Registries: []config.RegistryConfig{
			{Name: "github", Type: "github"},
		},
	}

	table, err := NewRouteTable(cfg)
	if err != nil {
		t.Fatalf("failed to create route table: %v", err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	recorder := &handlerRecorder{}
	app, err := NewApp(AppOptions{
		Logger:     logger,
		Routes:     table,
		Handler:    recorder,
		ListenPort: port,
	})
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}

	return &testApp{App: app, recorder: recorder}
}

type handlerRecorder struct {
	routeName string
	op        Operation
}

func (h *handlerRecorder) Handle(c fiber.Ctx, route *RegistryRoute, op Operation) error {
	h.routeName = route.Name()
	h.op = op
	return c.SendStatus(fiber.StatusNoContent)
}
