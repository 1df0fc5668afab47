package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/ghpkg/ghpkg/internal/cache"
	"github.com/ghpkg/ghpkg/internal/logging"
	"github.com/ghpkg/ghpkg/internal/metrics"
	"github.com/ghpkg/ghpkg/internal/pkgstore"
	"github.com/ghpkg/ghpkg/internal/registry"
	"github.com/ghpkg/ghpkg/internal/server"
)

// 缓存结果，写入 X-Ghpkg-Cache 响应头与 cache_result 日志字段。
const (
	cacheMiss        = "miss"
	cacheRevalidated = "revalidated"
	cacheNotFound    = "not_found"
	cacheError       = "error"
	cacheBypass      = "bypass"
)

const headerCacheResult = "X-Ghpkg-Cache"

// Handler 负责 orchestrate “读缓存 ETag → 条件回源 → 写缓存/删缓存” 的全流程。
// store 为空时退化为无缓存模式，每次都向上游发起无条件请求。
type Handler struct {
	manager *registry.Manager
	store   cache.Store
	logger  *logrus.Logger
	metrics *metrics.Recorder
}

// NewHandler constructs a handler with shared manager/store/logger.
func NewHandler(manager *registry.Manager, store cache.Store, logger *logrus.Logger, recorder *metrics.Recorder) *Handler {
	return &Handler{
		manager: manager,
		store:   store,
		logger:  logger,
		metrics: recorder,
	}
}

// fetchFunc 以 prior ETag 调用 Manager。
type fetchFunc func(ctx context.Context, prior string) (*registry.Response, error)

// resolved 是一次处理的最终结果。
type resolved struct {
	data        []byte
	etag        string
	cacheResult string
}

var errNotFound = errors.New("package not found")

// Handle 实现 server.RegistryHandler。
func (h *Handler) Handle(c fiber.Ctx, route *server.RegistryRoute, op server.Operation) error {
	started := time.Now()
	name := strings.TrimSpace(c.Query("name"))
	version := strings.TrimSpace(c.Query("version"))
	if name == "" {
		return h.writeError(c, fiber.StatusBadRequest, "name_required")
	}

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		locator     cache.Locator
		fetch       fetchFunc
		extract     func(*pkgstore.Store) []byte
		contentType string
	)
	switch op {
	case server.OperationPackage, server.OperationFiles:
		if version == "" {
			return h.writeError(c, fiber.StatusBadRequest, "version_required")
		}
		locator = cache.PackageLocator(route.Name(), name, version)
		fetch = func(ctx context.Context, prior string) (*registry.Response, error) {
			return h.manager.Package(ctx, route.Name(), name, version, prior)
		}
		extract = (*pkgstore.Store).Archive
		contentType = "application/gzip"
	default:
		locator = cache.ManifestLocator(route.Name(), name)
		fetch = func(ctx context.Context, prior string) (*registry.Response, error) {
			return h.manager.Manifest(ctx, route.Name(), name, prior)
		}
		extract = func(s *pkgstore.Store) []byte { return s.File(registry.ManifestFile) }
		contentType = fiber.MIMEApplicationJSON
	}

	result, err := h.resolve(ctx, route, locator, fetch, extract)
	if err != nil {
		return h.renderFailure(c, route, op, name, version, started, err)
	}

	c.Set(headerCacheResult, result.cacheResult)
	if result.etag != "" {
		c.Set(fiber.HeaderETag, result.etag)
	}
	h.metrics.CacheResult(route.Name(), result.cacheResult)

	if result.etag != "" && c.Get(fiber.HeaderIfNoneMatch) == result.etag {
		h.logResult(c, route, op, name, version, result.cacheResult, fiber.StatusNotModified, started, nil)
		return c.SendStatus(fiber.StatusNotModified)
	}
	h.logResult(c, route, op, name, version, result.cacheResult, fiber.StatusOK, started, nil)

	switch op {
	case server.OperationVersions:
		return h.renderVersions(c, result.data)
	case server.OperationFiles:
		return h.renderFiles(c, name, version, result)
	}
	c.Set(fiber.HeaderContentType, contentType)
	return c.Send(result.data)
}

// resolve 以缓存中的 ETag 作为 prior 回源，并根据结果维护缓存。
func (h *Handler) resolve(
	ctx context.Context,
	route *server.RegistryRoute,
	locator cache.Locator,
	fetch fetchFunc,
	extract func(*pkgstore.Store) []byte,
) (*resolved, error) {
	cachedBody, prior := h.readCache(ctx, route, locator)

	resp, err := fetch(ctx, prior)
	if err != nil {
		return nil, err
	}

	switch registry.OutcomeOf(resp, nil) {
	case registry.OutcomeFresh:
		data := extract(resp.Store)
		if h.store == nil {
			return &resolved{data: data, etag: resp.ETag, cacheResult: cacheBypass}, nil
		}
		h.writeCache(ctx, route, locator, data, resp.ETag)
		return &resolved{data: data, etag: resp.ETag, cacheResult: cacheMiss}, nil
	case registry.OutcomeNotModified:
		if cachedBody == nil {
			return nil, fmt.Errorf("upstream reported not modified for %s without a cached copy", locator.Path)
		}
		return &resolved{data: cachedBody, etag: resp.ETag, cacheResult: cacheRevalidated}, nil
	default:
		h.removeCache(ctx, route, locator)
		return nil, errNotFound
	}
}

func (h *Handler) readCache(ctx context.Context, route *server.RegistryRoute, locator cache.Locator) ([]byte, string) {
	if h.store == nil {
		return nil, ""
	}
	result, err := h.store.Get(ctx, locator)
	switch {
	case err == nil:
	case errors.Is(err, cache.ErrNotFound):
		return nil, ""
	default:
		h.logger.WithError(err).
			WithFields(logrus.Fields{"registry": route.Name(), "path": locator.Path}).
			Warn("cache_get_failed")
		return nil, ""
	}
	defer result.Reader.Close()

	body, err := io.ReadAll(result.Reader)
	if err != nil {
		h.logger.WithError(err).
			WithFields(logrus.Fields{"registry": route.Name(), "path": locator.Path}).
			Warn("cache_read_failed")
		return nil, ""
	}
	return body, result.Entry.ETag
}

func (h *Handler) writeCache(ctx context.Context, route *server.RegistryRoute, locator cache.Locator, data []byte, etag string) {
	if h.store == nil {
		return
	}
	if _, err := h.store.Put(ctx, locator, bytes.NewReader(data), cache.PutOptions{ETag: etag}); err != nil {
		h.logger.WithError(err).
			WithFields(logrus.Fields{"registry": route.Name(), "path": locator.Path}).
			Warn("cache_write_failed")
	}
}

func (h *Handler) removeCache(ctx context.Context, route *server.RegistryRoute, locator cache.Locator) {
	if h.store == nil {
		return
	}
	if err := h.store.Remove(ctx, locator); err != nil {
		h.logger.WithError(err).
			WithFields(logrus.Fields{"registry": route.Name(), "path": locator.Path}).
			Warn("cache_remove_failed")
	}
}

func (h *Handler) renderVersions(c fiber.Ctx, data []byte) error {
	m, err := registry.ParseManifest(data)
	if err != nil {
		return h.writeError(c, fiber.StatusBadGateway, "manifest_invalid")
	}
	versions := registry.SortVersions(m)
	if versions == nil {
		versions = []string{}
	}
	return c.JSON(fiber.Map{
		"name":     m.Name,
		"versions": versions,
		"latest":   registry.Latest(m),
	})
}

// renderFiles 解包归档并列出文件；缓存命中时归档来自缓存，同样需要重新解包。
func (h *Handler) renderFiles(c fiber.Ctx, name, version string, result *resolved) error {
	store, err := pkgstore.FromTarGz(name, version, result.etag, result.data)
	if err != nil {
		return h.writeError(c, fiber.StatusBadGateway, "archive_invalid")
	}
	type fileEntry struct {
		Name string `json:"name"`
		Size int    `json:"size"`
	}
	files := make([]fileEntry, 0, len(store.Files()))
	for _, fileName := range store.Files() {
		files = append(files, fileEntry{Name: fileName, Size: len(store.File(fileName))})
	}
	return c.JSON(fiber.Map{
		"name":    store.Name(),
		"version": store.Version(),
		"etag":    store.ETag(),
		"size":    store.Size(),
		"files":   files,
	})
}

func (h *Handler) renderFailure(
	c fiber.Ctx,
	route *server.RegistryRoute,
	op server.Operation,
	name, version string,
	started time.Time,
	err error,
) error {
	if errors.Is(err, errNotFound) {
		h.metrics.CacheResult(route.Name(), cacheNotFound)
		h.logResult(c, route, op, name, version, cacheNotFound, fiber.StatusNotFound, started, nil)
		return h.writeError(c, fiber.StatusNotFound, "package_not_found")
	}

	h.metrics.CacheResult(route.Name(), cacheError)
	h.logResult(c, route, op, name, version, cacheError, fiber.StatusBadGateway, started, err)

	payload := fiber.Map{"error": "upstream_failed"}
	var statusErr *registry.StatusError
	if errors.As(err, &statusErr) {
		payload["status"] = statusErr.Code
	}
	return c.Status(fiber.StatusBadGateway).JSON(payload)
}

func (h *Handler) writeError(c fiber.Ctx, status int, code string) error {
	return c.Status(status).JSON(fiber.Map{"error": code})
}

func (h *Handler) logResult(
	c fiber.Ctx,
	route *server.RegistryRoute,
	op server.Operation,
	name, version, cacheResult string,
	status int,
	started time.Time,
	err error,
) {
	fields := logging.RequestFields(
		route.Name(),
		route.Config.Type,
		route.Config.AuthMode(),
		string(op),
		cacheResult,
	)
	fields["action"] = "registry_proxy"
	fields["package"] = name
	fields["status"] = status
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if version != "" {
		fields["version"] = version
	}
	if requestID := server.RequestID(c); requestID != "" {
		fields["request_id"] = requestID
	}
	if err != nil {
		fields["error"] = err.Error()
		h.logger.WithFields(fields).Error("registry_proxy_failed")
		return
	}
	h.logger.WithFields(fields).Info("registry_proxy_complete")
}
