package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ghpkg/ghpkg/internal/pkgstore"
	"github.com/ghpkg/ghpkg/internal/transport"
)

// Registry 是宿主看到的后端接口。Manifest/Package 在 NotModified 时返回携带旧 ETag 的空
// Response，NotFound 时返回空 ETag 的空 Response，其余状态码以 error 返回。
type Registry interface {
	TypeName() string
	Manifest(ctx context.Context, name, etag string) (*Response, error)
	Package(ctx context.Context, name, version, etag string) (*Response, error)
	Start(ctx context.Context) error
	Stop() error
}

// Response 是一次条件请求的结果。Store 非空代表拿到了新内容。
type Response struct {
	Store *pkgstore.Store
	ETag  string
}

// Settings 是工厂函数的入参，由宿主根据配置组装。
type Settings struct {
	Name   string
	URL    string
	Token  string
	Client transport.Client
	Logger *logrus.Logger
}

// Factory 根据 Settings 构造后端实例。
type Factory func(Settings) (Registry, error)

// Backend 描述一种可注册的后端类型。
type Backend struct {
	Type        string
	Description string
	DefaultURL  string
	New         Factory
}

var backends = newBackendSet()

type backendSet struct {
	mu    sync.RWMutex
	items map[string]Backend
}

func newBackendSet() *backendSet {
	return &backendSet{items: make(map[string]Backend)}
}

// Register 将后端加入全局表，重复类型会返回错误。
func Register(b Backend) error {
	return backends.register(b)
}

// MustRegister 在注册失败时 panic，适合后端 init() 中调用。
func MustRegister(b Backend) {
	if err := Register(b); err != nil {
		panic(err)
	}
}

// Resolve 返回指定类型的后端。
func Resolve(typeName string) (Backend, bool) {
	return backends.resolve(typeName)
}

// Types 返回已注册类型，按字典序排列。
func Types() []string {
	return backends.types()
}

// New 按类型构造后端实例。
func New(typeName string, settings Settings) (Registry, error) {
	b, ok := Resolve(typeName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typeName)
	}
	if settings.URL == "" {
		settings.URL = b.DefaultURL
	}
	return b.New(settings)
}

func normalizeType(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func (s *backendSet) register(b Backend) error {
	key := normalizeType(b.Type)
	if key == "" {
		return fmt.Errorf("backend type is required")
	}
	if b.New == nil {
		return fmt.Errorf("backend %s: factory is required", key)
	}
	b.Type = key

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[key]; exists {
		return fmt.Errorf("backend %s already registered", key)
	}
	s.items[key] = b
	return nil
}

func (s *backendSet) resolve(key string) (Backend, bool) {
	normalized := normalizeType(key)
	if normalized == "" {
		return Backend{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.items[normalized]
	return b, ok
}

func (s *backendSet) types() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.items))
	for key := range s.items {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
