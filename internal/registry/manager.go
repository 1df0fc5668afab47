package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Observer 接收每次 Manifest/Package 调用的结果，通常由 metrics 包实现。
type Observer interface {
	Observe(registry, operation, outcome string, elapsed time.Duration)
}

// Entry 是 Manager 对外暴露的注册信息。
type Entry struct {
	Name  string
	Slave string
	Type  string
}

type managed struct {
	name     string
	slave    string
	registry Registry
}

// Manager 按名称持有多个后端。主后端返回 NotFound 时，若配置了 slave，会再向 slave 查询一次。
type Manager struct {
	mu       sync.RWMutex
	entries  map[string]*managed
	order    []string
	logger   *logrus.Logger
	observer Observer
}

// NewManager 创建空 Manager；logger 为空时丢弃日志，observer 可为空。
func NewManager(logger *logrus.Logger, observer Observer) *Manager {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Manager{
		entries:  make(map[string]*managed),
		logger:   logger,
		observer: observer,
	}
}

// Add 注册一个后端。slave 只在 Manifest/Package 时解析，允许先添加主后端再添加 slave。
func (m *Manager) Add(name, slave string, r Registry) error {
	key := normalizeName(name)
	if key == "" {
		return errors.New("registry name required")
	}
	if r == nil {
		return fmt.Errorf("registry %s: backend required", key)
	}
	if normalizeName(slave) == key {
		return fmt.Errorf("registry %s: slave cannot point to itself", key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; exists {
		return fmt.Errorf("registry %s already added", key)
	}
	m.entries[key] = &managed{name: key, slave: normalizeName(slave), registry: r}
	m.order = append(m.order, key)
	return nil
}

// Get 返回指定名称的后端。
func (m *Manager) Get(name string) (Registry, bool) {
	entry, ok := m.lookup(name)
	if !ok {
		return nil, false
	}
	return entry.registry, true
}

// Entries 按名称排序返回注册信息。
func (m *Manager) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Entry, 0, len(m.entries))
	for _, entry := range m.entries {
		result = append(result, Entry{
			Name:  entry.name,
			Slave: entry.slave,
			Type:  entry.registry.TypeName(),
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Manifest 查询 manifest，必要时回退到 slave。
func (m *Manager) Manifest(ctx context.Context, registryName, name, etag string) (*Response, error) {
	return m.call(registryName, "manifest", func(r Registry) (*Response, error) {
		return r.Manifest(ctx, name, etag)
	})
}

// Package 查询归档，必要时回退到 slave。
func (m *Manager) Package(ctx context.Context, registryName, name, version, etag string) (*Response, error) {
	return m.call(registryName, "package", func(r Registry) (*Response, error) {
		return r.Package(ctx, name, version, etag)
	})
}

func (m *Manager) call(registryName, operation string, fn func(Registry) (*Response, error)) (*Response, error) {
	entry, ok := m.lookup(registryName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRegistry, registryName)
	}

	resp, err := m.observe(entry.name, operation, func() (*Response, error) { return fn(entry.registry) })
	if err != nil || OutcomeOf(resp, nil) != OutcomeNotFound || entry.slave == "" {
		return resp, err
	}

	slave, ok := m.lookup(entry.slave)
	if !ok {
		m.logger.WithFields(logrus.Fields{
			"action":   "registry_slave",
			"registry": entry.name,
			"slave":    entry.slave,
		}).Warn("slave registry missing")
		return resp, nil
	}
	m.logger.WithFields(logrus.Fields{
		"action":    "registry_slave",
		"registry":  entry.name,
		"slave":     slave.name,
		"operation": operation,
	}).Debug("fallback to slave registry")
	return m.observe(slave.name, operation, func() (*Response, error) { return fn(slave.registry) })
}

func (m *Manager) observe(name, operation string, fn func() (*Response, error)) (*Response, error) {
	started := time.Now()
	resp, err := fn()
	if m.observer != nil {
		m.observer.Observe(name, operation, OutcomeOf(resp, err).String(), time.Since(started))
	}
	return resp, err
}

// Start 依次启动所有后端，遇到第一个错误即返回。
func (m *Manager) Start(ctx context.Context) error {
	for _, entry := range m.snapshot() {
		if err := entry.registry.Start(ctx); err != nil {
			return fmt.Errorf("start registry %s: %w", entry.name, err)
		}
	}
	return nil
}

// Stop 停止所有后端并汇总错误。
func (m *Manager) Stop() error {
	var errs []error
	for _, entry := range m.snapshot() {
		if err := entry.registry.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop registry %s: %w", entry.name, err))
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) snapshot() []*managed {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*managed, 0, len(m.order))
	for _, key := range m.order {
		result = append(result, m.entries[key])
	}
	return result
}

func (m *Manager) lookup(name string) (*managed, bool) {
	key := normalizeName(name)
	if key == "" {
		return nil, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[key]
	return entry, ok
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
