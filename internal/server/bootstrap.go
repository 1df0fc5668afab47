package server

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ghpkg/ghpkg/internal/config"
	"github.com/ghpkg/ghpkg/internal/registry"
	"github.com/ghpkg/ghpkg/internal/transport"
)

// BuildManager 为每个 Registry 创建独立的 transport 与后端实例，并注册到 Manager。
func BuildManager(cfg *config.Config, logger *logrus.Logger, observer registry.Observer) (*registry.Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	manager := registry.NewManager(logger, observer)
	for _, reg := range cfg.Registries {
		client := transport.NewHTTPClient(cfg.TransportOptions(reg))
		backend, err := registry.New(reg.Type, registry.Settings{
			Name:   reg.Name,
			URL:    reg.URL,
			Token:  reg.ResolvedToken(),
			Client: client,
			Logger: logger,
		})
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("registry %s: %w", reg.Name, err)
		}
		if err := manager.Add(reg.Name, reg.Slave, backend); err != nil {
			_ = backend.Stop()
			return nil, err
		}
	}
	return manager, nil
}
