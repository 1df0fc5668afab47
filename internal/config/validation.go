package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/ghpkg/ghpkg/internal/registry"
	"github.com/ghpkg/ghpkg/internal/transport"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	switch g.StorageBackend {
	case StorageFS:
		if g.StoragePath == "" {
			return newFieldError("Global.StoragePath", "不能为空")
		}
	case StorageS3:
		if g.S3Bucket == "" {
			return newFieldError("Global.S3Bucket", "StorageBackend 为 s3 时不能为空")
		}
	default:
		return newFieldError("Global.StorageBackend", "仅支持 fs|s3")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Global.UpstreamTimeout", "必须大于 0")
	}
	if g.MaxIdleConns < 0 {
		return newFieldError("Global.MaxIdleConns", "不能为负数")
	}

	if len(c.Registries) == 0 {
		return errors.New("至少需要配置一个 Registry")
	}

	seenNames := map[string]struct{}{}
	for i := range c.Registries {
		r := &c.Registries[i]
		if r.Name == "" {
			return newFieldError("Registry[].Name", "不能为空")
		}
		key := strings.ToLower(r.Name)
		if _, exists := seenNames[key]; exists {
			return newFieldError(registryField(r.Name, "Name"), "重复")
		}
		seenNames[key] = struct{}{}

		if r.Type == "" {
			return newFieldError(registryField(r.Name, "Type"), "不能为空")
		}
		if _, ok := registry.Resolve(r.Type); !ok {
			return newFieldError(registryField(r.Name, "Type"), "仅支持 "+strings.Join(registry.Types(), "|"))
		}
		if r.URL != "" {
			if err := validateUpstream(r.URL); err != nil {
				return fmt.Errorf("%s: %w", registryField(r.Name, "URL"), err)
			}
		}
		if r.Proxy != "" {
			if err := validateUpstream(r.Proxy); err != nil {
				return fmt.Errorf("%s: %w", registryField(r.Name, "Proxy"), err)
			}
		}
		if strings.EqualFold(r.Slave, r.Name) {
			return newFieldError(registryField(r.Name, "SlaveName"), "不能指向自身")
		}
	}

	for _, r := range c.Registries {
		if r.Slave == "" {
			continue
		}
		if _, ok := seenNames[strings.ToLower(r.Slave)]; !ok {
			return newFieldError(registryField(r.Name, "SlaveName"), fmt.Sprintf("未定义的 Registry: %s", r.Slave))
		}
	}

	return nil
}

func validateUpstream(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，上游: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("上游缺少 Host: %s", raw)
	}
	return nil
}

// TransportOptions 根据全局参数与 Registry 的代理设置构造连接池选项（假定 Validate 已经通过）。
func (c *Config) TransportOptions(r RegistryConfig) transport.Options {
	opts := transport.Options{
		Timeout:      c.Global.UpstreamTimeout.DurationValue(),
		MaxIdleConns: c.Global.MaxIdleConns,
	}
	if r.Proxy != "" {
		if proxyURL, err := url.Parse(r.Proxy); err == nil {
			opts.Proxy = proxyURL
		}
	}
	return opts
}
