package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

const (
	// StorageFS 表示缓存写入本地目录。
	StorageFS = "fs"
	// StorageS3 表示缓存写入 S3 bucket。
	StorageS3 = "s3"
)

// GlobalConfig 描述全局运行时行为，所有 Registry 共享同一份参数。
type GlobalConfig struct {
	ListenPort      int      `mapstructure:"ListenPort"`
	LogLevel        string   `mapstructure:"LogLevel"`
	LogFilePath     string   `mapstructure:"LogFilePath"`
	LogMaxSize      int      `mapstructure:"LogMaxSize"`
	LogMaxBackups   int      `mapstructure:"LogMaxBackups"`
	LogCompress     bool     `mapstructure:"LogCompress"`
	StorageBackend  string   `mapstructure:"StorageBackend"`
	StoragePath     string   `mapstructure:"StoragePath"`
	S3Bucket        string   `mapstructure:"S3Bucket"`
	S3Prefix        string   `mapstructure:"S3Prefix"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
	MaxIdleConns    int      `mapstructure:"MaxIdleConns"`
}

// RegistryConfig 描述一个上游 registry。Slave 指向 NotFound 时回退查询的另一个 registry。
type RegistryConfig struct {
	Name     string `mapstructure:"Name"`
	Type     string `mapstructure:"Type"`
	Slave    string `mapstructure:"SlaveName"`
	URL      string `mapstructure:"URL"`
	Token    string `mapstructure:"Token"`
	TokenEnv string `mapstructure:"TokenEnv"`
	Proxy    string `mapstructure:"Proxy"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global     GlobalConfig     `mapstructure:",squash"`
	Registries []RegistryConfig `mapstructure:"Registry"`
}

// ResolvedToken 返回生效的 token：Token 优先，其次读取 TokenEnv 指向的环境变量。
func (r RegistryConfig) ResolvedToken() string {
	if r.Token != "" {
		return r.Token
	}
	if r.TokenEnv != "" {
		return os.Getenv(r.TokenEnv)
	}
	return ""
}

// AuthMode 输出 `token` 或 `anonymous`，供日志字段使用。
func (r RegistryConfig) AuthMode() string {
	if r.ResolvedToken() != "" {
		return "token"
	}
	return "anonymous"
}

// CredentialModes 返回所有 Registry 的鉴权模式摘要，例如 github:token。
func CredentialModes(registries []RegistryConfig) []string {
	if len(registries) == 0 {
		return nil
	}
	result := make([]string, len(registries))
	for i, r := range registries {
		result[i] = fmt.Sprintf("%s:%s", r.Name, r.AuthMode())
	}
	return result
}
