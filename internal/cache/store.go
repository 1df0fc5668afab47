package cache

import (
	"context"
	"errors"
	"io"
	"time"
)

// Store 负责管理缓存的读写。磁盘布局遵循：
//
//	<StoragePath>/<Registry>/<path>.body    # 实际正文
//	<StoragePath>/<Registry>/<path>.meta    # ETag 等元信息
type Store interface {
	// Get 返回一个可流式读取的缓存条目。若不存在则返回 ErrNotFound。
	Get(ctx context.Context, locator Locator) (*ReadResult, error)

	// Put 写入正文与 ETag，并产出新的 Entry 描述。实现需保证失败时不留下半截文件。
	Put(ctx context.Context, locator Locator, body io.Reader, opts PutOptions) (*Entry, error)

	// Remove 删除条目，上游返回 NotFound 时调用。条目不存在不算错误。
	Remove(ctx context.Context, locator Locator) error
}

// PutOptions 控制写入过程中的可选属性。
type PutOptions struct {
	ModTime time.Time
	ETag    string
}

// Locator 唯一定位一个缓存条目（Registry + 相对路径），所有路径均为 URL 路径风格。
type Locator struct {
	Registry string
	Path     string
}

// Entry 表示一次缓存命中结果。
type Entry struct {
	Locator   Locator   `json:"locator"`
	FilePath  string    `json:"file_path"`
	SizeBytes int64     `json:"size_bytes"`
	ModTime   time.Time `json:"mod_time"`
	ETag      string    `json:"etag"`
}

// ReadResult 组合 Entry 与正文 Reader，调用方负责 Close。
type ReadResult struct {
	Entry  Entry
	Reader io.ReadCloser
}

// ErrNotFound 表示缓存不存在。
var ErrNotFound = errors.New("cache entry not found")

// ManifestLocator 返回某个包的 manifest 条目位置。
func ManifestLocator(registryName, name string) Locator {
	return Locator{Registry: registryName, Path: "manifest/" + name}
}

// PackageLocator 返回某个包指定版本归档的条目位置。
func PackageLocator(registryName, name, version string) Locator {
	return Locator{Registry: registryName, Path: "package/" + name + "/" + version}
}

func locatorKey(locator Locator) string {
	return locator.Registry + "::" + locator.Path
}
