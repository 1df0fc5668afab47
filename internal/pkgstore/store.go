// Package pkgstore 提供内存中的包文件集合，registry 返回的 manifest 与
// tarball 都会被整理成 Store 交给调用方。
package pkgstore

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// maxEntrySize 限制单个 tar 条目的大小，防止异常归档撑爆内存。
const maxEntrySize = 64 << 20

// ErrEntryTooLarge 表示归档中的某个文件超过 maxEntrySize。
var ErrEntryTooLarge = errors.New("archive entry too large")

// Store 记录一个包（或 manifest）的文件内容与校验 token。
type Store struct {
	name    string
	version string
	etag    string
	files   map[string][]byte
	archive []byte
}

// FromBuffers 以 names[i] 为文件名装配 buffers[i]，用于 manifest 这类合成文件。
func FromBuffers(name, version, etag string, buffers [][]byte, names []string) (*Store, error) {
	if len(buffers) != len(names) {
		return nil, fmt.Errorf("buffers/names length mismatch: %d != %d", len(buffers), len(names))
	}
	files := make(map[string][]byte, len(names))
	for i, fileName := range names {
		clean := cleanName(fileName)
		if clean == "" {
			return nil, fmt.Errorf("invalid file name %q", fileName)
		}
		files[clean] = buffers[i]
	}
	return &Store{
		name:    name,
		version: version,
		etag:    etag,
		files:   files,
	}, nil
}

// FromTarGz 解压 tar.gz 并去掉第一层目录（GitHub tarball 会包一层 <org>-<repo>-<sha>/）。
// 原始压缩数据保留在 Archive() 中，便于调用方落盘后重建。
func FromTarGz(name, version, etag string, data []byte) (*Store, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open gzip: %w", err)
	}
	defer gz.Close()

	files := make(map[string][]byte)
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tar: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		rel := stripTopLevel(header.Name)
		if rel == "" {
			continue
		}
		content, err := io.ReadAll(io.LimitReader(tr, maxEntrySize+1))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", header.Name, err)
		}
		if len(content) > maxEntrySize {
			return nil, fmt.Errorf("%s: %w", header.Name, ErrEntryTooLarge)
		}
		files[rel] = content
	}

	return &Store{
		name:    name,
		version: version,
		etag:    etag,
		files:   files,
		archive: data,
	}, nil
}

// Name 返回包名（保留 @scope 前缀）。
func (s *Store) Name() string { return s.name }

// Version 返回调用方请求的版本，manifest 为空串。
func (s *Store) Version() string { return s.version }

// ETag 返回上游给出的校验标记。
func (s *Store) ETag() string { return s.etag }

// Archive 返回构建 Store 时的原始压缩数据；由 FromBuffers 创建时为空。
func (s *Store) Archive() []byte {
	return s.archive
}

// File 返回指定文件内容，不存在时返回 nil。
func (s *Store) File(name string) []byte {
	return s.files[cleanName(name)]
}

// Files 返回按字典序排列的文件名。
func (s *Store) Files() []string {
	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Size 返回所有文件正文的字节总数。
func (s *Store) Size() int64 {
	var total int64
	for _, content := range s.files {
		total += int64(len(content))
	}
	return total
}

func stripTopLevel(name string) string {
	name = strings.TrimPrefix(name, "./")
	parts := strings.SplitN(name, "/", 2)
	if len(parts) < 2 {
		return ""
	}
	return cleanName(parts[1])
}

func cleanName(name string) string {
	clean := path.Clean("/" + strings.TrimSpace(name))
	clean = strings.TrimPrefix(clean, "/")
	if clean == "." {
		return ""
	}
	return clean
}
