package github

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ghpkg/ghpkg/internal/pkgstore"
	"github.com/ghpkg/ghpkg/internal/registry"
)

// tag 是 /repos/{owner}/{repo}/tags 返回数组中的单个元素。
type tag struct {
	Name   string `json:"name"`
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

// ErrMalformedTags 表示 tag 列表不是数组，或其中存在缺少 name 的元素。
var ErrMalformedTags = errors.New("malformed tag listing")

// decodeTags 把 tag 列表转换成 Manifest；空数组得到零版本的 Manifest。
func decodeTags(name string, body []byte) (*registry.Manifest, error) {
	var tags []tag
	if err := json.Unmarshal(body, &tags); err != nil {
		return nil, fmt.Errorf("decode tags for %s: %w", name, err)
	}
	// null 解码后是 nil 切片，空数组则是非 nil 的空切片。
	if tags == nil {
		return nil, fmt.Errorf("decode tags for %s: %w: body is not an array", name, ErrMalformedTags)
	}
	m := &registry.Manifest{
		Name:     name,
		Versions: make(map[string]registry.VersionDescriptor, len(tags)),
	}
	for i, t := range tags {
		if t.Name == "" {
			return nil, fmt.Errorf("decode tags for %s: %w: entry %d has no name", name, ErrMalformedTags, i)
		}
		m.Versions[t.Name] = registry.VersionDescriptor{
			Name:        name,
			Version:     t.Name,
			Description: t.Commit.SHA,
		}
	}
	return m, nil
}

func assembleManifest(name, etag string, body []byte) (*pkgstore.Store, error) {
	m, err := decodeTags(name, body)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode manifest for %s: %w", name, err)
	}
	return pkgstore.FromBuffers(name, "", etag, [][]byte{data}, []string{registry.ManifestFile})
}

func assembleArchive(name, version, etag string, data []byte) (*pkgstore.Store, error) {
	store, err := pkgstore.FromTarGz(name, version, etag, data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s@%s: %w", name, version, err)
	}
	return store, nil
}
