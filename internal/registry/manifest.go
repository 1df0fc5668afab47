package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"

	"github.com/ghpkg/ghpkg/internal/pkgstore"
)

// ManifestFile 是 manifest Store 中唯一的合成文件名。
const ManifestFile = "package.json"

// VersionDescriptor 对应一个上游 tag。Description 保存 commit sha，仅供展示。
type VersionDescriptor struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// Manifest 是某个包的全部可用版本。
type Manifest struct {
	Name     string                       `json:"name"`
	Versions map[string]VersionDescriptor `json:"versions"`
}

// ErrManifestMissing 表示 Store 中没有 package.json。
var ErrManifestMissing = errors.New("manifest file missing")

// DecodeManifest 从 Store 中解析 manifest。
func DecodeManifest(store *pkgstore.Store) (*Manifest, error) {
	if store == nil {
		return nil, ErrManifestMissing
	}
	return ParseManifest(store.File(ManifestFile))
}

// ParseManifest 解析序列化后的 manifest 文件。
func ParseManifest(data []byte) (*Manifest, error) {
	if len(data) == 0 {
		return nil, ErrManifestMissing
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if m.Versions == nil {
		m.Versions = map[string]VersionDescriptor{}
	}
	return &m, nil
}

// SortVersions 返回排好序的版本号：可解析为 semver 的按语义升序在前，其余按字典序在后。
func SortVersions(m *Manifest) []string {
	if m == nil || len(m.Versions) == 0 {
		return nil
	}
	type parsed struct {
		raw string
		ver *semver.Version
	}
	var semverKeys []parsed
	var others []string
	for key := range m.Versions {
		if v, err := semver.NewVersion(key); err == nil {
			semverKeys = append(semverKeys, parsed{raw: key, ver: v})
			continue
		}
		others = append(others, key)
	}
	sort.Slice(semverKeys, func(i, j int) bool {
		if semverKeys[i].ver.Equal(semverKeys[j].ver) {
			return semverKeys[i].raw < semverKeys[j].raw
		}
		return semverKeys[i].ver.LessThan(semverKeys[j].ver)
	})
	sort.Strings(others)

	result := make([]string, 0, len(m.Versions))
	for _, p := range semverKeys {
		result = append(result, p.raw)
	}
	return append(result, others...)
}

// Latest 返回最高的正式版本；只有预发布版本时返回最高的预发布版本；
// 没有任何 semver tag 时返回空串。
func Latest(m *Manifest) string {
	var best, bestPre *semver.Version
	var bestRaw, bestPreRaw string
	if m == nil {
		return ""
	}
	for key := range m.Versions {
		v, err := semver.NewVersion(key)
		if err != nil {
			continue
		}
		if v.Prerelease() != "" {
			if bestPre == nil || v.GreaterThan(bestPre) {
				bestPre, bestPreRaw = v, key
			}
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best, bestRaw = v, key
		}
	}
	if best != nil {
		return bestRaw
	}
	return bestPreRaw
}
