package registry

import "strings"

// syntheticPrefix 标记上游合成的预发布版本，真实 tag 位于前缀之后。
const syntheticPrefix = "0.0.0-"

// NormalizeVersion 将 "0.0.0-<tag>" 还原为 "<tag>"，其余版本原样返回。
func NormalizeVersion(version string) string {
	if rest, ok := strings.CutPrefix(version, syntheticPrefix); ok && rest != "" {
		return rest
	}
	return version
}

// TrimScope 去掉 "@org/name" 里的作用域标记，得到 "org/name"。
func TrimScope(name string) string {
	return strings.Replace(name, "@", "", 1)
}
