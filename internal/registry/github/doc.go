// Package github 实现基于 GitHub REST API 的 registry 后端：
// tag 列表充当版本清单，tarball 充当包归档。
package github
