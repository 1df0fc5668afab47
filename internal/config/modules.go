package config

import (
	// 注册 registry 后端，Validate 依赖注册表判断 Type 是否可用。
	_ "github.com/ghpkg/ghpkg/internal/registry/github"
)
