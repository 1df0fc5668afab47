package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供 registry/操作/缓存结果字段，供 HTTP 请求日志复用。
func RequestFields(registryName, registryType, authMode, operation, cacheResult string) logrus.Fields {
	return logrus.Fields{
		"registry":      registryName,
		"registry_type": registryType,
		"auth_mode":     authMode,
		"operation":     operation,
		"cache_result":  cacheResult,
	}
}
