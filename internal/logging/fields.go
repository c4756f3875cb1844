package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// StoreFields 描述一次缓存文件操作：Store 实例 ID 与文件路径。
func StoreFields(action, storeID, path string) logrus.Fields {
	return logrus.Fields{
		"action":   action,
		"store_id": storeID,
		"path":     path,
	}
}

// CallFields 提供被包装函数名、key 摘要与命中状态，供 memo 调用日志复用。
func CallFields(name, keyDigest string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"action":    "memo_call",
		"func":      name,
		"key":       keyDigest,
		"cache_hit": cacheHit,
	}
}
