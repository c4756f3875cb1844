package config

import (
	"errors"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return newFieldError("LogLevel", "仅支持 panic|fatal|error|warn|info|debug|trace")
	}
	if c.LogMaxSize < 0 {
		return newFieldError("LogMaxSize", "不能为负数")
	}
	if c.LogMaxBackups < 0 {
		return newFieldError("LogMaxBackups", "不能为负数")
	}
	if c.DemoDelay.DurationValue() < 0 {
		return newFieldError("DemoDelay", "不能为负数")
	}

	if strings.TrimSpace(c.CachePath) == "" {
		return newFieldError("CachePath", "不能为空")
	}
	if info, err := os.Stat(c.CachePath); err == nil && info.IsDir() {
		return newFieldError("CachePath", "不能是目录")
	}

	return nil
}
