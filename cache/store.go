package cache

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/pmemo/internal/logging"
)

var (
	// ErrNotFound 表示缓存中不存在该 key。
	ErrNotFound = errors.New("cache entry not found")

	// ErrCorrupt 表示磁盘镜像非空但无法解析为完整的映射。
	ErrCorrupt = errors.New("cache file corrupt")

	// ErrClosed 表示 Store 已关闭，后续操作均无效。
	ErrClosed = errors.New("cache store closed")
)

// Option 调整 Open 时的可选行为。
type Option func(*options)

type options struct {
	logger *logrus.Logger
}

// WithLogger 注入结构化日志；未注入时日志被丢弃。
func WithLogger(logger *logrus.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: logging.Discard()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
