package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/pmemo/cache"
	"github.com/any-hub/pmemo/internal/config"
	"github.com/any-hub/pmemo/internal/logging"
	"github.com/any-hub/pmemo/memo"
)

// inspectCache 打开 CachePath 并逐条打印 key 摘要、调用参数与结果。
func inspectCache(cfg *config.Config, logger *logrus.Logger) error {
	store, err := cache.Open(cfg.CachePath, cache.WithLogger(logger))
	if err != nil {
		return err
	}
	defer store.Close()

	size, err := store.Size()
	if err != nil {
		return err
	}

	fmt.Fprintf(stdOut, "cache:   %s\n", store.Path())
	fmt.Fprintf(stdOut, "entries: %d\n", store.Len())
	fmt.Fprintf(stdOut, "size:    %s\n", humanize.Bytes(uint64(size)))

	for _, k := range store.Keys() {
		key := memo.Key(k)
		value, err := store.Get(k)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdOut, "%s  %s => %s\n", key.Digest(), describe([]byte(k)), describe(value))
	}

	fields := logging.BaseFields("inspect", cfg.CachePath)
	fields["entries"] = store.Len()
	fields["size_bytes"] = size
	logger.WithFields(fields).Debug("缓存概览完成")
	return nil
}

// describe 将编码后的值解回通用结构用于展示；无法解析时标注原始长度。
func describe(data []byte) string {
	v, err := memo.Decode[any](data)
	if err != nil {
		return fmt.Sprintf("<%d bytes: %v>", len(data), err)
	}
	return fmt.Sprintf("%v", v)
}
