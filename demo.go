package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/pmemo/internal/config"
	"github.com/any-hub/pmemo/internal/logging"
	"github.com/any-hub/pmemo/memo"
)

// runDemo 以 CachePath 为缓存文件计算 triple(n)：首次计算（可配置延迟模拟慢调用），之后直接命中。
func runDemo(cfg *config.Config, logger *logrus.Logger, n int) error {
	delay := cfg.DemoDelay.DurationValue()
	triple := func(ctx context.Context, x int) (int, error) {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		}
		return 3 * x, nil
	}

	m, err := memo.Wrap(triple, cfg.CachePath, memo.WithLogger(logger), memo.WithName("triple"))
	if err != nil {
		return err
	}
	defer m.Close()

	cached, err := m.Contains(n)
	if err != nil {
		return err
	}

	start := time.Now()
	v, err := m.Call(context.Background(), n)
	if err != nil {
		return err
	}

	fields := logging.BaseFields("demo", cfg.CachePath)
	fields["arg"] = n
	fields["cache_hit"] = cached
	fields["elapsed"] = time.Since(start).String()
	logger.WithFields(fields).Info("demo 完成")

	fmt.Fprintf(stdOut, "triple(%d) = %d\n", n, v)
	return nil
}
