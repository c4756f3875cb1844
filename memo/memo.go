package memo

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/pmemo/cache"
	"github.com/any-hub/pmemo/internal/logging"
)

// Func 是可被包装的函数签名：单个参数值 A（通常为参数结构体或 Call），返回 R。
type Func[A, R any] func(ctx context.Context, args A) (R, error)

// Option 调整 Wrap 的可选行为。
type Option func(*options)

type options struct {
	logger *logrus.Logger
	name   string
}

// WithLogger 注入结构化日志，命中/未命中均以 debug 级别记录。
func WithLogger(logger *logrus.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithName 设置日志中的函数名；默认取被包装函数的符号名。
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// Memoizer 独占一个 cache.Store，并把被包装函数的结果持久化到其中。
type Memoizer[A, R any] struct {
	fn     Func[A, R]
	name   string
	store  *cache.Store
	logger *logrus.Logger
}

// Wrap 在 path 处打开（或创建）缓存文件并返回包装后的 Memoizer。
// 缓存文件只在此处打开一次，之后所有调用共用同一个句柄。
func Wrap[A, R any](fn Func[A, R], path string, opts ...Option) (*Memoizer[A, R], error) {
	if fn == nil {
		return nil, errors.New("memo: function required")
	}

	o := options{logger: logging.Discard()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.name == "" {
		o.name = funcName(fn)
	}

	store, err := cache.Open(path, cache.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}

	return &Memoizer[A, R]{
		fn:     fn,
		name:   o.name,
		store:  store,
		logger: o.logger,
	}, nil
}

// Memoize 与 Wrap 相同，但直接返回同签名的函数值。
// 返回的函数不提供关闭入口，缓存文件保持打开直到进程退出。
func Memoize[A, R any](fn Func[A, R], path string, opts ...Option) (Func[A, R], error) {
	m, err := Wrap(fn, path, opts...)
	if err != nil {
		return nil, err
	}
	return m.Call, nil
}

// Call 命中时直接返回已存储的结果且不调用被包装函数；
// 未命中时调用函数，成功后写入缓存再返回。函数返回的错误原样透传且不会被缓存。
func (m *Memoizer[A, R]) Call(ctx context.Context, args A) (R, error) {
	var zero R

	key, err := KeyOf(args)
	if err != nil {
		return zero, fmt.Errorf("build cache key: %w", err)
	}

	if data, ok := m.store.Lookup(string(key)); ok {
		result, err := Decode[R](data)
		if err != nil {
			return zero, fmt.Errorf("decode cached result %s: %w", key.Digest(), err)
		}
		m.logger.WithFields(logging.CallFields(m.name, key.Digest(), true)).Debug("cache hit")
		return result, nil
	}

	result, err := m.fn(ctx, args)
	if err != nil {
		m.logger.WithFields(logging.CallFields(m.name, key.Digest(), false)).
			WithError(err).Debug("call failed, result not cached")
		return zero, err
	}

	data, err := Encode(result)
	if err != nil {
		return zero, fmt.Errorf("encode result: %w", err)
	}
	if err := m.store.Put(string(key), data); err != nil {
		return zero, fmt.Errorf("persist result %s: %w", key.Digest(), err)
	}

	m.logger.WithFields(logging.CallFields(m.name, key.Digest(), false)).Debug("cache miss stored")
	return result, nil
}

// Func 返回与被包装函数同签名的函数值。
func (m *Memoizer[A, R]) Func() Func[A, R] {
	return m.Call
}

// Contains 判断 args 对应的结果是否已缓存。
func (m *Memoizer[A, R]) Contains(args A) (bool, error) {
	key, err := KeyOf(args)
	if err != nil {
		return false, err
	}
	return m.store.Contains(string(key)), nil
}

// Store 暴露底层 Store，供调用方显式关闭或检查。
func (m *Memoizer[A, R]) Store() *cache.Store {
	return m.store
}

// Close 关闭底层 Store。
func (m *Memoizer[A, R]) Close() error {
	return m.store.Close()
}

func funcName(fn any) string {
	if f := runtime.FuncForPC(reflect.ValueOf(fn).Pointer()); f != nil {
		return f.Name()
	}
	return "anonymous"
}
