package cache

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/pmemo/internal/logging"
)

// Store 是单文件持久化的 key/value 映射：内存中保存完整映射，每次 Put 全量重写磁盘镜像。
type Store struct {
	id     string
	path   string
	logger *logrus.Logger

	mu      sync.Mutex
	file    *os.File
	entries map[string][]byte
	closed  bool
}

// Open 打开或创建 path 处的缓存文件并加载已有内容。
// 空文件视为空缓存；其余无法解析的内容返回 ErrCorrupt。
func Open(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, errors.New("cache path required")
	}
	o := buildOptions(opts)

	file, created, err := openFile(path)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(file)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("read cache file: %w", err)
	}

	entries, err := decodeImage(data)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}

	s := &Store{
		id:      uuid.NewString(),
		path:    path,
		logger:  o.logger,
		file:    file,
		entries: entries,
	}

	fields := logging.StoreFields("cache_open", s.id, path)
	fields["created"] = created
	fields["entries"] = len(entries)
	fields["size_bytes"] = len(data)
	s.logger.WithFields(fields).Debug("cache loaded")

	return s, nil
}

// openFile 优先以读写方式打开已有文件（不截断），不存在时再创建。
func openFile(path string) (*os.File, bool, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err == nil {
		return file, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, fmt.Errorf("open cache file: %w", err)
	}

	file, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, false, fmt.Errorf("create cache file: %w", err)
	}
	return file, true, nil
}

// Contains 判断 key 是否存在，无副作用。已关闭的 Store 一律返回 false。
func (s *Store) Contains(key string) bool {
	_, ok := s.Lookup(key)
	return ok
}

// Get 返回 key 对应的值；不存在时返回 ErrNotFound。
func (s *Store) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	value, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBytes(value), nil
}

// Lookup 一次查询同时返回值与命中状态，避免 Contains + Get 两次查找。
func (s *Store) Lookup(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, false
	}
	value, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	return cloneBytes(value), true
}

// Put 写入（或覆盖）key，随后从文件起始处重写完整镜像并 fsync。
// 写盘失败时内存映射回滚到写入前的状态。
func (s *Store) Put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	prev, existed := s.entries[key]
	s.entries[key] = cloneBytes(value)

	written, err := s.flushLocked()
	if err != nil {
		if existed {
			s.entries[key] = prev
		} else {
			delete(s.entries, key)
		}
		s.logger.WithFields(logging.StoreFields("cache_put", s.id, s.path)).
			WithError(err).Warn("cache flush failed")
		return err
	}

	fields := logging.StoreFields("cache_put", s.id, s.path)
	fields["entries"] = len(s.entries)
	fields["size_bytes"] = written
	fields["overwrite"] = existed
	s.logger.WithFields(fields).Debug("cache persisted")
	return nil
}

// flushLocked 序列化完整映射覆盖写入文件，截断残留字节并落盘。调用方需持有 mu。
func (s *Store) flushLocked() (int, error) {
	image := encodeImage(s.entries)

	n, err := s.file.WriteAt(image, 0)
	if err != nil {
		return n, fmt.Errorf("write cache file: %w", err)
	}
	if err := s.file.Truncate(int64(len(image))); err != nil {
		return n, fmt.Errorf("truncate cache file: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return n, fmt.Errorf("sync cache file: %w", err)
	}
	return n, nil
}

// Close 释放文件句柄，之后所有操作均无效。重复关闭返回 ErrClosed。
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.closed = true
	s.entries = nil

	err := s.file.Close()
	s.logger.WithFields(logging.StoreFields("cache_close", s.id, s.path)).Debug("cache closed")
	return err
}

// Len 返回当前条目数。
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Keys 返回排序后的全部 key。
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.entries)
}

// Path 返回缓存文件路径。
func (s *Store) Path() string {
	return s.path
}

// Size 返回磁盘镜像的字节数。
func (s *Store) Size() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	info, err := s.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
