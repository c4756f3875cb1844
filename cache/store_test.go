package cache

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tinylib/msgp/msgp"
)

func TestStorePutAndGet(t *testing.T) {
	store := newTestStore(t)

	payload := []byte("payload")
	if err := store.Put("k1", payload); err != nil {
		t.Fatalf("put error: %v", err)
	}

	got, err := store.Get("k1")
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("cached payload mismatch: %s", string(got))
	}
}

func TestStoreGetMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, ok := store.Lookup("missing"); ok {
		t.Fatalf("lookup should miss")
	}
}

func TestStoreContainsAfterPut(t *testing.T) {
	store := newTestStore(t)
	if store.Contains("k") {
		t.Fatalf("empty store should not contain k")
	}
	if err := store.Put("k", []byte("v")); err != nil {
		t.Fatalf("put error: %v", err)
	}
	if !store.Contains("k") {
		t.Fatalf("store should contain k after put")
	}
}

func TestStoreReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entries.cache")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("open error: %v", err)
	}
	if err := store.Put("a", []byte("1")); err != nil {
		t.Fatalf("put error: %v", err)
	}
	if err := store.Put("b", []byte{}); err != nil {
		t.Fatalf("put error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close error: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer reopened.Close()

	if reopened.Len() != 2 {
		t.Fatalf("expected 2 entries after reopen, got %d", reopened.Len())
	}
	got, err := reopened.Get("a")
	if err != nil || string(got) != "1" {
		t.Fatalf("unexpected value for a: %q, %v", got, err)
	}
	got, err = reopened.Get("b")
	if err != nil || len(got) != 0 {
		t.Fatalf("unexpected value for b: %q, %v", got, err)
	}
}

func TestStoreCreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.cache")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open error: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("cache file should be created: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("fresh store should be empty")
	}
}

func TestStoreEmptyFileIsEmptyCache(t *testing.T) {
	path := writeCacheFile(t, nil)

	store, err := Open(path)
	if err != nil {
		t.Fatalf("empty file should open cleanly: %v", err)
	}
	defer store.Close()

	if store.Len() != 0 {
		t.Fatalf("empty file should yield empty cache, got %d entries", store.Len())
	}
}

func TestStoreRejectsCorruptFiles(t *testing.T) {
	valid := encodeImage(map[string][]byte{"k": []byte("v")})

	dup := msgp.AppendMapHeader(nil, 2)
	for i := 0; i < 2; i++ {
		dup = msgp.AppendBytes(dup, []byte("same"))
		dup = msgp.AppendBytes(dup, []byte("v"))
	}

	strKeys := msgp.AppendMapHeader(nil, 1)
	strKeys = msgp.AppendString(strKeys, "k")
	strKeys = msgp.AppendBytes(strKeys, []byte("v"))

	testCases := []struct {
		name string
		data []byte
	}{
		{"garbage", []byte("this is not a cache file")},
		{"non-map root", msgp.AppendInt64(nil, 42)},
		{"truncated", valid[:len(valid)-1]},
		{"trailing bytes", append(append([]byte{}, valid...), 0xc0)},
		{"duplicate keys", dup},
		{"string keys", strKeys},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeCacheFile(t, tc.data)
			store, err := Open(path)
			if err == nil {
				store.Close()
				t.Fatalf("expected ErrCorrupt")
			}
			if !errors.Is(err, ErrCorrupt) {
				t.Fatalf("expected ErrCorrupt, got %v", err)
			}
		})
	}
}

func TestStoreCorruptFileIsLeftUntouched(t *testing.T) {
	data := []byte("precious but unreadable")
	path := writeCacheFile(t, data)

	if _, err := Open(path); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
	onDisk, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if !bytes.Equal(onDisk, data) {
		t.Fatalf("corrupt file must not be rewritten")
	}
}

func TestStoreOpenDirectoryFails(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	if err == nil {
		store.Close()
		t.Fatalf("opening a directory should fail")
	}
	if errors.Is(err, ErrCorrupt) {
		t.Fatalf("directory error should be an I/O error, got %v", err)
	}
}

func TestStoreOpenRequiresPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatalf("empty path should fail")
	}
}

func TestStoreImageMatchesMappingAfterOverwrite(t *testing.T) {
	store := newTestStore(t)

	if err := store.Put("k", bytes.Repeat([]byte("x"), 512)); err != nil {
		t.Fatalf("put error: %v", err)
	}
	if err := store.Put("k", []byte("short")); err != nil {
		t.Fatalf("put error: %v", err)
	}

	onDisk, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	want := encodeImage(map[string][]byte{"k": []byte("short")})
	if !bytes.Equal(onDisk, want) {
		t.Fatalf("image should be rewritten and truncated: got %d bytes, want %d", len(onDisk), len(want))
	}

	size, err := store.Size()
	if err != nil {
		t.Fatalf("size error: %v", err)
	}
	if size != int64(len(want)) {
		t.Fatalf("size mismatch: %d", size)
	}
}

func TestStoreClosed(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "closed.cache"))
	if err != nil {
		t.Fatalf("open error: %v", err)
	}
	if err := store.Put("k", []byte("v")); err != nil {
		t.Fatalf("put error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close error: %v", err)
	}

	if err := store.Put("k2", []byte("v")); !errors.Is(err, ErrClosed) {
		t.Fatalf("put after close should fail with ErrClosed, got %v", err)
	}
	if _, err := store.Get("k"); !errors.Is(err, ErrClosed) {
		t.Fatalf("get after close should fail with ErrClosed, got %v", err)
	}
	if store.Contains("k") {
		t.Fatalf("closed store should not report entries")
	}
	if err := store.Close(); !errors.Is(err, ErrClosed) {
		t.Fatalf("double close should return ErrClosed, got %v", err)
	}
}

func TestStoreKeysSorted(t *testing.T) {
	store := newTestStore(t)
	for _, k := range []string{"c", "a", "b"} {
		if err := store.Put(k, []byte(k)); err != nil {
			t.Fatalf("put error: %v", err)
		}
	}
	keys := store.Keys()
	if len(keys) != 3 || keys[0] != "a" || keys[1] != "b" || keys[2] != "c" {
		t.Fatalf("keys should be sorted, got %v", keys)
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	store := newTestStore(t)
	value := []byte("abc")
	if err := store.Put("k", value); err != nil {
		t.Fatalf("put error: %v", err)
	}
	value[0] = 'z'

	got, _ := store.Get("k")
	if string(got) != "abc" {
		t.Fatalf("store must not alias caller buffers, got %s", got)
	}
	got[1] = 'z'
	again, _ := store.Get("k")
	if string(again) != "abc" {
		t.Fatalf("returned value must be a copy, got %s", again)
	}
}

// newTestStore returns a Store backed by a file in a temporary directory.
func TestStorePutRollsBackWhenFlushFails(t *testing.T) {
	store := newTestStore(t)
	if err := store.Put("k", []byte("old")); err != nil {
		t.Fatalf("put error: %v", err)
	}
	before, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("read image: %v", err)
	}

	readOnly, err := os.Open(store.Path())
	if err != nil {
		t.Fatalf("reopen read-only: %v", err)
	}
	writable := store.file
	store.file = readOnly

	if err := store.Put("k", []byte("new")); err == nil {
		t.Fatalf("put should fail on a read-only handle")
	}
	if err := store.Put("fresh", []byte("v")); err == nil {
		t.Fatalf("put should fail on a read-only handle")
	}

	store.file = writable
	_ = readOnly.Close()

	got, err := store.Get("k")
	if err != nil || string(got) != "old" {
		t.Fatalf("overwritten key should keep its previous value, got %q (%v)", got, err)
	}
	if store.Contains("fresh") {
		t.Fatalf("failed insert should be rolled back")
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 entry after rollback, got %d", store.Len())
	}
	after, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("read image: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Fatalf("image should be unchanged after failed writes")
	}

	if err := store.Put("fresh", []byte("v")); err != nil {
		t.Fatalf("store should stay usable after a failed flush: %v", err)
	}
	if !store.Contains("fresh") {
		t.Fatalf("store should contain fresh after a successful put")
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.cache"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// writeCacheFile writes raw bytes to a fresh cache path and returns it.
func writeCacheFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "raw.cache")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write cache file: %v", err)
	}
	return path
}
