// Package cache defines the single-file durable key-value store backing
// pmemo. A Store loads the whole file into memory at Open, serves lookups from
// the in-memory map, and on every Put rewrites the complete image from offset
// zero, truncates any leftover bytes, then fsyncs before returning. The image
// is a MessagePack map of bin keys to bin values; the store never interprets
// value bytes, higher layers (package memo) own the value encoding.
//
// An existing zero-byte file is treated as an empty cache. Any other content
// that does not decode as a complete image is reported as ErrCorrupt rather
// than silently discarded.
//
// A Store owns its file handle exclusively. Sharing one path between several
// Stores, in one process or across processes, is not supported.
package cache
