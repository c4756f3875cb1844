// Package memo wraps a function with durable memoization. Results are
// persisted through package cache to a single file keyed by the call's
// arguments, so repeated calls with equal arguments, including calls made by
// a later process over the same file, return the stored result without
// invoking the function again.
//
// Arguments are a single value of type A, usually a small parameter struct.
// The cache key is the canonical MessagePack encoding of that value: struct
// fields in declaration order, map entries sorted by key, integers encoded by
// value regardless of their Go kind. Call models positional and keyword
// arguments for callers that want that shape; keyword order never affects
// the key.
//
//	triple := func(ctx context.Context, n int) (int, error) { return 3 * n, nil }
//	m, err := memo.Wrap(triple, "triple.cache")
//	if err != nil {
//		return err
//	}
//	defer m.Close()
//	v, err := m.Call(ctx, 3) // computed, stored
//	v, err = m.Call(ctx, 3)  // read back from the cache file
//
// A failed call is never stored. The wrapped function must be deterministic
// in its arguments; nothing in this package can detect otherwise.
//
// A Memoizer is safe to call from several goroutines of one process, but
// concurrent misses on the same key may invoke the function more than once.
// Several processes writing the same cache file is not supported.
package memo
