package cache

import (
	"fmt"
	"sort"

	"github.com/tinylib/msgp/msgp"
)

// encodeImage 将完整映射序列化为 MessagePack map，key 排序保证同一映射产出相同字节。
func encodeImage(entries map[string][]byte) []byte {
	keys := sortedKeys(entries)

	size := msgp.MapHeaderSize
	for _, k := range keys {
		size += msgp.BytesPrefixSize + len(k) + msgp.BytesPrefixSize + len(entries[k])
	}

	buf := make([]byte, 0, size)
	buf = msgp.AppendMapHeader(buf, uint32(len(keys)))
	for _, k := range keys {
		buf = msgp.AppendBytes(buf, []byte(k))
		buf = msgp.AppendBytes(buf, entries[k])
	}
	return buf
}

// decodeImage 解析磁盘镜像。空输入视为空映射；根节点不是 map、key/value 不是 bin
// 或 map 之后仍有多余字节，均视为损坏。
func decodeImage(data []byte) (map[string][]byte, error) {
	if len(data) == 0 {
		return make(map[string][]byte), nil
	}

	count, rest, err := msgp.ReadMapHeaderBytes(data)
	if err != nil {
		return nil, fmt.Errorf("read map header: %w", err)
	}

	// count 来自文件内容，不能直接用于预分配
	entries := make(map[string][]byte)
	for i := uint32(0); i < count; i++ {
		var key, value []byte
		key, rest, err = msgp.ReadBytesBytes(rest, nil)
		if err != nil {
			return nil, fmt.Errorf("read key #%d: %w", i, err)
		}
		value, rest, err = msgp.ReadBytesBytes(rest, nil)
		if err != nil {
			return nil, fmt.Errorf("read value #%d: %w", i, err)
		}
		if _, dup := entries[string(key)]; dup {
			return nil, fmt.Errorf("duplicate key #%d", i)
		}
		entries[string(key)] = value
	}

	if len(rest) > 0 {
		return nil, fmt.Errorf("trailing data after image: %d bytes", len(rest))
	}
	return entries, nil
}

func sortedKeys(entries map[string][]byte) []string {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
