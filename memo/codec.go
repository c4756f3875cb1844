package memo

import (
	"crypto/sha256"
	"encoding"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/tinylib/msgp/msgp"
)

// ErrUnsupportedType 表示参数或返回值包含无法持久化的类型（chan、func、complex、
// 含未导出字段且未实现 Text/BinaryMarshaler 的结构体等）。
var ErrUnsupportedType = errors.New("memo: unsupported type")

// tagName 与 mapstructure 解码共用，保证编码后的字段名可被解回。
const tagName = "mapstructure"

var (
	timeType            = reflect.TypeOf(time.Time{})
	textMarshalerType   = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	binaryMarshalerType = reflect.TypeOf((*encoding.BinaryMarshaler)(nil)).Elem()
)

// Key 是一次调用参数的规范编码，可直接作为 map key 比较。
type Key string

// Digest 返回 key 的短 sha256 摘要，用于日志与 CLI 展示。
func (k Key) Digest() string {
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:6])
}

// KeyOf 计算参数值的缓存 key。值相等的参数（map 顺序无关）得到相同的 key。
func KeyOf(args any) (Key, error) {
	b, err := Encode(args)
	if err != nil {
		return "", err
	}
	return Key(b), nil
}

// Encode 将任意受支持的值编码为 MessagePack。map 按 key 排序，编码结果稳定。
// 实现 encoding.TextMarshaler 的类型编码为字符串，实现 encoding.BinaryMarshaler 的编码为 bin。
func Encode(v any) ([]byte, error) {
	return appendValue(nil, reflect.ValueOf(v))
}

// Decode 将 Encode 的输出解回 R。数值会按 R 的字段类型转换，R 为 any 时得到
// int64/float64/string/[]byte/[]any/map[string]any/time.Time 组成的树。
func Decode[R any](data []byte) (R, error) {
	var out R

	tree, rest, err := msgp.ReadIntfBytes(data)
	if err != nil {
		return out, fmt.Errorf("read value: %w", err)
	}
	if len(rest) > 0 {
		return out, fmt.Errorf("read value: %d trailing bytes", len(rest))
	}
	if tree == nil {
		return out, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     &out,
		TagName:    tagName,
		DecodeHook: unmarshalerHook(),
	})
	if err != nil {
		return out, err
	}
	if err := decoder.Decode(tree); err != nil {
		return out, fmt.Errorf("decode into %T: %w", out, err)
	}
	return out, nil
}

func appendValue(b []byte, v reflect.Value) ([]byte, error) {
	if !v.IsValid() {
		return msgp.AppendNil(b), nil
	}
	if k := v.Kind(); k == reflect.Interface || k == reflect.Pointer {
		if v.IsNil() {
			return msgp.AppendNil(b), nil
		}
		return appendValue(b, v.Elem())
	}
	if v.Type() == timeType {
		return msgp.AppendTime(b, v.Interface().(time.Time)), nil
	}

	switch m := marshalerOf(v).(type) {
	case encoding.TextMarshaler:
		text, err := m.MarshalText()
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", v.Type(), err)
		}
		return msgp.AppendStringFromBytes(b, text), nil
	case encoding.BinaryMarshaler:
		raw, err := m.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", v.Type(), err)
		}
		return msgp.AppendBytes(b, raw), nil
	}

	switch v.Kind() {
	case reflect.Bool:
		return msgp.AppendBool(b, v.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return msgp.AppendInt64(b, v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		// 同值的有符号/无符号整数必须得到相同编码
		if u := v.Uint(); u <= math.MaxInt64 {
			return msgp.AppendInt64(b, int64(u)), nil
		}
		return msgp.AppendUint64(b, v.Uint()), nil
	case reflect.Float32:
		return msgp.AppendFloat32(b, float32(v.Float())), nil
	case reflect.Float64:
		return msgp.AppendFloat64(b, v.Float()), nil
	case reflect.String:
		return msgp.AppendString(b, v.String()), nil
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return msgp.AppendBytes(b, v.Bytes()), nil
		}
		return appendSequence(b, v)
	case reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			raw := make([]byte, v.Len())
			for i := range raw {
				raw[i] = byte(v.Index(i).Uint())
			}
			return msgp.AppendBytes(b, raw), nil
		}
		return appendSequence(b, v)
	case reflect.Map:
		return appendMap(b, v)
	case reflect.Struct:
		return appendStruct(b, v)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, v.Type())
	}
}

func appendSequence(b []byte, v reflect.Value) ([]byte, error) {
	b = msgp.AppendArrayHeader(b, uint32(v.Len()))
	var err error
	for i := 0; i < v.Len(); i++ {
		if b, err = appendValue(b, v.Index(i)); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func appendMap(b []byte, v reflect.Value) ([]byte, error) {
	if v.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("%w: map key %s", ErrUnsupportedType, v.Type().Key())
	}

	keys := v.MapKeys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	b = msgp.AppendMapHeader(b, uint32(len(keys)))
	var err error
	for _, k := range keys {
		b = msgp.AppendString(b, k.String())
		if b, err = appendValue(b, v.MapIndex(k)); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func appendStruct(b []byte, v reflect.Value) ([]byte, error) {
	fields, err := structFields(v.Type())
	if err != nil {
		return nil, err
	}

	b = msgp.AppendMapHeader(b, uint32(len(fields)))
	for _, f := range fields {
		b = msgp.AppendString(b, f.name)
		if b, err = appendValue(b, v.Field(f.index)); err != nil {
			return nil, err
		}
	}
	return b, nil
}

type structField struct {
	name  string
	index int
}

// structFields 返回导出字段（声明顺序），字段名遵循 mapstructure tag，"-" 表示跳过。
// 未导出字段无法被编码，若不跳过会让不同的值得到相同的编码，因此直接报错。
func structFields(t reflect.Type) ([]structField, error) {
	fields := make([]structField, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := strings.SplitN(f.Tag.Get(tagName), ",", 2)[0]
		if tag == "-" || f.Name == "_" {
			continue
		}
		if !f.IsExported() {
			return nil, fmt.Errorf("%w: %s has unexported field %s", ErrUnsupportedType, t, f.Name)
		}
		name := f.Name
		if tag != "" {
			name = tag
		}
		fields = append(fields, structField{name: name, index: i})
	}
	return fields, nil
}

// marshalerOf 返回 v 的 Text/BinaryMarshaler 实现；方法定义在指针接收者上时取地址（不可寻址则复制一份）。
func marshalerOf(v reflect.Value) any {
	t := v.Type()
	if t.Implements(textMarshalerType) || t.Implements(binaryMarshalerType) {
		return v.Interface()
	}
	pt := reflect.PointerTo(t)
	if !pt.Implements(textMarshalerType) && !pt.Implements(binaryMarshalerType) {
		return nil
	}
	if v.CanAddr() {
		return v.Addr().Interface()
	}
	p := reflect.New(t)
	p.Elem().Set(v)
	return p.Interface()
}

// unmarshalerHook 是 Encode 中 marshaler 分支的逆过程：字符串交给 TextUnmarshaler，
// bin 交给 BinaryUnmarshaler，其余输入原样交回 mapstructure。
func unmarshalerHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		target := reflect.New(to)
		switch v := data.(type) {
		case string:
			u, ok := target.Interface().(encoding.TextUnmarshaler)
			if !ok {
				return data, nil
			}
			if err := u.UnmarshalText([]byte(v)); err != nil {
				return nil, fmt.Errorf("unmarshal %s: %w", to, err)
			}
		case []byte:
			u, ok := target.Interface().(encoding.BinaryUnmarshaler)
			if !ok {
				return data, nil
			}
			if err := u.UnmarshalBinary(v); err != nil {
				return nil, fmt.Errorf("unmarshal %s: %w", to, err)
			}
		default:
			return data, nil
		}
		return target.Elem().Interface(), nil
	}
}
