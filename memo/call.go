package memo

// Call 以位置参数 + 关键字参数的形式描述一次调用。
// Keyword 编码时按名称排序，因此关键字的书写顺序不影响 key。
type Call struct {
	Positional []any          `mapstructure:"args"`
	Keyword    map[string]any `mapstructure:"kwargs"`
}

// Args 以位置参数构造 Call。
func Args(positional ...any) Call {
	return Call{Positional: positional}
}

// With 返回追加了关键字参数的副本，原 Call 不被修改。
func (c Call) With(name string, value any) Call {
	kw := make(map[string]any, len(c.Keyword)+1)
	for k, v := range c.Keyword {
		kw[k] = v
	}
	kw[name] = value

	positional := make([]any, len(c.Positional))
	copy(positional, c.Positional)
	return Call{Positional: positional, Keyword: kw}
}

// Arg 返回第 i 个位置参数，越界时返回 nil。
func (c Call) Arg(i int) any {
	if i < 0 || i >= len(c.Positional) {
		return nil
	}
	return c.Positional[i]
}

// Kwarg 返回关键字参数及其是否存在。
func (c Call) Kwarg(name string) (any, bool) {
	v, ok := c.Keyword[name]
	return v, ok
}
