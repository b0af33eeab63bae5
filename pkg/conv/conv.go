// Package conv 提供编码转换与 slice 转换等小工具，用于简化各模块中的重复逻辑。
package conv

import (
	"golang.org/x/text/encoding/charmap"
)

// Latin1 把 UTF-8 文本的字节按 ISO-8859-1 逐字节重新解码：每个字节成为一个码点。
// 下游配置传输按单字节读取文档，编译产物在离开编译器前必须经过这一步。
// 纯 ASCII 文本保持不变。
func Latin1(s string) string {
	out, err := charmap.ISO8859_1.NewDecoder().String(s)
	if err != nil {
		// ISO-8859-1 覆盖全部 256 个字节值，解码不会失败
		return s
	}
	return out
}

// FromLatin1 是 Latin1 的逆过程：把码点 ≤ 0xFF 的文本还原为原始字节。
func FromLatin1(s string) (string, error) {
	return charmap.ISO8859_1.NewEncoder().String(s)
}

// ConvertSlice 将 []T 按 convert 转为 []U，convert 返回 false 的元素被跳过。
func ConvertSlice[T, U any](s []T, convert func(T) (U, bool)) []U {
	if s == nil {
		return nil
	}
	out := make([]U, 0, len(s))
	for _, v := range s {
		if u, ok := convert(v); ok {
			out = append(out, u)
		}
	}
	return out
}

// Anys 将 []T 转为 []any，用于构造通用的文档节点。
func Anys[T any](s []T) []any {
	return ConvertSlice(s, func(v T) (any, bool) { return v, true })
}

// Prefixed 为每个元素加前缀，例如 Prefixed("t.", []string{"a"}) → ["t.a"]。
func Prefixed(prefix string, s []string) []string {
	return ConvertSlice(s, func(v string) (string, bool) { return prefix + v, true })
}
