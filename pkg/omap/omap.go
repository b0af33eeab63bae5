// Package omap 提供按插入顺序保存键的 map，用于保证 flow 解析与文档输出的确定性。
package omap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Map 是保持插入顺序的字符串键 map。
// 零值可直接使用；读方法对 nil 接收者安全。
type Map[V any] struct {
	keys []string
	vals map[string]V
}

// New 创建一个空的有序 map。
func New[V any]() *Map[V] {
	return &Map[V]{vals: make(map[string]V)}
}

// Set 写入 key；已存在的 key 保持原位置，新 key 追加到末尾。
func (m *Map[V]) Set(key string, val V) *Map[V] {
	if m.vals == nil {
		m.vals = make(map[string]V)
	}
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = val
	return m
}

func (m *Map[V]) Get(key string) (V, bool) {
	var zero V
	if m == nil || m.vals == nil {
		return zero, false
	}
	v, ok := m.vals[key]
	if !ok {
		return zero, false
	}
	return v, true
}

// Value 返回 key 对应的值，不存在时返回零值。
func (m *Map[V]) Value(key string) V {
	v, _ := m.Get(key)
	return v
}

func (m *Map[V]) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Keys 返回按插入顺序排列的 key 副本。
func (m *Map[V]) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

func (m *Map[V]) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

func (m *Map[V]) Delete(key string) {
	if m == nil || m.vals == nil {
		return
	}
	if _, ok := m.vals[key]; !ok {
		return
	}
	delete(m.vals, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Rename 原位重命名 key，保留其在顺序中的位置。
// oldKey 不存在或 newKey 已被占用时返回 false。
func (m *Map[V]) Rename(oldKey, newKey string) bool {
	if m == nil || m.vals == nil || oldKey == newKey {
		return false
	}
	v, ok := m.vals[oldKey]
	if !ok {
		return false
	}
	if _, taken := m.vals[newKey]; taken {
		return false
	}
	delete(m.vals, oldKey)
	m.vals[newKey] = v
	for i, k := range m.keys {
		if k == oldKey {
			m.keys[i] = newKey
			break
		}
	}
	return true
}

// Range 按插入顺序遍历，fn 返回 false 时停止。
func (m *Map[V]) Range(fn func(key string, val V) bool) {
	if m == nil {
		return
	}
	for _, k := range m.keys {
		if !fn(k, m.vals[k]) {
			return
		}
	}
}

// Clone 返回浅拷贝；值本身的深拷贝由调用方负责。
func (m *Map[V]) Clone() *Map[V] {
	if m == nil {
		return nil
	}
	out := &Map[V]{
		keys: append([]string(nil), m.keys...),
		vals: make(map[string]V, len(m.vals)),
	}
	for k, v := range m.vals {
		out.vals[k] = v
	}
	return out
}

// MarshalYAML 按插入顺序输出 mapping 节点。
func (m *Map[V]) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	if m == nil {
		return node, nil
	}
	for _, k := range m.keys {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}
		valNode, err := ToNode(m.vals[k])
		if err != nil {
			return nil, fmt.Errorf("omap: encode %q: %w", k, err)
		}
		node.Content = append(node.Content, keyNode, valNode)
	}
	return node, nil
}

// MarshalJSON 按插入顺序输出 JSON 对象。
func (m *Map[V]) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := marshalJSONValue(m.vals[k])
		if err != nil {
			return nil, fmt.Errorf("omap: encode %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalYAML 解析 mapping 节点并保持文档中的 key 顺序。
// V 为 any 时嵌套 mapping 解析为 *Map[any]，否则交给 yaml 按 V 解码。
func (m *Map[V]) UnmarshalYAML(node *yaml.Node) error {
	node = resolve(node)
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("omap: line %d: expected mapping", node.Line)
	}
	m.keys = nil
	m.vals = make(map[string]V, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		var val V
		if p, ok := any(&val).(*any); ok {
			v, err := FromNode(node.Content[i+1])
			if err != nil {
				return err
			}
			*p = v
		} else if err := node.Content[i+1].Decode(&val); err != nil {
			return fmt.Errorf("omap: decode %q: %w", key, err)
		}
		m.Set(key, val)
	}
	return nil
}

// FromNode 把 yaml 节点转换为通用值：mapping → *Map[any]，sequence → []any，scalar → 对应标量。
func FromNode(node *yaml.Node) (any, error) {
	node = resolve(node)
	switch node.Kind {
	case yaml.MappingNode:
		out := New[any]()
		if err := out.UnmarshalYAML(node); err != nil {
			return nil, err
		}
		return out, nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(node.Content))
		for _, c := range node.Content {
			v, err := FromNode(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.ScalarNode:
		var v any
		if err := node.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("omap: line %d: unsupported node kind %d", node.Line, node.Kind)
	}
}

// ToNode 把通用值编码为 yaml 节点，*Map 与切片按顺序递归展开。
func ToNode(v any) (*yaml.Node, error) {
	switch val := v.(type) {
	case *Map[any]:
		out, err := val.MarshalYAML()
		if err != nil {
			return nil, err
		}
		return out.(*yaml.Node), nil
	case []any:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range val {
			c, err := ToNode(item)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, c)
		}
		return node, nil
	case float64:
		if text, ok := integralFloat(val); ok {
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: text}, nil
		}
	}
	node := &yaml.Node{}
	if err := node.Encode(v); err != nil {
		return nil, err
	}
	return node, nil
}

// integralFloat 把整数值的 float64 格式化为带 ".0" 的文本，保证下游按浮点数读取。
func integralFloat(v float64) (string, bool) {
	if math.IsInf(v, 0) || math.IsNaN(v) || v != math.Trunc(v) || math.Abs(v) >= 1e15 {
		return "", false
	}
	return strconv.FormatFloat(v, 'f', 1, 64), true
}

// marshalJSONValue 与 ToNode 一致：整数值的 float64 输出为 "1.0"。
func marshalJSONValue(v any) ([]byte, error) {
	switch val := v.(type) {
	case float64:
		if text, ok := integralFloat(val); ok {
			return []byte(text), nil
		}
	case []any:
		if val == nil {
			return []byte("null"), nil
		}
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := marshalJSONValue(item)
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	}
	return json.Marshal(v)
}

func resolve(node *yaml.Node) *yaml.Node {
	for {
		switch {
		case node.Kind == yaml.DocumentNode && len(node.Content) > 0:
			node = node.Content[0]
		case node.Kind == yaml.AliasNode && node.Alias != nil:
			node = node.Alias
		default:
			return node
		}
	}
}
