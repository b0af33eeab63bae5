package core

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/rushteam/recflow/pkg/omap"
)

// Column 是一个字段声明，序列化为单 key 映射 `name: type`。
// Type 为标量类型名（str/int/double/...）或有序的嵌套结构（*omap.Map[any]），
// 例如 {list_struct: {_1: str, _2: double}}。
type Column struct {
	Name string
	Type any
}

// Col 构造标量类型字段
func Col(name string, typ any) Column {
	return Column{Name: name, Type: typ}
}

// TypeName 返回标量类型名；嵌套类型返回空串。
func (c Column) TypeName() string {
	s, _ := c.Type.(string)
	return s
}

// Canonical 返回 `name: type` 单 key 映射。
func (c Column) Canonical() *omap.Map[any] {
	return omap.New[any]().Set(c.Name, c.Type)
}

func (c Column) MarshalYAML() (interface{}, error) {
	return c.Canonical().MarshalYAML()
}

func (c Column) MarshalJSON() ([]byte, error) {
	return c.Canonical().MarshalJSON()
}

func (c *Column) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return fmt.Errorf("line %d: column must be a single-key mapping", node.Line)
	}
	typ, err := omap.FromNode(node.Content[1])
	if err != nil {
		return err
	}
	c.Name = node.Content[0].Value
	c.Type = typ
	return nil
}

// Columns 是有序字段列表。
type Columns []Column

// Names 按声明顺序返回字段名。
func (cs Columns) Names() []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Name)
	}
	return out
}

// Lookup 返回名为 name 的字段。
func (cs Columns) Lookup(name string) (Column, bool) {
	if name == "" {
		return Column{}, false
	}
	for _, c := range cs {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Has 检查是否声明了字段 name。
func (cs Columns) Has(name string) bool {
	_, ok := cs.Lookup(name)
	return ok
}

// TypeOf 返回字段的标量类型名，未声明或为嵌套类型时返回 def。
func (cs Columns) TypeOf(name, def string) string {
	if c, ok := cs.Lookup(name); ok {
		if s := c.TypeName(); s != "" {
			return s
		}
	}
	return def
}

// Clone 返回副本；嵌套类型按引用共享，嵌套结构在 flow 中视为只读。
func (cs Columns) Clone() Columns {
	if cs == nil {
		return nil
	}
	return append(Columns(nil), cs...)
}

// Canonical 返回 [{name: type}, ...] 形式的列表。
func (cs Columns) Canonical() []any {
	out := make([]any, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Canonical())
	}
	return out
}

// ColumnGroup 是排序模型的特征分组，序列化为 `group: [fields...]`。
type ColumnGroup struct {
	Name   string
	Fields []string
}

func (g ColumnGroup) Canonical() *omap.Map[any] {
	fields := make([]any, 0, len(g.Fields))
	for _, f := range g.Fields {
		fields = append(fields, f)
	}
	return omap.New[any]().Set(g.Name, fields)
}

func (g ColumnGroup) MarshalYAML() (interface{}, error) {
	return g.Canonical().MarshalYAML()
}

func (g ColumnGroup) MarshalJSON() ([]byte, error) {
	return g.Canonical().MarshalJSON()
}

func (g *ColumnGroup) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return fmt.Errorf("line %d: column group must be a single-key mapping", node.Line)
	}
	var fields []string
	if err := node.Content[1].Decode(&fields); err != nil {
		return fmt.Errorf("line %d: column group %q: %w", node.Line, node.Content[0].Value, err)
	}
	g.Name = node.Content[0].Value
	g.Fields = fields
	return nil
}
