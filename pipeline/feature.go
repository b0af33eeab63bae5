package pipeline

import (
	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/pkg/omap"
)

// JoinType 是 join 条件的类型。
type JoinType string

const (
	JoinInner JoinType = "inner" // 默认，不输出
	JoinLeft  JoinType = "left"
	JoinRight JoinType = "right"
	JoinFull  JoinType = "full"
)

// Condition 是一条 join 条件，输出为 {left: right}，非 inner 时附加 type。
type Condition struct {
	Left  string
	Right string
	Type  JoinType
}

// On 构造 inner join 条件。
func On(left, right string) Condition {
	return Condition{Left: left, Right: right}
}

// LeftOn 构造 left join 条件：左表行即使没有匹配也保留。
func LeftOn(left, right string) Condition {
	return Condition{Left: left, Right: right, Type: JoinLeft}
}

func (c Condition) Canonical() *omap.Map[any] {
	m := omap.New[any]().Set(c.Left, c.Right)
	if c.Type != "" && c.Type != JoinInner {
		m.Set("type", string(c.Type))
	}
	return m
}

// Feature 是若干表之间的 join。
// 输出顺序：name, from, select, condition, immediateFrom, filters；from/select 始终为列表。
type Feature struct {
	Name          string
	From          []string
	Select        []string
	Condition     []Condition
	ImmediateFrom []string
	Filters       []any
}

func (f *Feature) NodeName() string { return f.Name }
func (f *Feature) NodeKind() Kind   { return KindFeature }

func (f *Feature) Refs() []Ref {
	out := refs("from", f.From, KindSourceTable, KindFeature, KindAlgoTransform, KindService)
	return append(out, refs("immediateFrom", f.ImmediateFrom, KindSourceTable, KindFeature, KindAlgoTransform, KindService)...)
}

func (f *Feature) Validate() error {
	if f.Name == "" {
		return core.SchemaError(core.ModulePipeline, "feature: name must not be empty")
	}
	if len(f.From) == 0 {
		return core.SchemaError(core.ModulePipeline, "feature %s: from must not be empty", f.Name)
	}
	return nil
}

func (f *Feature) Canonical() *omap.Map[any] {
	m := omap.New[any]().Set("name", f.Name)
	putList(m, "from", f.From)
	putList(m, "select", f.Select)
	if len(f.Condition) > 0 {
		conds := make([]any, 0, len(f.Condition))
		for _, c := range f.Condition {
			conds = append(conds, c.Canonical())
		}
		m.Set("condition", conds)
	}
	putList(m, "immediateFrom", f.ImmediateFrom)
	putAny(m, "filters", f.Filters)
	return m
}

// FieldAction 是 AlgoTransform 中的一个字段计算步骤。
// 输出顺序：name|names, type|types, fields, input, func, algoColumns, options；
// names/types/fields/input 单元素时折叠为标量。
type FieldAction struct {
	Names       []string
	Types       []string
	Fields      []string
	Input       []string
	Func        string
	AlgoColumns []core.ColumnGroup
	Options     *omap.Map[any]
}

func (a *FieldAction) Validate() error {
	if len(a.Fields) == 0 && len(a.Input) == 0 {
		return core.SchemaError(core.ModulePipeline, "fieldAction %v: input or fields must not be empty", a.Names)
	}
	return nil
}

func (a *FieldAction) Canonical() *omap.Map[any] {
	m := omap.New[any]()
	putArity(m, "name", "names", a.Names)
	putArity(m, "type", "types", a.Types)
	putArity(m, "fields", "fields", a.Fields)
	putArity(m, "input", "input", a.Input)
	putString(m, "func", a.Func)
	if len(a.AlgoColumns) > 0 {
		groups := make([]any, 0, len(a.AlgoColumns))
		for _, g := range a.AlgoColumns {
			groups = append(groups, g.Canonical())
		}
		m.Set("algoColumns", groups)
	}
	putMap(m, "options", a.Options)
	return m
}

// AlgoTransform 是一组字段计算，输入为 feature 或其它 algoTransform。
// 输出顺序：name, taskName, feature, algoTransform, fieldActions, output, options；
// feature/algoTransform 单元素时折叠为标量，output 始终为列表。
type AlgoTransform struct {
	Name          string
	TaskName      string
	Feature       []string
	AlgoTransform []string
	FieldActions  []*FieldAction
	Output        []string
	Options       *omap.Map[any]
}

func (t *AlgoTransform) NodeName() string { return t.Name }
func (t *AlgoTransform) NodeKind() Kind   { return KindAlgoTransform }

func (t *AlgoTransform) Refs() []Ref {
	out := refs("feature", t.Feature, KindFeature)
	return append(out, refs("algoTransform", t.AlgoTransform, KindAlgoTransform)...)
}

func (t *AlgoTransform) Validate() error {
	if t.Name == "" {
		return core.SchemaError(core.ModulePipeline, "algoTransform: name must not be empty")
	}
	if len(t.Feature) == 0 && len(t.AlgoTransform) == 0 {
		return core.SchemaError(core.ModulePipeline, "algoTransform %s: feature or algoTransform must not be empty", t.Name)
	}
	for _, a := range t.FieldActions {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (t *AlgoTransform) Canonical() *omap.Map[any] {
	m := omap.New[any]().Set("name", t.Name)
	putString(m, "taskName", t.TaskName)
	putArity(m, "feature", "feature", t.Feature)
	putArity(m, "algoTransform", "algoTransform", t.AlgoTransform)
	if len(t.FieldActions) > 0 {
		actions := make([]any, 0, len(t.FieldActions))
		for _, a := range t.FieldActions {
			actions = append(actions, a.Canonical())
		}
		m.Set("fieldActions", actions)
	}
	putList(m, "output", t.Output)
	putMap(m, "options", t.Options)
	return m
}
