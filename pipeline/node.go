// Package pipeline 定义推荐引擎配置文档的节点模型。
//
// 节点之间只通过名称引用（例如 Feature.From 引用 SourceTable 名），
// 引用完整性由 Builder 在生成文档时检查。每个节点通过 Canonical 输出稀疏的有序映射：
// 空集合与未设置的可选字段不输出，名称/类型等单元素列表折叠为标量。
package pipeline

import (
	"github.com/rushteam/recflow/pkg/conv"
	"github.com/rushteam/recflow/pkg/omap"
)

// Kind 标记节点类型，同时对应文档中的分区名。
type Kind string

const (
	KindSource        Kind = "source"        // 数据源连接
	KindSourceTable   Kind = "sourceTable"   // 数据源上的表视图
	KindFeature       Kind = "feature"       // 表之间的 join
	KindAlgoTransform Kind = "algoTransform" // 字段计算
	KindService       Kind = "services"      // 可调用的任务组
	KindExperiment    Kind = "experiments"   // 实验：服务链 + 后处理
	KindLayer         Kind = "layers"        // 流量层
	KindScene         Kind = "scenes"        // 对外场景
)

// Node 是配置文档中的一个具名节点。
type Node interface {
	NodeName() string
	NodeKind() Kind

	// Canonical 返回节点的规范输出形式（key 顺序固定）。
	Canonical() *omap.Map[any]

	// Validate 检查节点自身的必填字段。
	Validate() error

	// Refs 返回该节点对其它节点的名称引用。
	Refs() []Ref
}

// Ref 是一条名称引用：Field 为引用所在字段，Target 为被引用名称，
// Kinds 为允许的目标节点类型。
type Ref struct {
	Field  string
	Target string
	Kinds  []Kind
}

func refs(field string, targets []string, kinds ...Kind) []Ref {
	out := make([]Ref, 0, len(targets))
	for _, t := range targets {
		out = append(out, Ref{Field: field, Target: t, Kinds: kinds})
	}
	return out
}

// putArity 按元素个数输出：单元素时写 single 标量，多元素时写 plural 列表，空时不输出。
func putArity(m *omap.Map[any], single, plural string, vals []string) {
	switch len(vals) {
	case 0:
	case 1:
		m.Set(single, vals[0])
	default:
		m.Set(plural, conv.Anys(vals))
	}
}

// putList 非空时输出列表（不折叠）。
func putList(m *omap.Map[any], key string, vals []string) {
	if len(vals) > 0 {
		m.Set(key, conv.Anys(vals))
	}
}

func putString(m *omap.Map[any], key, val string) {
	if val != "" {
		m.Set(key, val)
	}
}

func putMap(m *omap.Map[any], key string, val *omap.Map[any]) {
	if val.Len() > 0 {
		m.Set(key, val)
	}
}

func putAny(m *omap.Map[any], key string, vals []any) {
	if len(vals) > 0 {
		m.Set(key, vals)
	}
}

// Options 以 key, value 交替的参数构造有序选项表，便于内联书写。
func Options(kv ...any) *omap.Map[any] {
	m := omap.New[any]()
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		m.Set(key, kv[i+1])
	}
	return m
}
