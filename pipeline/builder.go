package pipeline

import (
	"fmt"

	"github.com/rushteam/recflow/core"
)

// Builder 是配置文档的符号表：登记每个节点名称（全文档唯一），
// Build 时检查所有名称引用都能解析到允许类型的节点。
//
// Builder 在第一次出错后保持错误状态，后续 Add 均为空操作，
// 调用方可连续添加节点，最后统一检查 Build 的返回值。
type Builder struct {
	names map[string]Kind
	order []Node
	doc   *Document
	err   error
}

// NewBuilder 创建空的文档构建器。
func NewBuilder() *Builder {
	return &Builder{
		names: make(map[string]Kind),
		doc: &Document{
			FeatureService:   &FeatureConfig{},
			RecommendService: &RecommendConfig{},
		},
	}
}

// Add 校验并登记节点；名称重复返回 SCHEMA_VALIDATION 错误。
func (b *Builder) Add(node Node) error {
	if b.err != nil {
		return b.err
	}
	if err := node.Validate(); err != nil {
		b.err = err
		return err
	}
	name := node.NodeName()
	if kind, ok := b.names[name]; ok {
		b.err = core.SchemaError(core.ModulePipeline, "pipeline: duplicate node name %q (%s and %s)", name, kind, node.NodeKind())
		return b.err
	}
	switch n := node.(type) {
	case *Source:
		b.doc.FeatureService.Sources = append(b.doc.FeatureService.Sources, n)
	case *SourceTable:
		b.doc.FeatureService.SourceTables = append(b.doc.FeatureService.SourceTables, n)
	case *Feature:
		b.doc.FeatureService.Features = append(b.doc.FeatureService.Features, n)
	case *AlgoTransform:
		b.doc.FeatureService.AlgoTransforms = append(b.doc.FeatureService.AlgoTransforms, n)
	case *Service:
		b.doc.RecommendService.Services = append(b.doc.RecommendService.Services, n)
	case *Experiment:
		b.doc.RecommendService.Experiments = append(b.doc.RecommendService.Experiments, n)
	case *Layer:
		b.doc.RecommendService.Layers = append(b.doc.RecommendService.Layers, n)
	case *Scene:
		b.doc.RecommendService.Scenes = append(b.doc.RecommendService.Scenes, n)
	default:
		b.err = core.NewDomainError(core.ModulePipeline, core.ErrorCodeNotSupported, fmt.Sprintf("pipeline: unsupported node type %T", node))
		return b.err
	}
	b.names[name] = node.NodeKind()
	b.order = append(b.order, node)
	return nil
}

// Has 检查名称是否已登记。
func (b *Builder) Has(name string) bool {
	_, ok := b.names[name]
	return ok
}

// KindOf 返回已登记名称的节点类型。
func (b *Builder) KindOf(name string) (Kind, bool) {
	k, ok := b.names[name]
	return k, ok
}

// Err 返回构建过程中的第一个错误。
func (b *Builder) Err() error {
	return b.err
}

// Build 检查全部名称引用并返回文档；悬空引用或类型不符返回 REFERENTIAL 错误。
// 出错时不返回任何部分文档。
func (b *Builder) Build() (*Document, error) {
	if b.err != nil {
		return nil, b.err
	}
	for _, node := range b.order {
		for _, ref := range node.Refs() {
			kind, ok := b.names[ref.Target]
			if !ok {
				return nil, core.ReferentialError(core.ModulePipeline, "pipeline: %s %q %s references unknown node %q",
					node.NodeKind(), node.NodeName(), ref.Field, ref.Target)
			}
			if !kindIn(kind, ref.Kinds) {
				return nil, core.ReferentialError(core.ModulePipeline, "pipeline: %s %q %s references %s %q, want one of %v",
					node.NodeKind(), node.NodeName(), ref.Field, kind, ref.Target, ref.Kinds)
			}
		}
	}
	return b.doc, nil
}

func kindIn(k Kind, kinds []Kind) bool {
	for _, want := range kinds {
		if k == want {
			return true
		}
	}
	return false
}
