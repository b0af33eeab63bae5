package pipeline

import (
	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/pkg/omap"
)

// TransformConfig 是链路上的一个后处理步骤，输出 name, option。
type TransformConfig struct {
	Name   string
	Option *omap.Map[any]
}

func (t *TransformConfig) Canonical() *omap.Map[any] {
	m := omap.New[any]().Set("name", t.Name)
	putMap(m, "option", t.Option)
	return m
}

// Chain 是一段执行链：then 顺序执行，when 并行执行后合并。
// 输出顺序：then, when, options, transforms；then/when 单元素时折叠为标量。
type Chain struct {
	Then       []string
	When       []string
	Options    *omap.Map[any]
	Transforms []*TransformConfig
}

func (c *Chain) Canonical() *omap.Map[any] {
	m := omap.New[any]()
	putArity(m, "then", "then", c.Then)
	putArity(m, "when", "when", c.When)
	putMap(m, "options", c.Options)
	if len(c.Transforms) > 0 {
		ts := make([]any, 0, len(c.Transforms))
		for _, t := range c.Transforms {
			ts = append(ts, t.Canonical())
		}
		m.Set("transforms", ts)
	}
	return m
}

func (c *Chain) refs(kinds ...Kind) []Ref {
	out := refs("then", c.Then, kinds...)
	return append(out, refs("when", c.When, kinds...)...)
}

func chainsCanonical(chains []*Chain) []any {
	out := make([]any, 0, len(chains))
	for _, c := range chains {
		out = append(out, c.Canonical())
	}
	return out
}

// Service 是一组可调用任务。
// 输出顺序：name, taskName, tasks, columns, options, preTransforms, transforms；tasks 始终为列表。
type Service struct {
	Name          string
	TaskName      string
	Tasks         []string
	Columns       core.Columns
	Options       *omap.Map[any]
	PreTransforms []*TransformConfig
	Transforms    []*TransformConfig
}

func (s *Service) NodeName() string { return s.Name }
func (s *Service) NodeKind() Kind   { return KindService }

func (s *Service) Refs() []Ref {
	return refs("tasks", s.Tasks, KindAlgoTransform, KindFeature)
}

func (s *Service) Validate() error {
	if s.Name == "" {
		return core.SchemaError(core.ModulePipeline, "service: name must not be empty")
	}
	return nil
}

func (s *Service) Canonical() *omap.Map[any] {
	m := omap.New[any]().Set("name", s.Name)
	putString(m, "taskName", s.TaskName)
	putList(m, "tasks", s.Tasks)
	putAny(m, "columns", s.Columns.Canonical())
	putMap(m, "options", s.Options)
	putAny(m, "preTransforms", transformsCanonical(s.PreTransforms))
	putAny(m, "transforms", transformsCanonical(s.Transforms))
	return m
}

func transformsCanonical(ts []*TransformConfig) []any {
	if len(ts) == 0 {
		return nil
	}
	out := make([]any, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.Canonical())
	}
	return out
}

// Experiment 是一个实验：服务链加后处理。输出顺序：name, taskName, options, chains。
type Experiment struct {
	Name     string
	TaskName string
	Options  *omap.Map[any]
	Chains   []*Chain
}

func (e *Experiment) NodeName() string { return e.Name }
func (e *Experiment) NodeKind() Kind   { return KindExperiment }

func (e *Experiment) Refs() []Ref {
	var out []Ref
	for _, c := range e.Chains {
		out = append(out, c.refs(KindService)...)
	}
	return out
}

func (e *Experiment) Validate() error {
	if e.Name == "" {
		return core.SchemaError(core.ModulePipeline, "experiment: name must not be empty")
	}
	return nil
}

func (e *Experiment) Canonical() *omap.Map[any] {
	m := omap.New[any]().Set("name", e.Name)
	putString(m, "taskName", e.TaskName)
	putMap(m, "options", e.Options)
	putAny(m, "chains", chainsCanonical(e.Chains))
	return m
}

// ExperimentItem 是流量层中的一个实验及其流量占比。
type ExperimentItem struct {
	Name  string
	Ratio float64
}

func (i ExperimentItem) Canonical() *omap.Map[any] {
	return omap.New[any]().Set("name", i.Name).Set("ratio", i.Ratio)
}

// Layer 是流量层：按 bucketizer 把请求分配给各实验。
// 输出顺序：name, bucketizer, taskName, options, experiments。
type Layer struct {
	Name        string
	Bucketizer  string
	TaskName    string
	Options     *omap.Map[any]
	Experiments []ExperimentItem
}

// EqualSplit 为每个实验分配相同的流量占比 1/N。
func EqualSplit(names []string) []ExperimentItem {
	out := make([]ExperimentItem, 0, len(names))
	for _, n := range names {
		out = append(out, ExperimentItem{Name: n, Ratio: 1.0 / float64(len(names))})
	}
	return out
}

func (l *Layer) NodeName() string { return l.Name }
func (l *Layer) NodeKind() Kind   { return KindLayer }

func (l *Layer) Refs() []Ref {
	out := make([]Ref, 0, len(l.Experiments))
	for _, e := range l.Experiments {
		out = append(out, Ref{Field: "experiments", Target: e.Name, Kinds: []Kind{KindExperiment}})
	}
	return out
}

func (l *Layer) Validate() error {
	if l.Name == "" {
		return core.SchemaError(core.ModulePipeline, "layer: name must not be empty")
	}
	return nil
}

func (l *Layer) Canonical() *omap.Map[any] {
	m := omap.New[any]().Set("name", l.Name)
	putString(m, "bucketizer", l.Bucketizer)
	putString(m, "taskName", l.TaskName)
	putMap(m, "options", l.Options)
	if len(l.Experiments) > 0 {
		items := make([]any, 0, len(l.Experiments))
		for _, e := range l.Experiments {
			items = append(items, e.Canonical())
		}
		m.Set("experiments", items)
	}
	return m
}

// RatioSum 返回所有实验流量占比之和。
func (l *Layer) RatioSum() float64 {
	var sum float64
	for _, e := range l.Experiments {
		sum += e.Ratio
	}
	return sum
}

// Scene 是对外的推荐场景，链式串联各流量层。
// 输出顺序：name, taskName, columns, options, chains。
type Scene struct {
	Name     string
	TaskName string
	Columns  core.Columns
	Options  *omap.Map[any]
	Chains   []*Chain
}

func (s *Scene) NodeName() string { return s.Name }
func (s *Scene) NodeKind() Kind   { return KindScene }

func (s *Scene) Refs() []Ref {
	var out []Ref
	for _, c := range s.Chains {
		out = append(out, c.refs(KindLayer)...)
	}
	return out
}

func (s *Scene) Validate() error {
	if s.Name == "" {
		return core.SchemaError(core.ModulePipeline, "scene: name must not be empty")
	}
	return nil
}

func (s *Scene) Canonical() *omap.Map[any] {
	m := omap.New[any]().Set("name", s.Name)
	putString(m, "taskName", s.TaskName)
	putAny(m, "columns", s.Columns.Canonical())
	putMap(m, "options", s.Options)
	putAny(m, "chains", chainsCanonical(s.Chains))
	return m
}
