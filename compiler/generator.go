// Package compiler 把规范化的 flow 编译为两份产物：
// 推荐引擎配置文档（feature-service + recommend-service）与容器拓扑。
//
// 编译是纯内存计算：同一个规范化 flow 多次编译得到逐字节相同的输出；
// 任何校验失败都会中止编译，不返回部分文档。
package compiler

import (
	"github.com/rs/zerolog"

	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/flow"
	"github.com/rushteam/recflow/pipeline"
	"github.com/rushteam/recflow/pkg/dsl"
	"github.com/rushteam/recflow/topology"
)

// 默认的保留条数
const (
	DefaultServiceReservation    = 200
	DefaultExperimentReservation = 100

	// fallbackRandomBound 仅在 bound 未规范化时使用
	fallbackRandomBound = 10
)

// Option 配置 Generator。
type Option func(*Generator)

// WithLogger 设置日志器，默认不输出。
func WithLogger(logger zerolog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// WithReservation 设置服务与实验的保留条数（maxReservation）。
func WithReservation(service, experiment int) Option {
	return func(g *Generator) {
		if service > 0 {
			g.serviceReservation = service
		}
		if experiment > 0 {
			g.experimentReservation = experiment
		}
	}
}

// WithFormat 设置配置文档的输出格式，默认 YAML。
func WithFormat(format pipeline.Format) Option {
	return func(g *Generator) {
		g.format = format
	}
}

// Generator 持有规范化后的 flow，构造后只读。
type Generator struct {
	flow   *flow.OnlineFlow
	logger zerolog.Logger
	format pipeline.Format

	serviceReservation    int
	experimentReservation int
}

// NewGenerator 规范化 flow 并执行其中的 CEL 校验规则。
func NewGenerator(f *flow.OnlineFlow, opts ...Option) (*Generator, error) {
	g := &Generator{
		logger:                zerolog.Nop(),
		format:                pipeline.FormatYAML,
		serviceReservation:    DefaultServiceReservation,
		experimentReservation: DefaultExperimentReservation,
	}
	for _, opt := range opts {
		opt(g)
	}
	normalized, err := flow.Normalize(f)
	if err != nil {
		return nil, err
	}
	if err := runChecks(normalized); err != nil {
		return nil, err
	}
	g.flow = normalized
	g.logger.Debug().
		Strs("services", normalized.Services.Keys()).
		Int("candidates", len(normalized.CandidateModels())).
		Int("rank_models", len(normalized.RankModels)).
		Msg("flow normalized")
	return g, nil
}

func runChecks(f *flow.OnlineFlow) error {
	if len(f.Checks) == 0 {
		return nil
	}
	vars, err := f.ToMap()
	if err != nil {
		return err
	}
	ev, err := dsl.NewEval(vars)
	if err != nil {
		return err
	}
	if failure, ok := ev.CheckAll(f.Checks); !ok {
		return core.SchemaError(core.ModuleCompiler, "compiler: flow check failed: %s", failure)
	}
	return nil
}

// Flow 返回规范化后的 flow。
func (g *Generator) Flow() *flow.OnlineFlow {
	return g.flow
}

// Compile 生成配置文档；每次调用都会重新构建全部节点。
func (g *Generator) Compile() (*pipeline.Document, error) {
	u := newUnit(g)
	steps := []func() error{
		u.registerSources,
		u.registerSourceTables,
		u.registerFeatures,
		u.registerUserProfile,
		u.registerRecall,
		u.registerRecallMerge,
		u.registerRank,
		u.registerRouting,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	doc, err := u.b.Build()
	if err != nil {
		return nil, err
	}
	g.logger.Info().
		Int("sources", len(doc.FeatureService.Sources)).
		Int("algo_transforms", len(doc.FeatureService.AlgoTransforms)).
		Strs("recall", u.recallExperiments).
		Strs("rank", u.rankExperiments).
		Msg("pipeline compiled")
	return doc, nil
}

// ServerConfig 编译并输出配置文档文本（已做 Latin-1 重解释）。
func (g *Generator) ServerConfig() (string, error) {
	doc, err := g.Compile()
	if err != nil {
		return "", err
	}
	return doc.Render(g.format)
}

// Topology 生成容器拓扑。
func (g *Generator) Topology() (*topology.Document, error) {
	return topology.Build(g.flow)
}

// DockerCompose 输出 docker-compose 文本。
func (g *Generator) DockerCompose() (string, error) {
	doc, err := g.Topology()
	if err != nil {
		return "", err
	}
	return doc.Render()
}
