package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/rushteam/recflow/pkg/conv"
	"github.com/rushteam/recflow/pkg/omap"
)

// FeatureConfig 是 feature-service 分区：数据源、表、join 与字段计算。
type FeatureConfig struct {
	Sources        []*Source
	SourceTables   []*SourceTable
	Features       []*Feature
	AlgoTransforms []*AlgoTransform
}

func (c *FeatureConfig) Canonical() *omap.Map[any] {
	m := omap.New[any]()
	putAny(m, "source", canonicalAll(c.Sources))
	putAny(m, "sourceTable", canonicalAll(c.SourceTables))
	putAny(m, "feature", canonicalAll(c.Features))
	putAny(m, "algoTransform", canonicalAll(c.AlgoTransforms))
	return m
}

// RecommendConfig 是 recommend-service 分区：流量层、实验、场景与服务。
type RecommendConfig struct {
	Layers      []*Layer
	Experiments []*Experiment
	Scenes      []*Scene
	Services    []*Service
}

func (c *RecommendConfig) Canonical() *omap.Map[any] {
	m := omap.New[any]()
	putAny(m, "layers", canonicalAll(c.Layers))
	putAny(m, "experiments", canonicalAll(c.Experiments))
	putAny(m, "scenes", canonicalAll(c.Scenes))
	putAny(m, "services", canonicalAll(c.Services))
	return m
}

// Layer 按名称查找流量层。
func (c *RecommendConfig) Layer(name string) *Layer {
	return find(c.Layers, name)
}

// Experiment 按名称查找实验。
func (c *RecommendConfig) Experiment(name string) *Experiment {
	return find(c.Experiments, name)
}

// Service 按名称查找服务。
func (c *RecommendConfig) Service(name string) *Service {
	return find(c.Services, name)
}

// Scene 按名称查找场景。
func (c *RecommendConfig) Scene(name string) *Scene {
	return find(c.Scenes, name)
}

// Document 是完整的配置文档，包含 feature-service 与 recommend-service 两个分区。
type Document struct {
	FeatureService   *FeatureConfig
	RecommendService *RecommendConfig
}

func (d *Document) Canonical() *omap.Map[any] {
	return omap.New[any]().
		Set("feature-service", d.FeatureService.Canonical()).
		Set("recommend-service", d.RecommendService.Canonical())
}

// Format 是文档输出格式。
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Encode 按格式序列化文档（UTF-8，不做 Latin-1 重解释）。
func (d *Document) Encode(format Format) ([]byte, error) {
	canonical := d.Canonical()
	switch format {
	case FormatJSON:
		out, err := json.MarshalIndent(canonical, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("pipeline: encode json: %w", err)
		}
		return append(out, '\n'), nil
	case FormatYAML, "":
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(canonical); err != nil {
			return nil, fmt.Errorf("pipeline: encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("pipeline: encode yaml: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("pipeline: unknown format %q", format)
	}
}

// Render 序列化文档并做 Latin-1 重解释：UTF-8 字节逐字节解码为 ISO-8859-1 码点。
// 下游配置传输依赖这一编码，输出必须经过这一步。
func (d *Document) Render(format Format) (string, error) {
	out, err := d.Encode(format)
	if err != nil {
		return "", err
	}
	return conv.Latin1(string(out)), nil
}

type canonicaler interface {
	Canonical() *omap.Map[any]
}

func canonicalAll[T canonicaler](nodes []T) []any {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]any, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Canonical())
	}
	return out
}

func find[T Node](nodes []T, name string) T {
	var zero T
	for _, n := range nodes {
		if n.NodeName() == name {
			return n
		}
	}
	return zero
}
