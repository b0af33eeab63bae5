package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/pkg/conv"
)

func mustSource(t *testing.T, name string) *Source {
	t.Helper()
	s, err := NewSource(name, SourceRequest, nil)
	require.NoError(t, err)
	return s
}

func smallDocument(t *testing.T) *Builder {
	t.Helper()
	b := NewBuilder()
	require.NoError(t, b.Add(mustSource(t, "request")))
	require.NoError(t, b.Add(&SourceTable{Name: "source_table_request", Source: "request", Columns: core.Columns{core.Col("user_id", "str")}}))
	require.NoError(t, b.Add(&Feature{Name: "feature_request", From: []string{"source_table_request"}, Select: []string{"source_table_request.user_id"}}))
	require.NoError(t, b.Add(&AlgoTransform{
		Name: "algotransform_x", Feature: []string{"feature_request"},
		FieldActions: []*FieldAction{{Names: []string{"user_id"}, Types: []string{"str"}, Fields: []string{"user_id"}, Func: "typeTransform"}},
		Output:       []string{"user_id"},
	}))
	require.NoError(t, b.Add(&Service{Name: "recall_x", Tasks: []string{"algotransform_x"}}))
	require.NoError(t, b.Add(&Experiment{Name: "recall.x", Chains: []*Chain{{Then: []string{"recall_x"}}}}))
	require.NoError(t, b.Add(&Layer{Name: "recall", Bucketizer: "random", Experiments: EqualSplit([]string{"recall.x"})}))
	require.NoError(t, b.Add(&Scene{Name: "guess-you-like", Chains: []*Chain{{Then: []string{"recall"}}}}))
	return b
}

func TestBuilder_Build(t *testing.T) {
	doc, err := smallDocument(t).Build()
	require.NoError(t, err)

	assert.Len(t, doc.FeatureService.Sources, 1)
	assert.Len(t, doc.FeatureService.SourceTables, 1)
	assert.Len(t, doc.FeatureService.Features, 1)
	assert.Len(t, doc.FeatureService.AlgoTransforms, 1)
	assert.NotNil(t, doc.RecommendService.Service("recall_x"))
	assert.NotNil(t, doc.RecommendService.Experiment("recall.x"))
	assert.NotNil(t, doc.RecommendService.Layer("recall"))
	assert.NotNil(t, doc.RecommendService.Scene("guess-you-like"))
	assert.Nil(t, doc.RecommendService.Layer("rank"))

	assert.Equal(t, []string{"feature-service", "recommend-service"}, doc.Canonical().Keys())
	assert.Equal(t, []string{"source", "sourceTable", "feature", "algoTransform"}, doc.FeatureService.Canonical().Keys())
	assert.Equal(t, []string{"layers", "experiments", "scenes", "services"}, doc.RecommendService.Canonical().Keys())
}

func TestBuilder_DuplicateName(t *testing.T) {
	b := smallDocument(t)
	err := b.Add(&Service{Name: "recall.x"})
	require.Error(t, err)
	assert.True(t, core.IsSchemaValidation(err))

	// 错误状态保持，后续 Add 与 Build 返回同一错误
	assert.Equal(t, err, b.Add(&Service{Name: "other"}))
	_, buildErr := b.Build()
	assert.Equal(t, err, buildErr)
}

func TestBuilder_DanglingReference(t *testing.T) {
	tests := []struct {
		name string
		node Node
	}{
		{"source table to unknown source", &SourceTable{Name: "t", Source: "nope"}},
		{"feature from unknown table", &Feature{Name: "f", From: []string{"nope"}}},
		{"service task unknown", &Service{Name: "s", Tasks: []string{"nope"}}},
		{"experiment chain unknown", &Experiment{Name: "e", Chains: []*Chain{{When: []string{"recall_x", "nope"}}}}},
		{"layer experiment unknown", &Layer{Name: "l", Experiments: EqualSplit([]string{"nope"})}},
		{"scene chain unknown", &Scene{Name: "sc", Chains: []*Chain{{Then: []string{"nope"}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := smallDocument(t)
			require.NoError(t, b.Add(tt.node))
			doc, err := b.Build()
			require.Error(t, err)
			assert.Nil(t, doc)
			assert.True(t, core.IsReferential(err))
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

func TestBuilder_WrongKindReference(t *testing.T) {
	b := smallDocument(t)
	// 场景链只能引用流量层
	require.NoError(t, b.Add(&Scene{Name: "bad", Chains: []*Chain{{Then: []string{"recall_x"}}}}))
	_, err := b.Build()
	assert.True(t, core.IsReferential(err))
}

func TestBuilder_ValidateOnAdd(t *testing.T) {
	b := NewBuilder()
	err := b.Add(&SourceTable{Name: "t"})
	assert.True(t, core.IsSchemaValidation(err))
	assert.Equal(t, err, b.Err())
}

func TestDocument_Render(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Add(mustSource(t, "request")))
	require.NoError(t, b.Add(&SourceTable{Name: "source_table_request", Source: "request",
		Columns: core.Columns{core.Col("user_id", "str")}, Options: Options("comment", "用户")}))
	doc, err := b.Build()
	require.NoError(t, err)

	raw, err := doc.Encode(FormatYAML)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "feature-service:\n  source:\n  - name: request\n") ||
		strings.HasPrefix(string(raw), "feature-service:\n  source:\n    - name: request\n"))
	assert.Contains(t, string(raw), "recommend-service: {}")

	rendered, err := doc.Render(FormatYAML)
	require.NoError(t, err)
	assert.NotEqual(t, string(raw), rendered)
	assert.NotContains(t, rendered, "用户")
	back, err := conv.FromLatin1(rendered)
	require.NoError(t, err)
	assert.Equal(t, string(raw), back)

	js, err := doc.Render(FormatJSON)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(js, "{\n  \"feature-service\": {"))

	_, err = doc.Encode("toml")
	assert.Error(t, err)
}
