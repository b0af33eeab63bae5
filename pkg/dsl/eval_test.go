package dsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFlow() map[string]any {
	return map[string]any{
		"random_model": map[string]any{"name": "pop", "bound": 1000},
		"cf_models": []any{
			map[string]any{"name": "itemcf", "source": map[string]any{"serviceName": "mongo_mongo"}},
			map[string]any{"name": "swing", "source": map[string]any{"serviceName": "redis_cf"}},
		},
	}
}

func TestEval_Evaluate(t *testing.T) {
	ev, err := NewEval(sampleFlow())
	require.NoError(t, err)

	tests := []struct {
		expr string
		want bool
	}{
		{"", true},
		{"has(flow.random_model)", true},
		{"has(flow.rank_models)", false},
		{"size(flow.cf_models) == 2", true},
		{"flow.random_model.bound >= 100", true},
		{`flow.cf_models.all(m, m.source.serviceName.startsWith("mongo_"))`, false},
		{`flow.cf_models.exists(m, m.name == "swing")`, true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ev.Evaluate(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEval_Errors(t *testing.T) {
	ev, err := NewEval(sampleFlow())
	require.NoError(t, err)

	_, err = ev.Evaluate("flow.cf_models +")
	assert.ErrorContains(t, err, "compile error")

	_, err = ev.Evaluate("size(flow.cf_models)")
	assert.ErrorContains(t, err, "boolean")

	_, err = ev.Evaluate("flow.missing.field == 1")
	assert.ErrorContains(t, err, "eval error")
}

func TestEval_CheckAll(t *testing.T) {
	ev, err := NewEval(sampleFlow())
	require.NoError(t, err)

	failure, ok := ev.CheckAll([]string{"size(flow.cf_models) > 0", "flow.random_model.bound < 10", "true"})
	require.False(t, ok)
	assert.Equal(t, "flow.random_model.bound < 10", failure.Expr)
	assert.NoError(t, failure.Err)
	assert.Contains(t, failure.String(), "evaluated to false")

	failure, ok = ev.CheckAll([]string{"size(flow.cf_models) > 0", "has(flow.random_model)"})
	assert.True(t, ok)
	assert.Nil(t, failure)

	failure, ok = ev.CheckAll([]string{"("})
	require.False(t, ok)
	assert.Error(t, failure.Err)
}
