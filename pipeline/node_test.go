package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/pkg/omap"
)

// encode 把规范输出转为 YAML 文本，便于按字面比较。
func encode(t *testing.T, m *omap.Map[any]) string {
	t.Helper()
	out, err := yaml.Marshal(m)
	require.NoError(t, err)
	return string(out)
}

func TestFieldAction_Arity(t *testing.T) {
	tests := []struct {
		name   string
		action *FieldAction
		want   string
	}{
		{
			name: "single elements collapse to scalars",
			action: &FieldAction{
				Names: []string{"user_id"}, Types: []string{"str"},
				Fields: []string{"user_id"}, Func: "typeTransform",
			},
			want: "name: user_id\ntype: str\nfields: user_id\nfunc: typeTransform\n",
		},
		{
			name: "multiple elements stay lists",
			action: &FieldAction{
				Names: []string{"item_id", "item_score"}, Types: []string{"str", "double"},
				Input: []string{"item_ids"}, Func: "recentWeight",
			},
			want: "names:\n    - item_id\n    - item_score\ntypes:\n    - str\n    - double\ninput: item_ids\nfunc: recentWeight\n",
		},
		{
			name: "multiple input and fields",
			action: &FieldAction{
				Names: []string{"a"}, Types: []string{"str"},
				Fields: []string{"x", "z"}, Input: []string{"p", "q"}, Func: "f",
			},
			want: "name: a\ntype: str\nfields:\n    - x\n    - z\ninput:\n    - p\n    - q\nfunc: f\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, encode(t, tt.action.Canonical()))
		})
	}
}

func TestFieldAction_KeyOrder(t *testing.T) {
	action := &FieldAction{
		Names: []string{"rankScore"}, Types: []string{"float"}, Input: []string{"i"}, Func: "predictScore",
		AlgoColumns: []core.ColumnGroup{{Name: "dnn_sparse", Fields: []string{"item_id"}}},
		Options:     Options("modelName", "m"),
	}
	m := action.Canonical()
	assert.Equal(t, []string{"name", "type", "input", "func", "algoColumns", "options"}, m.Keys())
	groups := m.Value("algoColumns").([]any)
	require.Len(t, groups, 1)
	assert.Equal(t, []any{"item_id"}, groups[0].(*omap.Map[any]).Value("dnn_sparse"))
}

func TestFieldAction_Validate(t *testing.T) {
	err := (&FieldAction{Names: []string{"x"}, Func: "f"}).Validate()
	require.Error(t, err)
	assert.True(t, core.IsSchemaValidation(err))
}

func TestChain_Arity(t *testing.T) {
	tests := []struct {
		name  string
		chain *Chain
		want  string
	}{
		{"single then", &Chain{Then: []string{"recall_a"}}, "then: recall_a\n"},
		{"multiple then", &Chain{Then: []string{"recall", "rank"}}, "then:\n    - recall\n    - rank\n"},
		{"single when", &Chain{When: []string{"recall_a"}}, "when: recall_a\n"},
		{"multiple when", &Chain{When: []string{"recall_a", "recall_b"}}, "when:\n    - recall_a\n    - recall_b\n"},
		{"empty chain", &Chain{}, "{}\n"},
		{
			"transforms",
			&Chain{Then: []string{"s"}, Transforms: []*TransformConfig{{Name: "cutOff"}}},
			"then: s\ntransforms:\n    - name: cutOff\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, encode(t, tt.chain.Canonical()))
		})
	}
}

func TestAlgoTransform_Canonical(t *testing.T) {
	at := &AlgoTransform{
		Name:     "algotransform_user",
		TaskName: "UserProfile",
		Feature:  []string{"feature_user"},
		FieldActions: []*FieldAction{
			{Names: []string{"user_id"}, Types: []string{"str"}, Fields: []string{"user_id"}, Func: "typeTransform"},
		},
		Output: []string{"user_id"},
	}
	want := "name: algotransform_user\ntaskName: UserProfile\nfeature: feature_user\nfieldActions:\n" +
		"    - name: user_id\n      type: str\n      fields: user_id\n      func: typeTransform\noutput:\n    - user_id\n"
	assert.Equal(t, want, encode(t, at.Canonical()))

	at.Feature = []string{"a", "b"}
	assert.Equal(t, []any{"a", "b"}, at.Canonical().Value("feature"))

	err := (&AlgoTransform{Name: "x"}).Validate()
	assert.True(t, core.IsSchemaValidation(err))
}

func TestFeature_Canonical(t *testing.T) {
	f := &Feature{
		Name:   "feature_user",
		From:   []string{"source_table_user"},
		Select: []string{"source_table_user.user_id"},
		Condition: []Condition{
			LeftOn("source_table_request.user_id", "source_table_user.user_id"),
			On("a.x", "b.x"),
		},
	}
	want := "name: feature_user\nfrom:\n    - source_table_user\nselect:\n    - source_table_user.user_id\ncondition:\n" +
		"    - source_table_request.user_id: source_table_user.user_id\n      type: left\n    - a.x: b.x\n"
	assert.Equal(t, want, encode(t, f.Canonical()))
}

func TestSource_Defaults(t *testing.T) {
	t.Run("request kind omitted", func(t *testing.T) {
		s, err := NewSource("request", "", nil)
		require.NoError(t, err)
		assert.Equal(t, "name: request\n", encode(t, s.Canonical()))
	})
	t.Run("jdbc mysql defaults", func(t *testing.T) {
		s, err := NewSource("mysql_db", SourceJDBC, Options("uri", "jdbc:mysql://h:3306/db"))
		require.NoError(t, err)
		assert.Equal(t, "root", s.Options.Value("user"))
		assert.Equal(t, "example", s.Options.Value("password"))
		assert.Equal(t, MySQLDriver, s.Options.Value("driver"))
	})
	t.Run("jdbc mysql wrong driver", func(t *testing.T) {
		_, err := NewSource("mysql_db", SourceJDBC, Options("uri", "jdbc:mysql://h/db", "driver", "org.Other"))
		assert.True(t, core.IsSchemaValidation(err))
	})
	t.Run("jdbc bad uri", func(t *testing.T) {
		_, err := NewSource("mysql_db", SourceJDBC, Options("uri", "mysql://h/db"))
		assert.True(t, core.IsSchemaValidation(err))
	})
	t.Run("mongo bad uri", func(t *testing.T) {
		_, err := NewSource("mongo_db", SourceMongoDB, nil)
		assert.True(t, core.IsSchemaValidation(err))
	})
	t.Run("redis standalone default", func(t *testing.T) {
		s, err := NewSource("redis_cache", SourceRedis, nil)
		require.NoError(t, err)
		assert.Equal(t, "name: redis_cache\nkind: Redis\noptions:\n    standalone:\n        host: localhost\n        port: 6379\n",
			encode(t, s.Canonical()))
	})
	t.Run("redis sentinel kept", func(t *testing.T) {
		s, err := NewSource("redis_cache", SourceRedis, Options("sentinel", "x"))
		require.NoError(t, err)
		assert.False(t, s.Options.Has("standalone"))
	})
	t.Run("name required", func(t *testing.T) {
		_, err := NewSource("", SourceRequest, nil)
		assert.True(t, core.IsSchemaValidation(err))
	})
}

func TestSparseEmission(t *testing.T) {
	tests := []struct {
		name string
		node interface{ Canonical() *omap.Map[any] }
		want string
	}{
		{"source table", &SourceTable{Name: "t", Source: "s"}, "name: t\nsource: s\n"},
		{"service", &Service{Name: "svc", Options: omap.New[any]()}, "name: svc\n"},
		{"experiment", &Experiment{Name: "e"}, "name: e\n"},
		{"layer", &Layer{Name: "rank", Bucketizer: "random"}, "name: rank\nbucketizer: random\n"},
		{"scene", &Scene{Name: "s"}, "name: s\n"},
		{"transform", &TransformConfig{Name: "cutOff"}, "name: cutOff\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, encode(t, tt.node.Canonical()))
		})
	}
}

func TestService_TasksStayList(t *testing.T) {
	s := &Service{
		Name:          "rank_widedeep",
		Tasks:         []string{"algotransform_widedeep"},
		Columns:       core.Columns{core.Col("user_id", "str")},
		Options:       Options("maxReservation", 200),
		PreTransforms: []*TransformConfig{{Name: "summary"}},
	}
	want := "name: rank_widedeep\ntasks:\n    - algotransform_widedeep\ncolumns:\n    - user_id: str\noptions:\n" +
		"    maxReservation: 200\npreTransforms:\n    - name: summary\n"
	assert.Equal(t, want, encode(t, s.Canonical()))
}

func TestEqualSplit(t *testing.T) {
	items := EqualSplit([]string{"a", "b", "c"})
	require.Len(t, items, 3)
	layer := &Layer{Name: "recall", Experiments: items}
	assert.InDelta(t, 1.0, layer.RatioSum(), 1e-9)
	assert.Empty(t, EqualSplit(nil))
}
