package topology

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/rushteam/recflow/flow"
	"github.com/rushteam/recflow/pkg/omap"
)

func normalized(t *testing.T, f *flow.OnlineFlow) *flow.OnlineFlow {
	t.Helper()
	out, err := flow.Normalize(f)
	require.NoError(t, err)
	return out
}

func TestBuild_DemoFlow(t *testing.T) {
	doc, err := Build(normalized(t, flow.DemoJPAFlow()))
	require.NoError(t, err)

	assert.Equal(t, []string{"mongo_mongo", FacadeKey, ModelKey}, doc.Services.Keys())

	mongo, ok := doc.Service("mongo_mongo")
	require.True(t, ok)
	assert.Equal(t, "container_mongo_mongo_service", mongo.ContainerName)
	assert.Equal(t, "mongo:6.0.1", mongo.Image)
	assert.Equal(t, []int{27017}, mongo.Ports)
	assert.Equal(t, "jpa", mongo.Environment.Value("MONGO_INITDB_ROOT_USERNAME"))

	facade, ok := doc.Facade()
	require.True(t, ok)
	assert.Equal(t, FacadeImage, facade.Image)
	assert.Equal(t, []string{"MONGO_MONGO_HOST", "MONGO_MONGO_PORT", "MODEL_HOST", "MODEL_PORT"}, facade.Environment.Keys())
	assert.Equal(t, "mongo_mongo", facade.Environment.Value("MONGO_MONGO_HOST"))
	assert.Equal(t, "27017", facade.Environment.Value("MONGO_MONGO_PORT"))
	assert.Equal(t, "model", facade.Environment.Value("MODEL_HOST"))
	assert.Equal(t, "50000", facade.Environment.Value("MODEL_PORT"))
}

func TestBuild_ExistingModelService(t *testing.T) {
	f := flow.DemoJPAFlow()
	f.Dockers = omap.New[*flow.DockerInfo]().
		Set("model_serving", &flow.DockerInfo{Image: "custom/serving:1"})
	doc, err := Build(normalized(t, f))
	require.NoError(t, err)

	assert.False(t, doc.Services.Has(ModelKey))
	svc, ok := doc.Service("model_serving")
	require.True(t, ok)
	assert.Equal(t, []int{ModelPort}, svc.Ports)

	facade, _ := doc.Facade()
	assert.Equal(t, "model_serving", facade.Environment.Value("MODEL_SERVING_HOST"))
	assert.Equal(t, "model_serving", ModelServiceKey(f))
}

func TestBuild_DockerOverridesFacade(t *testing.T) {
	f := flow.DemoJPAFlow()
	f.Dockers = omap.New[*flow.DockerInfo]().
		Set("recommend", &flow.DockerInfo{Image: "my/recommend:2", Environment: omap.New[string]().Set("JAVA_OPTS", "-Xmx1g")}).
		Set("sidecar", &flow.DockerInfo{Image: "busybox"})
	doc, err := Build(normalized(t, f))
	require.NoError(t, err)

	facade, _ := doc.Facade()
	assert.Equal(t, "my/recommend:2", facade.Image)
	assert.Equal(t, []int{FacadePort}, facade.Ports)
	assert.Equal(t, "-Xmx1g", facade.Environment.Value("JAVA_OPTS"))
	// 没有端口的容器不注入门面环境变量
	assert.False(t, facade.Environment.Has("SIDECAR_HOST"))
	// 输入 flow 的环境变量不被修改
	assert.Equal(t, 1, f.Dockers.Value("recommend").Environment.Len())
}

func TestBuild_EnginePorts(t *testing.T) {
	f := flow.DemoJPAFlow()
	f.Services.Set("redis_cache", &flow.ServiceInfo{})
	f.Services.Set("mysql_db", &flow.ServiceInfo{Image: "mysql:8.0"})
	f.Services.Set("milvus_vec", &flow.ServiceInfo{})
	doc, err := Build(normalized(t, f))
	require.NoError(t, err)

	for key, port := range map[string]int{"redis_cache": 6379, "mysql_db": 3306, "milvus_vec": 19530} {
		svc, ok := doc.Service(key)
		require.True(t, ok, key)
		assert.Equal(t, port, svc.Port(), key)
	}
	facade, _ := doc.Facade()
	assert.Equal(t, "6379", facade.Environment.Value("REDIS_CACHE_PORT"))
}

func TestRender(t *testing.T) {
	doc, err := Build(normalized(t, flow.DemoJPAFlow()))
	require.NoError(t, err)
	out, err := doc.Render()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "version: \"3.5\"\nservices:\n  mongo_mongo:\n    container_name: container_mongo_mongo_service\n"))

	var parsed struct {
		Version  string `yaml:"version"`
		Services map[string]struct {
			ContainerName string            `yaml:"container_name"`
			Image         string            `yaml:"image"`
			Environment   map[string]string `yaml:"environment"`
			Ports         []string          `yaml:"ports"`
		} `yaml:"services"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, "3.5", parsed.Version)
	assert.Equal(t, []string{"13013:13013"}, parsed.Services["recommend"].Ports)
	assert.Equal(t, "27017", parsed.Services["recommend"].Environment["MONGO_MONGO_PORT"])

	again, err := doc.Render()
	require.NoError(t, err)
	assert.Equal(t, out, again)
}
