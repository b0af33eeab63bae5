package compiler

import (
	"fmt"
	"net/url"

	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/flow"
	"github.com/rushteam/recflow/pipeline"
	"github.com/rushteam/recflow/pkg/conv"
	"github.com/rushteam/recflow/pkg/omap"
	"github.com/rushteam/recflow/topology"
)

// 固定节点名
const (
	sourceRequest = "request"

	tableUser    = "source_table_user"
	tableItem    = "source_table_item"
	tableSummary = "source_table_summary"
	tableRequest = "source_table_request"

	featureUser        = "feature_user"
	featureItemSummary = "feature_item_summary"
	featureRequest     = "feature_request"
	featureRandom      = "feature_random"

	transformUser   = "algotransform_user"
	transformRandom = "algotransform_random"

	recallMultiple = "recall.multiple"
	layerRecall    = "recall"
	layerRank      = "rank"
	sceneName      = "guess-you-like"
	bucketizer     = "random"
)

// 凭据默认值与环境变量名
const (
	defaultUser     = "root"
	defaultPassword = "example"

	envMongoUser     = "MONGO_INITDB_ROOT_USERNAME"
	envMongoPassword = "MONGO_INITDB_ROOT_PASSWORD"
	envMySQLUser     = "MYSQL_USER"
	envMySQLPassword = "MYSQL_PASSWORD"
	envMySQLRootPass = "MYSQL_ROOT_PASSWORD"
	envRedisPassword = "REDIS_PASSWORD"
)

// unit 是一次编译的工作区：符号表加上编译过程中推导出的 key 名与字段列表。
type unit struct {
	g *Generator
	f *flow.OnlineFlow
	b *pipeline.Builder

	userKey, itemKey, itemsKey string
	userKeyType, itemKeyType   string

	userFields, itemFields, summaryFields []string

	recallServices    []string
	recallExperiments []string
	rankExperiments   []string
}

func newUnit(g *Generator) *unit {
	src := g.flow.Source
	return &unit{
		g:        g,
		f:        g.flow,
		b:        pipeline.NewBuilder(),
		userKey:  src.UserKeyName,
		itemKey:  src.ItemKeyName,
		itemsKey: src.UserItemIDsName,
	}
}

func schemaError(format string, args ...any) error {
	return core.SchemaError(core.ModuleCompiler, "compiler: "+format, args...)
}

// placeholder 返回运行时由环境变量解析的占位符，例如 ${MONGO_MONGO_HOST:localhost}。
func placeholder(key, suffix, def string) string {
	return fmt.Sprintf("${%s_%s:%s}", flow.EnvName(key), suffix, def)
}

func hostPort(key string, port int) string {
	return placeholder(key, "HOST", "localhost") + ":" + placeholder(key, "PORT", fmt.Sprint(port))
}

func envOr(info *flow.ServiceInfo, key, def string) string {
	if v := info.Env(key); v != "" {
		return v
	}
	return def
}

// sourceOptions 按引擎生成数据源连接选项。
func sourceOptions(key string, info *flow.ServiceInfo, engine flow.Engine, collection string) *omap.Map[any] {
	switch engine {
	case flow.EngineMongo:
		uri := fmt.Sprintf("mongodb://%s:%s@%s/%s?authSource=admin",
			url.QueryEscape(envOr(info, envMongoUser, defaultUser)),
			url.QueryEscape(envOr(info, envMongoPassword, defaultPassword)),
			hostPort(key, engine.DefaultPort()),
			collection)
		return omap.New[any]().Set("uri", uri)
	case flow.EngineMySQL:
		uri := fmt.Sprintf("jdbc:mysql://%s/%s", hostPort(key, engine.DefaultPort()), collection)
		user := envOr(info, envMySQLUser, defaultUser)
		password := envOr(info, envMySQLPassword, defaultPassword)
		if user == defaultUser {
			password = envOr(info, envMySQLRootPass, defaultPassword)
		}
		return omap.New[any]().Set("uri", uri).Set("user", user).Set("password", password)
	case flow.EngineRedis:
		standalone := omap.New[any]().
			Set("host", placeholder(key, "HOST", "localhost")).
			Set("port", placeholder(key, "PORT", fmt.Sprint(engine.DefaultPort())))
		opts := omap.New[any]().Set("standalone", standalone)
		if pw := info.Env(envRedisPassword); pw != "" {
			opts.Set("password", pw)
		}
		return opts
	}
	return nil
}

// registerSources 注册 request 源，以及每个服务的每个 collection 一个数据源。
// 向量库只服务向量检索，不作为特征源。
func (u *unit) registerSources() error {
	request, err := pipeline.NewSource(sourceRequest, pipeline.SourceRequest, nil)
	if err != nil {
		return err
	}
	if err := u.b.Add(request); err != nil {
		return err
	}
	if u.f.Services.Len() == 0 {
		return schemaError("services must be set")
	}
	for _, key := range u.f.Services.Keys() {
		info, _ := u.f.Services.Get(key)
		engine := flow.InferEngine(key, info.Image)
		kind := pipeline.SourceKind(engine.SourceKind())
		if kind == "" {
			u.g.logger.Debug().Str("service", key).Str("engine", string(engine)).Msg("skip non-feature service")
			continue
		}
		collections := info.Collection
		if len(collections) == 0 {
			collections = []string{""}
		}
		for _, coll := range collections {
			name := sourceName(key, coll)
			src, err := pipeline.NewSource(name, kind, sourceOptions(key, info, engine, coll))
			if err != nil {
				return err
			}
			if err := u.b.Add(src); err != nil {
				return err
			}
		}
	}
	return nil
}

func sourceName(service, collection string) string {
	if collection == "" {
		return service
	}
	return service + "_" + collection
}

// addSourceTable 把 DataSource 注册为表，其数据源必须已注册。
func (u *unit) addSourceTable(name string, ds *flow.DataSource, defaults core.Columns) error {
	if ds == nil {
		return schemaError("datasource of %s must be set", name)
	}
	src := sourceName(ds.ServiceName, ds.Collection)
	if kind, ok := u.b.KindOf(src); !ok || kind != pipeline.KindSource {
		return core.ReferentialError(core.ModuleCompiler, "compiler: source %s of %s must be set in services", src, name)
	}
	columns := ds.Columns
	if len(columns) == 0 {
		columns = defaults
	}
	if len(columns) == 0 {
		return schemaError("columns of %s must not be empty", name)
	}
	return u.b.Add(&pipeline.SourceTable{
		Name:    name,
		Source:  src,
		Table:   ds.Table,
		Columns: columns.Clone(),
	})
}

// registerSourceTables 注册 user/item/summary/request 表并检查 key 字段与类型一致性。
func (u *unit) registerSourceTables() error {
	src := u.f.Source
	if err := u.addSourceTable(tableUser, src.User, nil); err != nil {
		return err
	}
	if err := u.addSourceTable(tableItem, src.Item, nil); err != nil {
		return err
	}
	if !src.User.Columns.Has(u.userKey) || !src.User.Columns.Has(u.itemsKey) {
		return schemaError("user columns must contain user key %q and user item ids %q", u.userKey, u.itemsKey)
	}
	if !src.Item.Columns.Has(u.itemKey) {
		return schemaError("item columns must contain item key %q", u.itemKey)
	}
	u.userKeyType = src.User.Columns.TypeOf(u.userKey, "str")
	u.itemKeyType = src.Item.Columns.TypeOf(u.itemKey, "str")
	u.userFields = src.User.Columns.Names()
	u.itemFields = src.Item.Columns.Names()

	if src.Summary != nil {
		if err := u.addSourceTable(tableSummary, src.Summary, nil); err != nil {
			return err
		}
		if !src.Summary.Columns.Has(u.itemKey) {
			return schemaError("summary columns must contain item key %q", u.itemKey)
		}
		if t := src.Summary.Columns.TypeOf(u.itemKey, "str"); t != u.itemKeyType {
			return schemaError("item key type mismatch: item %s, summary %s", u.itemKeyType, t)
		}
		u.summaryFields = src.Summary.Columns.Names()
	}

	request := src.Request
	if len(request) == 0 {
		request = core.Columns{core.Col(u.userKey, u.userKeyType), core.Col(u.itemKey, u.itemKeyType)}
	}
	if !request.Has(u.userKey) {
		return schemaError("request columns must contain user key %q", u.userKey)
	}
	if !request.Has(u.itemKey) {
		return schemaError("request columns must contain item key %q", u.itemKey)
	}
	if t := request.TypeOf(u.userKey, "str"); t != u.userKeyType {
		return schemaError("request user key type %s does not match user key type %s", t, u.userKeyType)
	}
	return u.b.Add(&pipeline.SourceTable{
		Name:    tableRequest,
		Source:  sourceRequest,
		Columns: request.Clone(),
	})
}

// registerFeatures 注册请求与 user/summary 的 left join，未匹配的请求行保留。
func (u *unit) registerFeatures() error {
	err := u.b.Add(&pipeline.Feature{
		Name:      featureUser,
		From:      []string{tableRequest, tableUser},
		Select:    conv.Prefixed(tableUser+".", u.userFields),
		Condition: []pipeline.Condition{pipeline.LeftOn(tableRequest+"."+u.userKey, tableUser+"."+u.userKey)},
	})
	if err != nil {
		return err
	}
	if u.f.Source.Summary == nil {
		return nil
	}
	return u.b.Add(&pipeline.Feature{
		Name:      featureItemSummary,
		From:      []string{tableRequest, tableSummary},
		Select:    conv.Prefixed(tableSummary+".", u.summaryFields),
		Condition: []pipeline.Condition{pipeline.LeftOn(tableRequest+"."+u.itemKey, tableSummary+"."+u.itemKey)},
	})
}

// registerUserProfile 注册用户画像变换：key 类型转换、拆分最近行为序列、按时间衰减打分。
// 输出 (user, item, item_score) 作为各召回分支的输入。
func (u *unit) registerUserProfile() error {
	return u.b.Add(&pipeline.AlgoTransform{
		Name:     transformUser,
		TaskName: "UserProfile",
		Feature:  []string{featureUser},
		FieldActions: []*pipeline.FieldAction{
			{
				Names: []string{u.userKey}, Types: []string{u.userKeyType},
				Fields: []string{u.userKey}, Func: "typeTransform",
			},
			{
				Names: []string{"item_ids"}, Types: []string{"list_str"},
				Fields: []string{u.itemsKey}, Func: "splitRecentIds",
				Options: pipeline.Options("splitor", u.f.Source.UserItemIDsSplit),
			},
			{
				Names: []string{u.itemKey, "item_score"}, Types: []string{"str", "double"},
				Input: []string{"item_ids"}, Func: "recentWeight",
			},
		},
		Output: []string{u.userKey, u.itemKey, "item_score"},
	})
}

func (u *unit) maxReservation(n int) *omap.Map[any] {
	return pipeline.Options("maxReservation", n)
}

// putOriginScores 把当前分支得分并入 origin_scores。
func putOriginScores() *pipeline.TransformConfig {
	return &pipeline.TransformConfig{
		Name: "updateField",
		Option: pipeline.Options(
			"input", []any{"score", "origin_scores"},
			"output", []any{"origin_scores"},
			"updateOperator", "putOriginScores",
		),
	}
}

// addBranch 为一个分支注册服务与包装实验：截断到保留条数，并把得分记入 origin_scores。
func (u *unit) addBranch(serviceName, experimentName, task string, service *pipeline.Service) error {
	service.Name = serviceName
	service.Tasks = []string{task}
	service.Options = u.maxReservation(u.g.serviceReservation)
	if err := u.b.Add(service); err != nil {
		return err
	}
	return u.b.Add(&pipeline.Experiment{
		Name:    experimentName,
		Options: u.maxReservation(u.g.experimentReservation),
		Chains: []*pipeline.Chain{{
			Then:       []string{serviceName},
			Transforms: []*pipeline.TransformConfig{{Name: "cutOff"}, putOriginScores()},
		}},
	})
}

// modelHostPort 返回排序服务的模型推理地址占位符。
func (u *unit) modelHostPort() (string, string) {
	key := topology.ModelServiceKey(u.f)
	return placeholder(key, "HOST", "localhost"), placeholder(key, "PORT", fmt.Sprint(topology.ModelPort))
}
