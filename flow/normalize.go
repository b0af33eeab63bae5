package flow

import (
	"strings"

	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/pkg/omap"
)

// 默认 key 名称
const (
	DefaultUserKeyName      = "user_id"
	DefaultItemKeyName      = "item_id"
	DefaultUserItemIDsName  = "user_bhv_item_seq"
	DefaultUserItemIDsSplit = "\u0001"

	// DefaultRandomBound 是随机召回 bound 的规范化默认值
	DefaultRandomBound = 1000
)

// DefaultRandomColumns 随机召回预计算表的默认 schema。
func DefaultRandomColumns() core.Columns {
	return core.Columns{
		core.Col("key", "int"),
		core.Col("value", omap.New[any]().Set("list_struct",
			omap.New[any]().Set("item_id", "str").Set("score", "double"))),
	}
}

// DefaultCFColumns 协同过滤预计算表的默认 schema：key → [(item, weight)]。
func DefaultCFColumns() core.Columns {
	return core.Columns{
		core.Col("key", "str"),
		core.Col("value", omap.New[any]().Set("list_struct",
			omap.New[any]().Set("_1", "str").Set("_2", "double"))),
	}
}

// DefaultColumnInfo 排序模型默认的两组稀疏特征，均以 item key 为字段。
func DefaultColumnInfo(itemKey string) []core.ColumnGroup {
	return []core.ColumnGroup{
		{Name: "dnn_sparse", Fields: []string{itemKey}},
		{Name: "lr_sparse", Fields: []string{itemKey}},
	}
}

// Normalize 补全默认值并校验 flow，返回新的规范化 flow，入参不会被修改。
// 遇到第一个不满足的约束即返回错误（SCHEMA_VALIDATION / REFERENTIAL）。
//
// 对已规范化的 flow 再次调用结果不变。
func Normalize(in *OnlineFlow) (*OnlineFlow, error) {
	if in == nil {
		return nil, core.SchemaError(core.ModuleFlow, "flow: flow must not be nil")
	}
	f := in.Clone()
	n := &normalizer{flow: f, alias: make(map[string]string)}
	if err := n.run(); err != nil {
		return nil, err
	}
	return f, nil
}

type normalizer struct {
	flow *OnlineFlow
	// alias 记录被重命名的 service：旧 key → 规范 key
	alias map[string]string
}

func (n *normalizer) run() error {
	f := n.flow
	if f.Services == nil {
		f.Services = omap.New[*ServiceInfo]()
	}
	n.canonicalizeServices()

	src := f.Source
	if src == nil {
		return core.SchemaError(core.ModuleFlow, "flow: source must be set")
	}
	if src.User == nil {
		return core.SchemaError(core.ModuleFlow, "flow: source.user must be set")
	}
	if src.Item == nil {
		return core.SchemaError(core.ModuleFlow, "flow: source.item must be set")
	}
	if src.UserKeyName == "" {
		src.UserKeyName = DefaultUserKeyName
	}
	if src.ItemKeyName == "" {
		src.ItemKeyName = DefaultItemKeyName
	}
	if src.UserItemIDsName == "" {
		src.UserItemIDsName = DefaultUserItemIDsName
	}
	if src.UserItemIDsSplit == "" {
		src.UserItemIDsSplit = DefaultUserItemIDsSplit
	}
	if len(src.User.Columns) == 0 {
		return core.SchemaError(core.ModuleFlow, "flow: source.user columns must not be empty")
	}
	if len(src.Item.Columns) == 0 {
		return core.SchemaError(core.ModuleFlow, "flow: source.item columns must not be empty")
	}
	if !src.User.Columns.Has(src.UserKeyName) || !src.User.Columns.Has(src.UserItemIDsName) {
		return core.SchemaError(core.ModuleFlow, "flow: source.user columns must contain user key %q and user item ids %q",
			src.UserKeyName, src.UserItemIDsName)
	}
	if !src.Item.Columns.Has(src.ItemKeyName) {
		return core.SchemaError(core.ModuleFlow, "flow: source.item columns must contain item key %q", src.ItemKeyName)
	}
	if src.Summary != nil {
		if len(src.Summary.Columns) == 0 {
			return core.SchemaError(core.ModuleFlow, "flow: source.summary columns must not be empty")
		}
		if !src.Summary.Columns.Has(src.ItemKeyName) {
			return core.SchemaError(core.ModuleFlow, "flow: source.summary columns must contain item key %q", src.ItemKeyName)
		}
	}
	if len(src.Request) == 0 {
		src.Request = core.Columns{
			core.Col(src.UserKeyName, src.User.Columns.TypeOf(src.UserKeyName, "str")),
			core.Col(src.ItemKeyName, src.Item.Columns.TypeOf(src.ItemKeyName, "str")),
		}
	}

	for _, item := range []struct {
		what string
		ds   *DataSource
	}{
		{"source.user", src.User},
		{"source.item", src.Item},
		{"source.summary", src.Summary},
	} {
		if item.ds == nil {
			continue
		}
		if err := n.resolveDataSource(item.what, item.ds, ""); err != nil {
			return err
		}
	}

	if m := f.RandomModel; m != nil {
		if m.Name == "" {
			return core.SchemaError(core.ModuleFlow, "flow: random_model name must not be empty")
		}
		if m.Bound <= 0 {
			m.Bound = DefaultRandomBound
		}
		if m.Source == nil {
			return core.SchemaError(core.ModuleFlow, "flow: random_model %q source must be set", m.Name)
		}
		if len(m.Source.Columns) == 0 {
			m.Source.Columns = DefaultRandomColumns()
		}
		if err := n.resolveDataSource("random_model "+m.Name, m.Source, ""); err != nil {
			return err
		}
	}
	for _, m := range f.CFModels {
		if m == nil || m.Name == "" {
			return core.SchemaError(core.ModuleFlow, "flow: cf_models model name must not be empty")
		}
		if m.Source == nil {
			return core.SchemaError(core.ModuleFlow, "flow: cf_model %q source must be set", m.Name)
		}
		if len(m.Source.Columns) == 0 {
			m.Source.Columns = DefaultCFColumns()
		}
		if err := n.resolveDataSource("cf_model "+m.Name, m.Source, ""); err != nil {
			return err
		}
	}
	for _, m := range f.TwoTowerModels {
		if m == nil || m.Name == "" {
			return core.SchemaError(core.ModuleFlow, "flow: twotower_models model name must not be empty")
		}
		if m.Milvus == nil {
			return core.SchemaError(core.ModuleFlow, "flow: twotower_model %q milvus must be set", m.Name)
		}
		if err := n.resolveMilvus(m); err != nil {
			return err
		}
	}
	for _, m := range f.RankModels {
		if m == nil || m.Name == "" || m.Model == "" {
			return core.SchemaError(core.ModuleFlow, "flow: rank_models model name or model must not be empty")
		}
		if len(m.ColumnInfo) == 0 {
			m.ColumnInfo = DefaultColumnInfo(src.ItemKeyName)
		}
	}
	return n.checkModelNames()
}

// reservedModelNames 与编译器的固定节点名冲突：
// feature_user, feature_item_summary, feature_request, feature_random,
// algotransform_user, algotransform_random, recall.multiple 以及 request 数据源。
var reservedModelNames = map[string]bool{
	"user":         true,
	"item_summary": true,
	"request":      true,
	"random":       true,
	"multiple":     true,
}

// checkModelNames 校验模型名可以安全地派生节点名：不与固定节点名、数据源名冲突，且全局唯一。
func (n *normalizer) checkModelNames() error {
	f := n.flow
	sources := make(map[string]bool)
	for _, key := range f.Services.Keys() {
		info, _ := f.Services.Get(key)
		sources[key] = true
		for _, c := range info.Collection {
			sources[key+"_"+c] = true
		}
	}
	type modelName struct{ what, name string }
	var names []modelName
	if m := f.RandomModel; m != nil {
		names = append(names, modelName{"random_model", m.Name})
	}
	for _, m := range f.CFModels {
		names = append(names, modelName{"cf_model", m.Name})
	}
	for _, m := range f.TwoTowerModels {
		names = append(names, modelName{"twotower_model", m.Name})
	}
	for _, m := range f.RankModels {
		names = append(names, modelName{"rank_model", m.Name})
	}
	seen := make(map[string]string, len(names))
	for _, item := range names {
		switch {
		case reservedModelNames[item.name] || strings.HasPrefix(item.name, "source_table_"):
			return core.SchemaError(core.ModuleFlow, "flow: %s name %q is reserved", item.what, item.name)
		case sources[item.name]:
			return core.SchemaError(core.ModuleFlow, "flow: %s name %q conflicts with a data source name", item.what, item.name)
		}
		if prev, ok := seen[item.name]; ok {
			return core.SchemaError(core.ModuleFlow, "flow: %s name %q is already used by a %s", item.what, item.name, prev)
		}
		seen[item.name] = item.what
	}
	return nil
}

// canonicalizeServices 给所有已声明 service 补全引擎前缀与默认镜像。
// 重命名保持原有位置；目标 key 已存在时合并 collection 列表。
func (n *normalizer) canonicalizeServices() {
	services := n.flow.Services
	for _, key := range services.Keys() {
		info, _ := services.Get(key)
		if info == nil {
			info = &ServiceInfo{}
			services.Set(key, info)
		}
		engine := InferEngine(key, info.Image)
		declared := info.Image
		if info.Image == "" {
			info.Image = engine.DefaultImage()
		}
		canonical := CanonicalKey(engine, key)
		if canonical == key {
			continue
		}
		n.alias[key] = canonical
		if target, ok := services.Get(canonical); ok && target != nil {
			mergeService(target, info, declared, engine)
			services.Delete(key)
			continue
		}
		services.Rename(key, canonical)
	}
}

// mergeService 把重命名后撞 key 的 service 合并进已存在的规范 key：
// 目标未声明镜像（为空或为默认镜像）时采用来源声明的镜像；环境变量只补充目标缺少的 key。
func mergeService(target, from *ServiceInfo, declared string, engine Engine) {
	for _, c := range from.Collection {
		target.AddCollection(c)
	}
	if declared != "" && (target.Image == "" || target.Image == engine.DefaultImage()) {
		target.Image = declared
	}
	if from.Environment == nil {
		return
	}
	if target.Environment == nil {
		target.Environment = omap.New[string]()
	}
	for _, k := range from.Environment.Keys() {
		if !target.Environment.Has(k) {
			target.Environment.Set(k, from.Environment.Value(k))
		}
	}
}

// resolveDataSource 解析 DataSource 引用的 service，不存在时按推断的引擎创建，
// 并把 serviceName 改写为规范 key、登记 collection。
// force 非空时强制使用该引擎（向量库引用）。
func (n *normalizer) resolveDataSource(what string, ds *DataSource, force Engine) error {
	key, err := n.resolveService(what, ds.ServiceName, force)
	if err != nil {
		return err
	}
	ds.ServiceName = key
	info, _ := n.flow.Services.Get(key)
	info.AddCollection(ds.Collection)
	return nil
}

func (n *normalizer) resolveMilvus(m *TwoTowerModel) error {
	ref := m.Milvus
	key, err := n.resolveService("twotower_model "+m.Name, ref.ServiceName, EngineMilvus)
	if err != nil {
		return err
	}
	ref.ServiceName = key
	info, _ := n.flow.Services.Get(key)
	info.AddCollection(ref.Collection)
	return nil
}

func (n *normalizer) resolveService(what, name string, force Engine) (string, error) {
	if name == "" {
		return "", core.ReferentialError(core.ModuleFlow, "flow: %s serviceName must not be empty", what)
	}
	services := n.flow.Services
	if alias, ok := n.alias[name]; ok {
		name = alias
	}
	if info, ok := services.Get(name); ok {
		if force != "" && InferEngine(name, info.Image) != force {
			return "", core.ReferentialError(core.ModuleFlow, "flow: %s references service %q which is not a %s service", what, name, force)
		}
		return name, nil
	}
	engine := force
	if engine == "" {
		if e, ok := EngineOfName(name); ok {
			engine = e
		} else {
			engine = DefaultEngine
		}
	}
	key := CanonicalKey(engine, name)
	if info, ok := services.Get(key); ok {
		if force != "" && InferEngine(key, info.Image) != force {
			return "", core.ReferentialError(core.ModuleFlow, "flow: %s references service %q which is not a %s service", what, key, force)
		}
		n.alias[name] = key
		return key, nil
	}
	services.Set(key, &ServiceInfo{Image: engine.DefaultImage()})
	if key != name {
		n.alias[name] = key
	}
	return key, nil
}
