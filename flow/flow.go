// Package flow 定义推荐服务部署的声明式描述（OnlineFlow）及其规范化。
//
// OnlineFlow 描述数据源、召回模型、排序模型与基础设施服务；
// Normalize 负责补全默认值并校验，编译器只消费规范化后的 flow。
package flow

import (
	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/pkg/omap"
)

// DataSource 是一个由基础设施服务承载的逻辑数据集。
type DataSource struct {
	Table       string       `yaml:"table" json:"table"`
	ServiceName string       `yaml:"serviceName" json:"serviceName"`
	Collection  string       `yaml:"collection,omitempty" json:"collection,omitempty"`
	Columns     core.Columns `yaml:"columns,omitempty" json:"columns,omitempty"`
}

func (ds *DataSource) Clone() *DataSource {
	if ds == nil {
		return nil
	}
	out := *ds
	out.Columns = ds.Columns.Clone()
	return &out
}

// ServiceInfo 是一个基础设施服务（存储/向量库）。
type ServiceInfo struct {
	Image       string            `yaml:"image" json:"image"`
	Collection  []string          `yaml:"collection,omitempty" json:"collection,omitempty"`
	Environment *omap.Map[string] `yaml:"environment,omitempty" json:"environment,omitempty"`
}

func (s *ServiceInfo) Clone() *ServiceInfo {
	if s == nil {
		return nil
	}
	return &ServiceInfo{
		Image:       s.Image,
		Collection:  append([]string(nil), s.Collection...),
		Environment: s.Environment.Clone(),
	}
}

// Env 返回环境变量 key 的值。
func (s *ServiceInfo) Env(key string) string {
	if s == nil {
		return ""
	}
	return s.Environment.Value(key)
}

// HasCollection 线性扫描判断 collection 是否已登记。
func (s *ServiceInfo) HasCollection(name string) bool {
	for _, c := range s.Collection {
		if c == name {
			return true
		}
	}
	return false
}

// AddCollection 追加 collection（保持插入顺序，不重复）。
func (s *ServiceInfo) AddCollection(name string) {
	if name == "" || s.HasCollection(name) {
		return
	}
	s.Collection = append(s.Collection, name)
}

// DockerInfo 是额外的容器声明，直接进入容器拓扑。
type DockerInfo struct {
	Image       string            `yaml:"image" json:"image"`
	Environment *omap.Map[string] `yaml:"environment,omitempty" json:"environment,omitempty"`
	Ports       []int             `yaml:"ports,omitempty" json:"ports,omitempty"`
}

func (d *DockerInfo) Clone() *DockerInfo {
	if d == nil {
		return nil
	}
	return &DockerInfo{
		Image:       d.Image,
		Environment: d.Environment.Clone(),
		Ports:       append([]int(nil), d.Ports...),
	}
}

// FeatureInfo 描述用户/物品/摘要数据与请求 schema。
type FeatureInfo struct {
	User             *DataSource  `yaml:"user" json:"user"`
	Item             *DataSource  `yaml:"item" json:"item"`
	Summary          *DataSource  `yaml:"summary,omitempty" json:"summary,omitempty"`
	Request          core.Columns `yaml:"request,omitempty" json:"request,omitempty"`
	UserKeyName      string       `yaml:"user_key_name,omitempty" json:"user_key_name,omitempty"`
	ItemKeyName      string       `yaml:"item_key_name,omitempty" json:"item_key_name,omitempty"`
	UserItemIDsName  string       `yaml:"user_item_ids_name,omitempty" json:"user_item_ids_name,omitempty"`
	UserItemIDsSplit string       `yaml:"user_item_ids_split,omitempty" json:"user_item_ids_split,omitempty"`
}

func (f *FeatureInfo) Clone() *FeatureInfo {
	if f == nil {
		return nil
	}
	out := *f
	out.User = f.User.Clone()
	out.Item = f.Item.Clone()
	out.Summary = f.Summary.Clone()
	out.Request = f.Request.Clone()
	return &out
}

// RankModel 是排序模型，Model 为外部打分服务中的模型名。
type RankModel struct {
	Name       string             `yaml:"name" json:"name"`
	Model      string             `yaml:"model" json:"model"`
	ColumnInfo []core.ColumnGroup `yaml:"column_info,omitempty" json:"column_info,omitempty"`
}

func (m *RankModel) Clone() *RankModel {
	if m == nil {
		return nil
	}
	out := *m
	out.ColumnInfo = make([]core.ColumnGroup, 0, len(m.ColumnInfo))
	for _, g := range m.ColumnInfo {
		out.ColumnInfo = append(out.ColumnInfo, core.ColumnGroup{Name: g.Name, Fields: append([]string(nil), g.Fields...)})
	}
	if len(out.ColumnInfo) == 0 {
		out.ColumnInfo = nil
	}
	return &out
}

// OnlineFlow 是部署描述的根聚合。
type OnlineFlow struct {
	Source         *FeatureInfo            `yaml:"source" json:"source"`
	RandomModel    *RandomModel            `yaml:"random_model,omitempty" json:"random_model,omitempty"`
	CFModels       []*CFModel              `yaml:"cf_models,omitempty" json:"cf_models,omitempty"`
	TwoTowerModels []*TwoTowerModel        `yaml:"twotower_models,omitempty" json:"twotower_models,omitempty"`
	RankModels     []*RankModel            `yaml:"rank_models,omitempty" json:"rank_models,omitempty"`
	Services       *omap.Map[*ServiceInfo] `yaml:"services,omitempty" json:"services,omitempty"`
	Dockers        *omap.Map[*DockerInfo]  `yaml:"dockers,omitempty" json:"dockers,omitempty"`
	Checks         []string                `yaml:"checks,omitempty" json:"checks,omitempty"`
}

// CandidateModels 按 random、cf、twotower 的顺序返回所有召回模型。
func (f *OnlineFlow) CandidateModels() []CandidateModel {
	var out []CandidateModel
	if f.RandomModel != nil {
		out = append(out, f.RandomModel)
	}
	for _, m := range f.CFModels {
		out = append(out, m)
	}
	for _, m := range f.TwoTowerModels {
		out = append(out, m)
	}
	return out
}

// Service 返回 key 对应的服务。
func (f *OnlineFlow) Service(key string) (*ServiceInfo, bool) {
	return f.Services.Get(key)
}

// Clone 深拷贝整个 flow。
func (f *OnlineFlow) Clone() *OnlineFlow {
	if f == nil {
		return nil
	}
	out := &OnlineFlow{
		Source:      f.Source.Clone(),
		RandomModel: f.RandomModel.clone(),
		Checks:      append([]string(nil), f.Checks...),
	}
	for _, m := range f.CFModels {
		out.CFModels = append(out.CFModels, m.clone())
	}
	for _, m := range f.TwoTowerModels {
		out.TwoTowerModels = append(out.TwoTowerModels, m.clone())
	}
	for _, m := range f.RankModels {
		out.RankModels = append(out.RankModels, m.Clone())
	}
	if f.Services != nil {
		out.Services = omap.New[*ServiceInfo]()
		f.Services.Range(func(k string, v *ServiceInfo) bool {
			out.Services.Set(k, v.Clone())
			return true
		})
	}
	if f.Dockers != nil {
		out.Dockers = omap.New[*DockerInfo]()
		f.Dockers.Range(func(k string, v *DockerInfo) bool {
			out.Dockers.Set(k, v.Clone())
			return true
		})
	}
	if len(out.Checks) == 0 {
		out.Checks = nil
	}
	return out
}
