package flow

// CandidateModel 是召回模型的 tagged union：*RandomModel、*CFModel、*TwoTowerModel。
// 编译器对其做穷举 type switch，新增召回类型时在这里加实现即可被编译期检查覆盖。
type CandidateModel interface {
	ModelName() string
	candidate()
}

// RandomModel 随机/热门召回：按随机 id 关联预计算表。
type RandomModel struct {
	Name   string      `yaml:"name" json:"name"`
	Bound  int         `yaml:"bound,omitempty" json:"bound,omitempty"`
	Source *DataSource `yaml:"source" json:"source"`
}

func (m *RandomModel) ModelName() string { return m.Name }
func (*RandomModel) candidate()          {}

func (m *RandomModel) clone() *RandomModel {
	if m == nil {
		return nil
	}
	out := *m
	out.Source = m.Source.Clone()
	return &out
}

// CFModel 协同过滤召回：预计算表 key → [(item, weight)]。
type CFModel struct {
	Name   string      `yaml:"name" json:"name"`
	Source *DataSource `yaml:"source" json:"source"`
}

func (m *CFModel) ModelName() string { return m.Name }
func (*CFModel) candidate()          {}

func (m *CFModel) clone() *CFModel {
	if m == nil {
		return nil
	}
	out := *m
	out.Source = m.Source.Clone()
	return &out
}

// MilvusRef 指向向量库中的一个 collection。
type MilvusRef struct {
	Collection  string   `yaml:"collection" json:"collection"`
	Fields      []string `yaml:"fields,omitempty" json:"fields,omitempty"`
	ServiceName string   `yaml:"serviceName" json:"serviceName"`
}

// TwoTowerModel 双塔向量召回。数据模型中保留，当前版本不参与编译。
type TwoTowerModel struct {
	Name   string     `yaml:"name" json:"name"`
	Model  string     `yaml:"model" json:"model"`
	Milvus *MilvusRef `yaml:"milvus" json:"milvus"`
}

func (m *TwoTowerModel) ModelName() string { return m.Name }
func (*TwoTowerModel) candidate()          {}

func (m *TwoTowerModel) clone() *TwoTowerModel {
	if m == nil {
		return nil
	}
	out := *m
	if m.Milvus != nil {
		ref := *m.Milvus
		ref.Fields = append([]string(nil), m.Milvus.Fields...)
		if len(ref.Fields) == 0 {
			ref.Fields = nil
		}
		out.Milvus = &ref
	}
	return &out
}
