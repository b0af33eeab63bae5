package pipeline

import (
	"strings"

	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/pkg/omap"
)

// SourceKind 是数据源类型。
type SourceKind string

const (
	SourceRequest SourceKind = "Request" // 请求本身，默认类型
	SourceMongoDB SourceKind = "MongoDB"
	SourceJDBC    SourceKind = "JDBC"
	SourceRedis   SourceKind = "Redis"
)

// JDBC 默认值
const (
	DefaultJDBCUser     = "root"
	DefaultJDBCPassword = "example"
	MySQLDriver         = "com.mysql.cj.jdbc.Driver"
)

// Source 是一个数据源连接。输出顺序：name, kind, options。
type Source struct {
	Name    string
	Kind    SourceKind
	Options *omap.Map[any]
}

// NewSource 创建数据源并按类型补全默认选项：
//   - JDBC：user/password 默认 root/example，jdbc:mysql 的 driver 默认 com.mysql.cj.jdbc.Driver
//   - Redis：未配置 standalone/sentinel/cluster 时使用 localhost:6379 单机
func NewSource(name string, kind SourceKind, options *omap.Map[any]) (*Source, error) {
	if kind == "" {
		kind = SourceRequest
	}
	opts := options.Clone()
	if opts == nil {
		opts = omap.New[any]()
	}
	switch kind {
	case SourceJDBC:
		if str(opts, "user") == "" {
			opts.Set("user", DefaultJDBCUser)
		}
		if str(opts, "password") == "" {
			opts.Set("password", DefaultJDBCPassword)
		}
		if strings.HasPrefix(str(opts, "uri"), "jdbc:mysql") && str(opts, "driver") == "" {
			opts.Set("driver", MySQLDriver)
		}
	case SourceRedis:
		if !opts.Has("standalone") && !opts.Has("sentinel") && !opts.Has("cluster") {
			opts.Set("standalone", omap.New[any]().Set("host", "localhost").Set("port", 6379))
		}
	}
	s := &Source{Name: name, Kind: kind, Options: opts}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Source) NodeName() string { return s.Name }
func (s *Source) NodeKind() Kind   { return KindSource }
func (s *Source) Refs() []Ref      { return nil }

func (s *Source) Validate() error {
	if s.Name == "" {
		return core.SchemaError(core.ModulePipeline, "source: name must not be empty")
	}
	uri := str(s.Options, "uri")
	switch s.Kind {
	case SourceMongoDB:
		if !strings.HasPrefix(uri, "mongodb://") {
			return core.SchemaError(core.ModulePipeline, "source %s: mongodb uri must start with mongodb://", s.Name)
		}
	case SourceJDBC:
		if !strings.HasPrefix(uri, "jdbc:") {
			return core.SchemaError(core.ModulePipeline, "source %s: jdbc uri must start with jdbc:", s.Name)
		}
		if strings.HasPrefix(uri, "jdbc:mysql") && str(s.Options, "driver") != MySQLDriver {
			return core.SchemaError(core.ModulePipeline, "source %s: jdbc mysql driver must be %s", s.Name, MySQLDriver)
		}
	case SourceRequest, SourceRedis:
	default:
		return core.SchemaError(core.ModulePipeline, "source %s: unknown kind %q", s.Name, s.Kind)
	}
	return nil
}

// Canonical 输出 name, kind, options；Request 为默认类型，不输出 kind。
func (s *Source) Canonical() *omap.Map[any] {
	m := omap.New[any]().Set("name", s.Name)
	if s.Kind != "" && s.Kind != SourceRequest {
		m.Set("kind", string(s.Kind))
	}
	putMap(m, "options", s.Options)
	return m
}

func str(m *omap.Map[any], key string) string {
	s, _ := m.Value(key).(string)
	return s
}

// SourceTable 是数据源上的一张表。
// 输出顺序：name, source, table, prefix, columns, sqlFilters, filters, options。
type SourceTable struct {
	Name       string
	Source     string
	Table      string
	Prefix     string
	Columns    core.Columns
	SQLFilters []string
	Filters    []any
	Options    *omap.Map[any]
}

func (t *SourceTable) NodeName() string { return t.Name }
func (t *SourceTable) NodeKind() Kind   { return KindSourceTable }

func (t *SourceTable) Refs() []Ref {
	return refs("source", []string{t.Source}, KindSource)
}

func (t *SourceTable) Validate() error {
	if t.Name == "" {
		return core.SchemaError(core.ModulePipeline, "sourceTable: name must not be empty")
	}
	if t.Source == "" {
		return core.SchemaError(core.ModulePipeline, "sourceTable %s: source must not be empty", t.Name)
	}
	return nil
}

func (t *SourceTable) Canonical() *omap.Map[any] {
	m := omap.New[any]().Set("name", t.Name).Set("source", t.Source)
	putString(m, "table", t.Table)
	putString(m, "prefix", t.Prefix)
	putAny(m, "columns", t.Columns.Canonical())
	putList(m, "sqlFilters", t.SQLFilters)
	putAny(m, "filters", t.Filters)
	putMap(m, "options", t.Options)
	return m
}
