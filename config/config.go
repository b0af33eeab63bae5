// Package config 加载命令行工具的运行配置：可选的配置文件，加上 RECFLOW_ 前缀的环境变量。
//
// 环境变量名由配置 key 转换而来，例如 store.endpoints → RECFLOW_STORE_ENDPOINTS，
// 列表用逗号分隔。
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rushteam/recflow/probe"
	"github.com/rushteam/recflow/store"
)

// EnvPrefix 是环境变量前缀。
const EnvPrefix = "RECFLOW"

// Config 是完整的运行配置。
type Config struct {
	FlowFile    string `mapstructure:"flow_file"`
	OutputDir   string `mapstructure:"output_dir"`
	ComposeFile string `mapstructure:"compose_file"`
	Format      string `mapstructure:"format"` // yaml | json
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // console | json

	Store StoreConfig `mapstructure:"store"`
	Probe ProbeConfig `mapstructure:"probe"`
}

// StoreConfig 是配置中心连接与发布位置。
type StoreConfig struct {
	Kind      string        `mapstructure:"kind"`
	Endpoints []string      `mapstructure:"endpoints"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
	Token     string        `mapstructure:"token"`
	DB        int           `mapstructure:"db"`
	Prefix    string        `mapstructure:"prefix"`
	Context   string        `mapstructure:"context"`
	DataKey   string        `mapstructure:"data_key"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// ProbeConfig 控制启动后的就绪探测。
type ProbeConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Host          string        `mapstructure:"host"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("flow_file", "")
	v.SetDefault("output_dir", ".")
	v.SetDefault("compose_file", "docker-compose.yml")
	v.SetDefault("format", "yaml")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")

	v.SetDefault("store.kind", store.KindConsul)
	v.SetDefault("store.endpoints", []string{"localhost:8500"})
	v.SetDefault("store.username", "")
	v.SetDefault("store.password", "")
	v.SetDefault("store.token", "")
	v.SetDefault("store.db", 0)
	v.SetDefault("store.prefix", store.DefaultPrefix)
	v.SetDefault("store.context", store.DefaultContext)
	v.SetDefault("store.data_key", store.DefaultDataKey)
	v.SetDefault("store.timeout", store.DefaultTimeout)

	v.SetDefault("probe.enabled", false)
	v.SetDefault("probe.host", "localhost")
	v.SetDefault("probe.timeout", probe.DefaultTimeout)
	v.SetDefault("probe.max_concurrent", probe.DefaultMaxConcurrent)
}

// Load 读取配置。path 为空时只使用默认值与环境变量；
// 指定的文件不存在或格式错误时返回错误。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查枚举类取值。
func (c *Config) Validate() error {
	var errs []error
	switch c.Format {
	case "yaml", "json":
	default:
		errs = append(errs, fmt.Errorf("config: format must be yaml or json, got %q", c.Format))
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("config: log_format must be console or json, got %q", c.LogFormat))
	}
	switch strings.ToLower(c.Store.Kind) {
	case store.KindMemory, store.KindRedis, store.KindEtcd, store.KindConsul:
	default:
		errs = append(errs, fmt.Errorf("config: unsupported store kind %q", c.Store.Kind))
	}
	return errors.Join(errs...)
}

// StoreOptions 转换为 store.Open 的参数。
func (s StoreConfig) StoreOptions() store.Config {
	return store.Config{
		Kind:      s.Kind,
		Endpoints: append([]string(nil), s.Endpoints...),
		Username:  s.Username,
		Password:  s.Password,
		Token:     s.Token,
		DB:        s.DB,
		Timeout:   s.Timeout,
	}
}

// KeyPath 返回配置文档的发布位置。
func (s StoreConfig) KeyPath() store.KeyPath {
	return store.KeyPath{Prefix: s.Prefix, Context: s.Context, DataKey: s.DataKey}
}

// ProbeOptions 转换为 probe.Run 的参数。
func (p ProbeConfig) ProbeOptions() probe.Options {
	return probe.Options{Timeout: p.Timeout, MaxConcurrent: p.MaxConcurrent}
}
