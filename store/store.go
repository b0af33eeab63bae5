// Package store 提供 core.ConfigStore 的各个实现，编译产物通过它发布到配置中心。
//
// 注意：此包只包含实现，接口定义在 core 包。
//
// 示例：
//
//	s, err := store.Open(ctx, store.Config{Kind: store.KindConsul, Endpoints: []string{"localhost:8500"}})
//	err = store.Publish(ctx, s, store.DefaultKeyPath(), doc)
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rushteam/recflow/core"
)

// 存储类型
const (
	KindMemory = "memory"
	KindRedis  = "redis"
	KindEtcd   = "etcd"
	KindConsul = "consul"
)

// 默认值
const (
	DefaultPrefix  = "config"
	DefaultContext = "recommend"
	DefaultDataKey = "data"

	DefaultTimeout = 5 * time.Second
)

// Config 描述如何连接配置中心。
type Config struct {
	Kind      string
	Endpoints []string
	Username  string
	Password  string
	Token     string
	DB        int
	Timeout   time.Duration
}

// Open 按 Kind 创建 ConfigStore，未知类型返回 ErrStoreNotSupported。
func Open(ctx context.Context, cfg Config) (core.ConfigStore, error) {
	endpoint := ""
	if len(cfg.Endpoints) > 0 {
		endpoint = cfg.Endpoints[0]
	}
	switch strings.ToLower(cfg.Kind) {
	case KindMemory:
		return NewMemoryStore(), nil
	case KindRedis:
		if endpoint == "" {
			endpoint = "localhost:6379"
		}
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return NewRedisStore(ctx, endpoint, cfg.Password, cfg.DB)
	case KindEtcd:
		return NewEtcdStore(EtcdConfig{
			Endpoints: cfg.Endpoints,
			Username:  cfg.Username,
			Password:  cfg.Password,
			Timeout:   cfg.Timeout,
		})
	case KindConsul, "":
		return NewConsulStore(endpoint, cfg.Token)
	}
	return nil, fmt.Errorf("%w: %s", core.ErrStoreNotSupported, cfg.Kind)
}

// KeyPath 是配置文档在配置中心的位置：{prefix}/{context}/{data_key}。
type KeyPath struct {
	Prefix  string
	Context string
	DataKey string
}

// DefaultKeyPath 返回推荐服务默认读取的位置 config/recommend/data。
func DefaultKeyPath() KeyPath {
	return KeyPath{Prefix: DefaultPrefix, Context: DefaultContext, DataKey: DefaultDataKey}
}

// String 拼接非空段，去掉多余的斜杠。
func (p KeyPath) String() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.Prefix, p.Context, p.DataKey} {
		if s = strings.Trim(s, "/"); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "/")
}

// Publish 把文档写入 path，空文档或空路径视为输入错误。
func Publish(ctx context.Context, s core.ConfigStore, path KeyPath, doc string) error {
	key := path.String()
	if key == "" {
		return core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput, "store: key path must not be empty")
	}
	if doc == "" {
		return core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput, "store: document must not be empty")
	}
	if err := s.Put(ctx, key, []byte(doc)); err != nil {
		return fmt.Errorf("store: publish to %s %s: %w", s.Name(), key, err)
	}
	return nil
}
