package store

import (
	"context"

	"github.com/hashicorp/consul/api"

	"github.com/rushteam/recflow/core"
)

// ConsulStore 是 Consul KV 实现的 ConfigStore，推荐服务默认从这里拉取配置。
type ConsulStore struct {
	kv *api.KV
}

// NewConsulStore 创建 Consul 客户端；address 形如 localhost:8500，token 可为空。
func NewConsulStore(address, token string) (*ConsulStore, error) {
	cfg := api.DefaultConfig()
	if address != "" {
		cfg.Address = address
	}
	cfg.Token = token
	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, unavailable(KindConsul, cfg.Address, err)
	}
	return &ConsulStore{kv: client.KV()}, nil
}

func (c *ConsulStore) Name() string { return KindConsul }

func (c *ConsulStore) Get(ctx context.Context, key string) ([]byte, error) {
	pair, _, err := c.kv.Get(key, (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, err
	}
	if pair == nil {
		return nil, core.ErrStoreNotFound
	}
	return pair.Value, nil
}

func (c *ConsulStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := c.kv.Put(&api.KVPair{Key: key, Value: value}, (&api.WriteOptions{}).WithContext(ctx))
	return err
}

func (c *ConsulStore) Delete(ctx context.Context, key string) error {
	_, err := c.kv.Delete(key, (&api.WriteOptions{}).WithContext(ctx))
	return err
}

// Close 无需释放资源，Consul 客户端基于无状态 HTTP。
func (c *ConsulStore) Close() error {
	return nil
}

var _ core.ConfigStore = (*ConsulStore)(nil)
