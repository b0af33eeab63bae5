package store

import (
	"context"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/rushteam/recflow/core"
)

// EtcdConfig 是 etcd 连接参数。
type EtcdConfig struct {
	Endpoints []string
	Username  string
	Password  string
	Timeout   time.Duration
}

// EtcdStore 是 etcd 实现的 ConfigStore。
type EtcdStore struct {
	client *clientv3.Client
}

func NewEtcdStore(cfg EtcdConfig) (*EtcdStore, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput, "store: etcd endpoints must not be empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client, err := clientv3.New(clientv3.Config{
		Endpoints:           cfg.Endpoints,
		Username:            cfg.Username,
		Password:            cfg.Password,
		DialTimeout:         timeout,
		DialKeepAliveTime:   timeout,
		PermitWithoutStream: true,
	})
	if err != nil {
		return nil, unavailable(KindEtcd, cfg.Endpoints[0], err)
	}
	return NewEtcdStoreWithClient(client), nil
}

// NewEtcdStoreWithClient 复用已有的 etcd 客户端。
func NewEtcdStoreWithClient(client *clientv3.Client) *EtcdStore {
	return &EtcdStore{client: client}
}

func (e *EtcdStore) Name() string { return KindEtcd }

func (e *EtcdStore) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := e.client.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(resp.Kvs) == 0 {
		return nil, core.ErrStoreNotFound
	}
	return resp.Kvs[0].Value, nil
}

func (e *EtcdStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := e.client.Put(ctx, key, string(value))
	return err
}

func (e *EtcdStore) Delete(ctx context.Context, key string) error {
	_, err := e.client.Delete(ctx, key)
	return err
}

func (e *EtcdStore) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}

var _ core.ConfigStore = (*EtcdStore)(nil)
