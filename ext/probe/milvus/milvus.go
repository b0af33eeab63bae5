// Package milvus 为向量库服务注册就绪探测：连接 Milvus 并确认双塔召回引用的 collection 已创建。
//
// 注意：此实现位于扩展模块中，需要单独引入：
//
//	import _ "github.com/rushteam/recflow/ext/probe/milvus"
package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"github.com/rushteam/recflow/probe"
)

// Client 是探测所需的 Milvus 客户端能力。
type Client interface {
	HasCollection(ctx context.Context, collection string) (bool, error)
	Close(ctx context.Context) error
}

// Dialer 根据目标创建客户端，测试中可替换。
type Dialer func(ctx context.Context, t probe.Target) (Client, error)

func init() {
	probe.Register("milvus", NewChecker(DialSDK))
}

// Checker 是 Milvus 的 probe.Checker 实现。
type Checker struct {
	dial Dialer
}

func NewChecker(dial Dialer) *Checker {
	return &Checker{dial: dial}
}

func (c *Checker) Check(ctx context.Context, t probe.Target) error {
	client, err := c.dial(ctx, t)
	if err != nil {
		return fmt.Errorf("milvus connect %s: %w", t.Addr(), err)
	}
	defer client.Close(context.Background())

	for _, coll := range t.Collections {
		ok, err := client.HasCollection(ctx, coll)
		if err != nil {
			return fmt.Errorf("milvus has collection %s: %w", coll, err)
		}
		if !ok {
			return fmt.Errorf("milvus collection %s not found on %s", coll, t.Key)
		}
	}
	return nil
}

// DialSDK 使用官方 SDK 建立连接，凭据取自 MILVUS_USER / MILVUS_PASSWORD。
func DialSDK(ctx context.Context, t probe.Target) (Client, error) {
	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  t.Addr(),
		Username: t.Environment.Value("MILVUS_USER"),
		Password: t.Environment.Value("MILVUS_PASSWORD"),
	})
	if err != nil {
		return nil, err
	}
	return &sdkClient{client: c}, nil
}

type sdkClient struct {
	client *milvusclient.Client
}

func (s *sdkClient) HasCollection(ctx context.Context, collection string) (bool, error) {
	return s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(collection))
}

func (s *sdkClient) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}
