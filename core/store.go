package core

import "context"

// ConfigStore 是分布式配置中心的领域接口，编译产物通过它发布给推荐服务。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（store）实现
//   - 只承载字节，不关心文档格式
//
// 实现：
//   - store.MemoryStore（测试/开发）
//   - store.RedisStore
//   - store.EtcdStore
//   - store.ConsulStore
type ConfigStore interface {
	// Name 返回存储后端名称（用于日志）
	Name() string

	// Put 写入 key
	Put(ctx context.Context, key string, value []byte) error

	// Get 读取 key，不存在时返回 ErrStoreNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete 删除 key
	Delete(ctx context.Context, key string) error

	// Close 关闭连接/释放资源
	Close() error
}

// Store 错误定义（使用统一的 DomainError）
var (
	// ErrStoreNotFound 表示 key 不存在
	ErrStoreNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: key not found")

	// ErrStoreNotSupported 表示存储类型不支持
	ErrStoreNotSupported = NewDomainError(ModuleStore, ErrorCodeNotSupported, "store: kind not supported")
)

// IsStoreNotFound 检查错误是否为 key 不存在
func IsStoreNotFound(err error) bool {
	domainErr := GetDomainError(err)
	if domainErr != nil && domainErr.Module == ModuleStore {
		return domainErr.Code == ErrorCodeNotFound
	}
	return false
}
