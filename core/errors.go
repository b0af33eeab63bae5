package core

import (
	"errors"
	"fmt"
)

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 支持错误检查函数（IsXXX），可穿透 fmt.Errorf("%w") 包装
//
// 使用场景：
//   - flow 校验：SCHEMA_VALIDATION, REFERENTIAL
//   - 拓扑生成：CONFIG_STATE
//   - 配置中心：NOT_FOUND, UNAVAILABLE
type DomainError struct {
	Code    string // 错误代码（如 "SCHEMA_VALIDATION", "REFERENTIAL"）
	Message string // 错误消息
	Module  string // 模块名称（如 "flow", "compiler", "topology"）
}

func (e *DomainError) Error() string {
	return e.Message
}

// IsDomainError 检查错误链中是否存在 DomainError
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// GetDomainError 获取错误链中的 DomainError，如果不存在则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// 错误代码常量
const (
	// flow/编译相关
	ErrorCodeSchemaValidation = "SCHEMA_VALIDATION" // 必填字段或 key 缺失
	ErrorCodeReferential      = "REFERENTIAL"       // 名称引用无法解析
	ErrorCodeConfigState      = "CONFIG_STATE"      // 内部不变量被破坏

	// 通用错误代码
	ErrorCodeNotFound     = "NOT_FOUND"     // 资源不存在
	ErrorCodeNotSupported = "NOT_SUPPORTED" // 操作不支持
	ErrorCodeUnavailable  = "UNAVAILABLE"   // 服务不可用
	ErrorCodeInvalidInput = "INVALID_INPUT" // 输入无效
)

// 模块名称常量
const (
	ModuleFlow     = "flow"     // flow 规范化
	ModulePipeline = "pipeline" // 配置节点模型
	ModuleCompiler = "compiler" // 配置编译
	ModuleTopology = "topology" // 容器拓扑
	ModuleStore    = "store"    // 配置中心
	ModuleProbe    = "probe"    // 就绪探测
	ModuleExecutor = "executor" // 编排执行
)

// SchemaError 构造 SCHEMA_VALIDATION 错误
func SchemaError(module, format string, args ...any) *DomainError {
	return NewDomainError(module, ErrorCodeSchemaValidation, fmt.Sprintf(format, args...))
}

// ReferentialError 构造 REFERENTIAL 错误
func ReferentialError(module, format string, args ...any) *DomainError {
	return NewDomainError(module, ErrorCodeReferential, fmt.Sprintf(format, args...))
}

// ConfigStateError 构造 CONFIG_STATE 错误
func ConfigStateError(module, format string, args ...any) *DomainError {
	return NewDomainError(module, ErrorCodeConfigState, fmt.Sprintf(format, args...))
}

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}

// IsSchemaValidation 检查错误是否为 SCHEMA_VALIDATION
func IsSchemaValidation(err error) bool {
	return hasCode(err, ErrorCodeSchemaValidation)
}

// IsReferential 检查错误是否为 REFERENTIAL
func IsReferential(err error) bool {
	return hasCode(err, ErrorCodeReferential)
}

// IsConfigState 检查错误是否为 CONFIG_STATE
func IsConfigState(err error) bool {
	return hasCode(err, ErrorCodeConfigState)
}

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool {
	return hasCode(err, ErrorCodeNotFound)
}

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool {
	return hasCode(err, ErrorCodeNotSupported)
}

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool {
	return hasCode(err, ErrorCodeUnavailable)
}
