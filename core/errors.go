package core

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 支持错误检查函数（IsXXX）
//
// 使用场景：
//   - Store 错误：NOT_FOUND, UNAVAILABLE
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "UNAVAILABLE"）
	Message string // 错误消息
	Module  string // 模块名称（如 "store", "source"）
}

func (e *DomainError) Error() string {
	return e.Message
}

// GetDomainError 获取 DomainError，如果不是则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	if domainErr, ok := err.(*DomainError); ok {
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
	ErrorCodeNotFound    = "NOT_FOUND"   // 资源不存在
	ErrorCodeUnavailable = "UNAVAILABLE" // 服务不可用
)

// 模块名称常量
const (
	ModuleStore = "store" // 缓存存储模块
)

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == ErrorCodeUnavailable
	}
	return false
}

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == ErrorCodeNotFound
	}
	return false
}
