package config

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig 配置无效，所有校验错误都包装此错误
var ErrInvalidConfig = errors.New("invalid configuration")

// FieldError 单个字段的校验错误
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Unwrap 使 errors.Is(err, ErrInvalidConfig) 成立
func (e *FieldError) Unwrap() error {
	return ErrInvalidConfig
}

func fieldErr(field, format string, args ...interface{}) error {
	return &FieldError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func positive(field string, d Duration) error {
	if d <= 0 {
		return fieldErr(field, "must be positive, got %s", d)
	}
	return nil
}

// ValidateAll 验证整个配置
func ValidateAll(c *Config) error {
	if c == nil {
		return fieldErr("config", "is nil")
	}
	return c.Validate()
}

// MustValidate 验证配置，失败时 panic
//
// 仅用于初始化阶段或测试代码。
func MustValidate(c *Config) {
	if err := ValidateAll(c); err != nil {
		panic(err)
	}
}
