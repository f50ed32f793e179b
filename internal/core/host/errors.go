package host

import "errors"

var (
	// ErrHostClosed Host 已关闭
	ErrHostClosed = errors.New("host is closed")

	// ErrNoProtocol 未指定协议
	ErrNoProtocol = errors.New("no protocol specified")

	// ErrMissingDependency 缺少必需依赖
	ErrMissingDependency = errors.New("host: missing dependency")
)
