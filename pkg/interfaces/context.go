package interfaces

import "context"

type simConnectKey struct{}

type simConnect struct {
	isClient bool
	reason   string
}

// WithSimultaneousConnect 标记本次拨号为同时打开
//
// 打洞时双方同时拨号，TCP 可能合并为一条双方都视为出站的连接，
// 此时由 isClient 决定安全握手中谁作为发起方。
func WithSimultaneousConnect(ctx context.Context, isClient bool, reason string) context.Context {
	return context.WithValue(ctx, simConnectKey{}, simConnect{isClient: isClient, reason: reason})
}

// GetSimultaneousConnect 读取同时打开标记
func GetSimultaneousConnect(ctx context.Context) (simOpen bool, isClient bool, reason string) {
	v, ok := ctx.Value(simConnectKey{}).(simConnect)
	if !ok {
		return false, false, ""
	}
	return true, v.isClient, v.reason
}

type forceDirectKey struct{}

// WithForceDirectDial 要求拨号建立新的直连，即使已有中继连接
func WithForceDirectDial(ctx context.Context, reason string) context.Context {
	return context.WithValue(ctx, forceDirectKey{}, reason)
}

// GetForceDirectDial 读取强制直连标记
func GetForceDirectDial(ctx context.Context) (force bool, reason string) {
	v, ok := ctx.Value(forceDirectKey{}).(string)
	return ok, v
}
