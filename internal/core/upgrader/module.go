package upgrader

import (
	"go.uber.org/fx"

	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
)

// Params 升级器依赖，安全层与多路复用按注册顺序协商
type Params struct {
	fx.In

	Security []pkgif.SecureTransport `group:"security"`
	Muxers   []pkgif.StreamMuxer     `group:"muxers"`
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("upgrader",
		fx.Provide(ProvideUpgrader),
	)
}

// ProvideUpgrader 提供 Upgrader
func ProvideUpgrader(p Params) (pkgif.Upgrader, error) {
	return New(p.Security, p.Muxers)
}
