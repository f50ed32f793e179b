package noise

import (
	"go.uber.org/fx"

	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/lib/crypto"
)

// Result Noise 模块输出
type Result struct {
	fx.Out

	Transport *Transport
	Secure    pkgif.SecureTransport `group:"security"`
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("security/noise",
		fx.Provide(Provide),
	)
}

// Provide 用节点私钥创建 Noise 传输
func Provide(priv crypto.PrivateKey) (Result, error) {
	t, err := New(priv)
	if err != nil {
		return Result{}, err
	}
	return Result{Transport: t, Secure: t}, nil
}
