// Package lib 包含基础设施工具库
//
// 本目录包含与具体组件无关的通用工具库：
//
//   - crypto: 密钥、签名、PeerID
//   - multiaddr: 多地址解析与电路地址处理
//   - proto: 中继、打洞、identify、GossipSub 的线上消息编解码
//
// # 使用示例
//
//	import (
//	    "github.com/dep2p/go-natpunch/pkg/lib/crypto"
//	    "github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
//	)
package lib
