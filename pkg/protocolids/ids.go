package protocolids

import "github.com/dep2p/go-natpunch/pkg/types"

// ============================================================================
//                              系统协议
// ============================================================================

// Identify 地址学习交换协议
const Identify types.ProtocolID = "/ipfs/id/1.0.0"

// Ping 存活检测协议
const Ping types.ProtocolID = "/ipfs/ping/1.0.0"

// ============================================================================
//                              中继协议（Circuit Relay v2）
// ============================================================================

// RelayHop 客户端与中继之间的协议（预约、发起电路）
const RelayHop types.ProtocolID = "/libp2p/circuit/relay/0.2.0/hop"

// RelayStop 中继与目标节点之间的协议（电路到达通知）
const RelayStop types.ProtocolID = "/libp2p/circuit/relay/0.2.0/stop"

// ============================================================================
//                              打洞协议
// ============================================================================

// DCUtR 经中继协调的直连升级协议
const DCUtR types.ProtocolID = "/libp2p/dcutr"

// ============================================================================
//                              发布订阅
// ============================================================================

// Meshsub gossipsub v1.1
const Meshsub types.ProtocolID = "/meshsub/1.1.0"

// MeshsubV10 gossipsub v1.0，仅用于兼容协商
const MeshsubV10 types.ProtocolID = "/meshsub/1.0.0"

// ============================================================================
//                              连接升级
// ============================================================================

// Noise 安全握手协议
const Noise types.ProtocolID = "/noise"

// Yamux 流多路复用协议
const Yamux types.ProtocolID = "/yamux/1.0.0"

// System 返回节点默认挂载的系统协议
func System() []types.ProtocolID {
	return []types.ProtocolID{Identify, Ping, RelayStop, DCUtR}
}

// IsRelay 判断是否为中继协议
func IsRelay(id types.ProtocolID) bool {
	return id == RelayHop || id == RelayStop
}
