// Package identify 实现地址学习交换协议
//
// 每条新连接建立后，双方各自打开一条 /ipfs/id/1.0.0 流，
// 由对端回送自己的身份信息：
//   - 协议版本与代理版本
//   - 公钥
//   - 监听地址
//   - 支持的协议
//   - observedAddr：对端看到的本节点地址
//
// # 协议 ID
//
//	/ipfs/id/1.0.0
//
// # 流程
//
//  1. 连接建立后自动发起（客户端方向）
//  2. 对端打开的 identify 流由 Handler 应答（服务端方向）
//  3. 收到的监听地址写入地址簿，observedAddr 作为观测地址记录
//
// IdentifyWait 等待两个方向都完成。超时后连接标记为未识别，
// 但连接本身保持打开。观测地址只作为打洞候选地址使用。
package identify
