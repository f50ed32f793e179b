// Package upgrader 把原始连接升级为安全的多路复用连接
//
// 升级流程：
//  1. multistream-select 协商安全协议（/noise）
//  2. 安全握手，得到并校验远端 PeerID
//  3. multistream-select 协商多路复用协议（/yamux/1.0.0）
//  4. 建立多路复用会话
//
// 角色：入站连接恒为 server；出站连接默认为 client。打洞时的出站拨号
// 通过 interfaces.WithSimultaneousConnect 显式指定角色，保证 TCP 同时
// 打开合并成一条连接时双方角色互补。
package upgrader
