// Package muxer 基于 go-yamux 实现 /yamux/1.0.0 流多路复用
//
// 安全连接升级完成后由 upgrader 调用 Transport.NewConn：
// 监听方（或同时打开时的响应方）为 server，拨号方为 client。
package muxer
