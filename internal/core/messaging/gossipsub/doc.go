// Package gossipsub 实现 /meshsub/1.1.0 发布订阅覆盖网络
//
// 每个主题维护一个部分网格（mesh）：
//   - 对端宣告订阅本地已订阅的主题时，网格未满（< Dhi）即 GRAFT；
//   - 心跳将网格规模维持在 [Dlo, Dhi]，向网格外的主题节点发送 IHAVE，
//     并移动消息缓存窗口；
//   - 连接断开时对端从所有网格中移除。
//
// 发布时洪泛给所有已知的主题订阅者，转发只发给网格节点和显式节点，
// 不回发给来源节点和消息发起者。每个主题有一个带时间窗口的已见集合，
// 同一 (topic, id) 只向本地投递一次。
//
// 开启 StrictSigning 时，签名无效或缺失的消息被静默丢弃，不向对端报告。
package gossipsub
