package client

// RenewDelay 导出给外部测试包
var RenewDelay = renewDelay
