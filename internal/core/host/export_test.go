package host

// ExpandUnspecified 导出给外部测试包
var ExpandUnspecified = expandUnspecified
