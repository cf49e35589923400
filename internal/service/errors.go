package service

import "errors"

// ErrUpstreamGeneration 表示文本模型调用失败或返回了无法解析的结构。
// 遇到该错误时计划表保持不动，下一个到期点重试。
var ErrUpstreamGeneration = errors.New("upstream generation failed")
