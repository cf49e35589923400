// Package storage 抽象生成图片的对象存储。
package storage

// Provider 负责保存一份图片字节并返回可公开访问的 URL。
type Provider interface {
	// Save 将 data 写入以 name 命名的对象并返回公开 URL。
	Save(name string, data []byte) (string, error)
}
