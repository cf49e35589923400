package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FS 以本地文件系统实现 Provider，公开 URL 由静态路由前缀拼出。
type FS struct {
	dir     string
	urlPath string
}

// NewFS 构造 FS，目录不存在时自动创建。
func NewFS(dir, urlPath string) (*FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create dir: %w", err)
	}
	return &FS{dir: abs, urlPath: strings.TrimRight(urlPath, "/")}, nil
}

// Save 将 data 写入 dir/name 并返回公开 URL。
// name 只允许单层文件名，防止目录穿越。
func (f *FS) Save(name string, data []byte) (string, error) {
	cleaned := filepath.Base(filepath.Clean(name))
	if cleaned == "" || cleaned == "." || cleaned == string(os.PathSeparator) {
		return "", fmt.Errorf("storage: invalid object name: %s", name)
	}

	path := filepath.Join(f.dir, cleaned)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write object: %w", err)
	}

	return f.urlPath + "/" + cleaned, nil
}
