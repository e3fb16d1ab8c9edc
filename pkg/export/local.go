// Package export 把生成的反馈文件写到本机导出目录。
package export

import (
	"fmt"
	"os"
	"path/filepath"

	"pand-feedback-go/pkg/log"
)

// LocalWriter 把文件写入 dir。dir 为空时 Emit 不做任何事。
type LocalWriter struct {
	dir string
}

// NewLocalWriter 创建一个新的 LocalWriter。
func NewLocalWriter(dir string) *LocalWriter {
	return &LocalWriter{dir: dir}
}

// Dir 返回导出目录。
func (w *LocalWriter) Dir() string {
	return w.dir
}

// Emit 以 UTF-8 纯文本写入文件，同名文件会被覆盖。
func (w *LocalWriter) Emit(filename, content string) error {
	if w.dir == "" {
		return nil
	}
	// 文件名已经过清理，这里再做一次防御，只取最后一段
	name := filepath.Base(filename)
	if name != filename || name == "." || name == ".." {
		return fmt.Errorf("非法的文件名: %q", filename)
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("创建导出目录失败: %w", err)
	}
	target := filepath.Join(w.dir, name)
	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		return fmt.Errorf("写入导出文件失败: %w", err)
	}
	log.Infof("[LocalWriter] 已写入本机文件: %s", target)
	return nil
}
