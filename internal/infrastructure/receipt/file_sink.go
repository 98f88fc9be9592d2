package receipt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileSink はレシートをテキストファイルへ追記する
type FileSink struct {
	mu   sync.Mutex
	path string
}

// NewFileSink は FileSink を作成する
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// Name はメトリクス用の出力先名
func (s *FileSink) Name() string { return "file" }

// Export はレシートを追記する。複数リクエストからの書き込みは直列化される
func (s *FileSink) Export(ctx context.Context, bookingID string, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("レシート出力先の作成に失敗: %w", err)
		}
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("レシートファイルを開けません: %w", err)
	}
	if _, err := f.WriteString(text); err != nil {
		f.Close()
		return fmt.Errorf("レシートの書き込みに失敗 (booking=%s): %w", bookingID, err)
	}
	return f.Close()
}
