package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-musical-box-office/internal/domain/booking"
	"github.com/sanosuguru/go-musical-box-office/internal/pkg/logger"
)

// InventoryChecker は残数カウンタと予約台帳を突き合わせるインターフェース
type InventoryChecker interface {
	AuditInventory(ctx context.Context) ([]booking.InventoryDrift, error)
}

// InventoryAuditor は残数カウンタの乖離を定期的に検査するワーカー
type InventoryAuditor struct {
	checker  InventoryChecker
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewInventoryAuditor は新しい監査ワーカーを作成
func NewInventoryAuditor(checker InventoryChecker, interval time.Duration) *InventoryAuditor {
	return &InventoryAuditor{
		checker:  checker,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start は監査を開始。起動直後に1回実行し、以降は interval ごとに実行する
func (a *InventoryAuditor) Start(ctx context.Context) {
	logger.Info("残数監査ワーカー開始", zap.Duration("interval", a.interval))

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	defer close(a.doneCh)

	a.audit(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info("残数監査ワーカー停止（コンテキストキャンセル）")
			return
		case <-a.stopCh:
			logger.Info("残数監査ワーカー停止（シグナル受信）")
			return
		case <-ticker.C:
			a.audit(ctx)
		}
	}
}

// Stop は監査を停止
func (a *InventoryAuditor) Stop() {
	close(a.stopCh)
	<-a.doneCh
}

// audit は1回分の監査を行い、乖離のあった作品数を返す
func (a *InventoryAuditor) audit(ctx context.Context) int {
	log := logger.Get()
	log.Debug("残数監査開始")

	drifts, err := a.checker.AuditInventory(ctx)
	if err != nil {
		log.Error("残数監査失敗", zap.Error(err))
		return 0
	}

	drifted := 0
	for _, d := range drifts {
		if d.Delta() != 0 {
			drifted++
		}
	}
	if drifted > 0 {
		log.Warn("残数カウンタの乖離を検出", zap.Int("musicals", drifted))
	} else {
		log.Debug("残数カウンタの乖離なし", zap.Int("musicals", len(drifts)))
	}
	return drifted
}
