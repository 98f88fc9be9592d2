package receipt

import (
	"context"
	"errors"
	"fmt"

	"github.com/sanosuguru/go-musical-box-office/internal/domain/booking"
	"github.com/sanosuguru/go-musical-box-office/internal/pkg/metrics"
)

type named interface {
	Name() string
}

// MultiSink は複数の出力先へ順に出力する
// 1つが失敗しても残りへの出力は続け、失敗をまとめて返す
type MultiSink struct {
	sinks []booking.ReceiptSink
}

// NewMultiSink は MultiSink を作成する。nil の出力先は無視する
func NewMultiSink(sinks ...booking.ReceiptSink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Len は出力先の数を返す
func (m *MultiSink) Len() int {
	return len(m.sinks)
}

// Export はすべての出力先へレシートを出力する
func (m *MultiSink) Export(ctx context.Context, bookingID string, text string) error {
	var errs []error
	for i, s := range m.sinks {
		name := fmt.Sprintf("sink%d", i)
		if n, ok := s.(named); ok {
			name = n.Name()
		}
		err := s.Export(ctx, bookingID, text)
		metrics.Get().RecordReceiptExport(name, err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

var (
	_ booking.ReceiptSink = (*FileSink)(nil)
	_ booking.ReceiptSink = (*AMQPSink)(nil)
	_ booking.ReceiptSink = (*MultiSink)(nil)
)
