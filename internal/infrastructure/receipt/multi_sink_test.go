package receipt

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSink struct {
	name  string
	err   error
	calls []string
}

func (s *stubSink) Name() string { return s.name }

func (s *stubSink) Export(ctx context.Context, bookingID string, text string) error {
	s.calls = append(s.calls, bookingID)
	return s.err
}

func TestMultiSink_Export(t *testing.T) {
	ctx := context.Background()

	t.Run("すべての出力先へ出力する", func(t *testing.T) {
		a, b := &stubSink{name: "a"}, &stubSink{name: "b"}
		sink := NewMultiSink(a, nil, b)

		require.NoError(t, sink.Export(ctx, "b1", "text"))
		assert.Equal(t, 2, sink.Len())
		assert.Equal(t, []string{"b1"}, a.calls)
		assert.Equal(t, []string{"b1"}, b.calls)
	})

	t.Run("1つが失敗しても残りへ出力する", func(t *testing.T) {
		errDisk := errors.New("disk full")
		a, b := &stubSink{name: "file", err: errDisk}, &stubSink{name: "amqp"}
		sink := NewMultiSink(a, b)

		err := sink.Export(ctx, "b1", "text")
		require.Error(t, err)
		assert.ErrorIs(t, err, errDisk)
		assert.Contains(t, err.Error(), "file")
		assert.Equal(t, []string{"b1"}, b.calls)
	})

	t.Run("出力先がなければ何もしない", func(t *testing.T) {
		assert.NoError(t, NewMultiSink().Export(ctx, "b1", "text"))
	})
}
