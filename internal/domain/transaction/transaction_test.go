package transaction

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeTx struct {
	commitErr  error
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit() error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback() error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeManager struct {
	tx  *fakeTx
	err error
}

func (m *fakeManager) Begin(context.Context) (Tx, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.tx, nil
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("成功するとコミットされる", func(t *testing.T) {
		m := &fakeManager{tx: &fakeTx{}}
		err := Run(ctx, m, func(Tx) error { return nil })
		assert.NoError(t, err)
		assert.True(t, m.tx.committed)
		assert.False(t, m.tx.rolledBack)
	})

	t.Run("fnが失敗するとロールバックされる", func(t *testing.T) {
		m := &fakeManager{tx: &fakeTx{}}
		want := errors.New("insert failed")
		err := Run(ctx, m, func(Tx) error { return want })
		assert.ErrorIs(t, err, want)
		assert.False(t, m.tx.committed)
		assert.True(t, m.tx.rolledBack)
	})

	t.Run("コミットの失敗はそのまま返す", func(t *testing.T) {
		want := errors.New("connection lost")
		m := &fakeManager{tx: &fakeTx{commitErr: want}}
		err := Run(ctx, m, func(Tx) error { return nil })
		assert.ErrorIs(t, err, want)
		assert.True(t, m.tx.rolledBack)
	})

	t.Run("開始できなければfnは呼ばれない", func(t *testing.T) {
		m := &fakeManager{err: errors.New("too many connections")}
		called := false
		err := Run(ctx, m, func(Tx) error { called = true; return nil })
		assert.ErrorIs(t, err, ErrBegin)
		assert.False(t, called)
	})
}
