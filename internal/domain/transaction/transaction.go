package transaction

import (
	"context"
	"errors"
	"fmt"
)

// ErrBegin はトランザクションを開始できなかったことを表す
var ErrBegin = errors.New("トランザクションを開始できません")

// Tx は予約台帳への書き込みをまとめる単位
// ドメイン層がインフラ層（sqlx等）に依存しないようにするための抽象化
type Tx interface {
	Commit() error
	// Rollback はコミット後にも呼ばれる。その場合の戻り値は無視される
	Rollback() error
}

// Manager はトランザクションを開始する
type Manager interface {
	Begin(ctx context.Context) (Tx, error)
}

// Run は fn を1つのトランザクションで実行する
// fn がエラーを返した場合やコミットに失敗した場合は何も書き込まれない
func Run(ctx context.Context, m Manager, fn func(tx Tx) error) error {
	tx, err := m.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBegin, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
