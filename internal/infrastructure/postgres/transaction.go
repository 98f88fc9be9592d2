package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-musical-box-office/internal/domain/transaction"
)

var errNotSQLTx = errors.New("sqlx のトランザクションではありません")

// sqlTx は sqlx.Tx を transaction.Tx として扱う
// コミット後の Rollback は何もしない
type sqlTx struct {
	*sqlx.Tx
}

func (t *sqlTx) Rollback() error {
	if err := t.Tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// TxManager は sqlx.DB を使用したトランザクションマネージャー
// 座席の二重割り当ては一意制約で防ぐため、分離レベルは READ COMMITTED で足りる
type TxManager struct {
	db   *sqlx.DB
	opts *sql.TxOptions
}

// NewTxManager は新しい TxManager を作成する
func NewTxManager(db *sqlx.DB) *TxManager {
	return &TxManager{db: db, opts: &sql.TxOptions{Isolation: sql.LevelReadCommitted}}
}

// Begin は新しいトランザクションを開始する
func (m *TxManager) Begin(ctx context.Context) (transaction.Tx, error) {
	tx, err := m.db.BeginTxx(ctx, m.opts)
	if err != nil {
		return nil, err
	}
	return &sqlTx{Tx: tx}, nil
}

// unwrapTx は transaction.Tx から sqlx.Tx を取り出す
func unwrapTx(tx transaction.Tx) (*sqlx.Tx, error) {
	if t, ok := tx.(*sqlTx); ok {
		return t.Tx, nil
	}
	return nil, errNotSQLTx
}

var _ transaction.Manager = (*TxManager)(nil)
