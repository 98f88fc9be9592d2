package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-musical-box-office/internal/config"
	"github.com/sanosuguru/go-musical-box-office/internal/pkg/logger"
)

// NewConnection は予約台帳のPostgreSQLへ接続し、接続プールを設定する
func NewConnection(ctx context.Context, cfg *config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("予約台帳に接続できません (%s:%s/%s): %w", cfg.Host, cfg.Port, cfg.DBName, err)
	}

	// 0 以下は database/sql の既定値のまま
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	logger.Info("connected to booking ledger",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.DBName),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
	)
	return db, nil
}

// Ping は予約台帳への疎通を確認する。ヘルスチェックから使う
func Ping(ctx context.Context, db *sqlx.DB) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("予約台帳の疎通確認に失敗しました: %w", err)
	}
	return nil
}
