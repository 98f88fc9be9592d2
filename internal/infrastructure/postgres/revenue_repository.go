package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-musical-box-office/internal/domain/booking"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/transaction"
)

// RevenueRepository は売上台帳（income_data）の PostgreSQL 実装
type RevenueRepository struct {
	db *sqlx.DB
}

// NewRevenueRepository は RevenueRepository を作成する
func NewRevenueRepository(db *sqlx.DB) *RevenueRepository {
	return &RevenueRepository{db: db}
}

// Append は売上を追記する
func (r *RevenueRepository) Append(ctx context.Context, tx transaction.Tx, entry *booking.RevenueEntry) error {
	stx, err := unwrapTx(tx)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO income_data (booking_id, amount, transaction_date, category, description)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	if err := stx.QueryRowContext(ctx, query,
		entry.BookingID, int64(entry.Amount), entry.TransactionDate, entry.Category, entry.Description,
	).Scan(&entry.ID); err != nil {
		return fmt.Errorf("売上記録に失敗: %w", err)
	}
	return nil
}

var _ booking.RevenueRepository = (*RevenueRepository)(nil)
