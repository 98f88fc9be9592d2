package booking

import (
	"context"

	"github.com/sanosuguru/go-musical-box-office/internal/domain/transaction"
)

// Repository は予約台帳のインターフェース
// 書き込みはすべて同一トランザクション内で行い、予約確定処理からのみ呼ばれる
type Repository interface {
	// BookedSeats は公演回・セクションの予約済み座席番号を取得する（時刻は "HH:mm" 前方一致）
	BookedSeats(ctx context.Context, q BookedSeatsQuery) ([]int, error)

	// CreateRecord は予約レコードを作成する（トランザクション必須）
	CreateRecord(ctx context.Context, tx transaction.Tx, record *Record) error

	// CreateAllocations は座席割り当てを作成する（トランザクション必須）
	// 一意性制約違反は ErrSeatAlreadyAllocated を返す
	CreateAllocations(ctx context.Context, tx transaction.Tx, allocations []Allocation) error

	// DecrementAvailableTickets はミュージカルの残数を減らす（トランザクション必須）
	// 残数が足りない場合は ErrInsufficientInventory を返す
	DecrementAvailableTickets(ctx context.Context, tx transaction.Tx, musicalID int64, quantity int) error

	// GetByID はIDから予約を座席付きで取得する
	GetByID(ctx context.Context, id string) (*Record, error)

	// GetByCustomerID は顧客の予約一覧を新しい順に取得する（公演日の範囲で絞り込める）
	GetByCustomerID(ctx context.Context, q HistoryQuery) ([]*Record, error)

	// CountAllocationsByMusical はミュージカルごとの割り当て座席数を取得する
	CountAllocationsByMusical(ctx context.Context) (map[int64]int, error)
}

// RevenueRepository は売上台帳のインターフェース
type RevenueRepository interface {
	// Append は売上を追記する（トランザクション必須）
	Append(ctx context.Context, tx transaction.Tx, entry *RevenueEntry) error
}
