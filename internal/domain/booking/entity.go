package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sanosuguru/go-musical-box-office/internal/domain/pricing"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/seat"
)

// RevenueCategoryTicketSales は売上台帳のチケット販売カテゴリ
const RevenueCategoryTicketSales = "Ticket Sales"

// LineItem は1回の予約に含まれる（チケット種別, 枚数）の組
type LineItem struct {
	Type     pricing.TicketType
	Quantity int
}

// TotalQuantity は明細の合計枚数を返す
func TotalQuantity(items []LineItem) int {
	total := 0
	for _, it := range items {
		total += it.Quantity
	}
	return total
}

// ValidateLineItems は明細の検証を行う
func ValidateLineItems(items []LineItem) error {
	if len(items) == 0 {
		return ErrLineItemsRequired
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return ErrInvalidQuantity
		}
	}
	return nil
}

// Record は確定した予約（レシート）を表す。確定後は更新されない
type Record struct {
	ID          string
	CustomerID  string
	MusicalID   int64
	TotalPrice  pricing.Amount
	ShowDate    time.Time
	ShowTime    seat.ShowTime
	ReceiptText string
	CreatedAt   time.Time
	Seats       []Allocation
}

// NewRecord は新しい予約レコードを作成する
func NewRecord(customerID string, musicalID int64, showDate time.Time, showTime seat.ShowTime) *Record {
	return &Record{
		ID:         uuid.New().String(),
		CustomerID: customerID,
		MusicalID:  musicalID,
		ShowDate:   seat.DateOnly(showDate),
		ShowTime:   showTime,
		CreatedAt:  time.Now(),
	}
}

// Validate は予約レコードの検証を行う
func (r *Record) Validate() error {
	if strings.TrimSpace(r.CustomerID) == "" {
		return ErrCustomerIDRequired
	}
	if r.MusicalID == 0 {
		return ErrMusicalIDRequired
	}
	if r.TotalPrice < 0 {
		return ErrInvalidTotal
	}
	return nil
}

// SeatLabels は割り当て座席のラベル一覧を返す
func (r *Record) SeatLabels() []string {
	labels := make([]string, len(r.Seats))
	for i, a := range r.Seats {
		labels[i] = a.SeatLabel
	}
	return labels
}

// Allocation は1席分の割り当て。(musical, venue, section, seat, date, time) で一意
type Allocation struct {
	BookingID  string
	MusicalID  int64
	VenueID    int64
	SectionID  int64
	SeatNumber int
	SeatLabel  string
	ShowDate   time.Time
	ShowTime   seat.ShowTime
	TicketType pricing.TicketType
	Price      pricing.Amount
}

// SlotKey は一意性制約のキー
type SlotKey struct {
	MusicalID  int64
	VenueID    int64
	SectionID  int64
	SeatNumber int
	ShowDate   string
	ShowTime   string
}

// Slot は割り当ての一意性キーを返す
func (a Allocation) Slot() SlotKey {
	return SlotKey{
		MusicalID:  a.MusicalID,
		VenueID:    a.VenueID,
		SectionID:  a.SectionID,
		SeatNumber: a.SeatNumber,
		ShowDate:   seat.FormatDate(a.ShowDate),
		ShowTime:   a.ShowTime.Prefix(),
	}
}

// RevenueEntry は売上台帳の1行（追記のみ）
type RevenueEntry struct {
	ID              int64
	BookingID       string
	Amount          pricing.Amount
	TransactionDate time.Time
	Category        string
	Description     string
}

// BookedSeatsQuery は公演回・セクション単位の予約済み座席の照会条件
type BookedSeatsQuery struct {
	MusicalID int64
	VenueID   int64
	SectionID int64
	ShowDate  time.Time
	ShowTime  seat.ShowTime
}

// CacheKey は照会条件を一意に表す文字列を返す
func (q BookedSeatsQuery) CacheKey() string {
	key := seat.NewPerformanceKey(q.MusicalID, q.VenueID, q.ShowDate, q.ShowTime)
	return key.String() + ":" + formatID(q.SectionID)
}

// HistoryQuery は顧客の予約履歴の照会条件
// From と To は公演日の範囲（両端を含む）。ゼロ値はその側の制限なし
type HistoryQuery struct {
	CustomerID string
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

// Validate は公演日の範囲を検証する
func (q HistoryQuery) Validate() error {
	if strings.TrimSpace(q.CustomerID) == "" {
		return ErrCustomerIDRequired
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return fmt.Errorf("%w: %s > %s", ErrInvalidDateRange, seat.FormatDate(q.From), seat.FormatDate(q.To))
	}
	return nil
}

// Includes は公演日が範囲内かを返す
func (q HistoryQuery) Includes(showDate time.Time) bool {
	d := seat.DateOnly(showDate)
	if !q.From.IsZero() && d.Before(seat.DateOnly(q.From)) {
		return false
	}
	if !q.To.IsZero() && d.After(seat.DateOnly(q.To)) {
		return false
	}
	return true
}

// InventoryDrift はキャッシュ済み残数と台帳から導出した残数の差異
type InventoryDrift struct {
	MusicalID   int64
	MusicalName string
	Cached      int
	Derived     int
}

// Delta は差異（キャッシュ − 導出値）を返す
func (d InventoryDrift) Delta() int {
	return d.Cached - d.Derived
}
