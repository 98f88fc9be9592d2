package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-musical-box-office/internal/domain/booking"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/pricing"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/seat"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/transaction"
)

// uniqueViolation は PostgreSQL の一意性制約違反コード
const uniqueViolation = "23505"

type receiptRow struct {
	ID          string    `db:"id"`
	CustomerID  string    `db:"customer_id"`
	MusicalID   int64     `db:"musical_id"`
	TotalPrice  int64     `db:"total_price"`
	ShowDate    time.Time `db:"show_date"`
	ShowTime    string    `db:"show_time"`
	ReceiptText string    `db:"receipt_text"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r *receiptRow) toEntity(seats []booking.Allocation) *booking.Record {
	return &booking.Record{
		ID: r.ID, CustomerID: r.CustomerID, MusicalID: r.MusicalID,
		TotalPrice: pricing.Amount(r.TotalPrice),
		ShowDate:   seat.DateOnly(r.ShowDate), ShowTime: seat.ShowTime(r.ShowTime),
		ReceiptText: r.ReceiptText, CreatedAt: r.CreatedAt, Seats: seats,
	}
}

type bookedSeatRow struct {
	BookingID  string    `db:"booking_id"`
	MusicalID  int64     `db:"musical_id"`
	VenueID    int64     `db:"venue_id"`
	SectionID  int64     `db:"section_id"`
	SeatNumber int       `db:"seat_number"`
	SeatLabel  string    `db:"seat_label"`
	ShowDate   time.Time `db:"show_date"`
	ShowTime   string    `db:"show_time"`
	TicketType string    `db:"ticket_type"`
	Price      int64     `db:"price"`
}

func (r *bookedSeatRow) toEntity() booking.Allocation {
	return booking.Allocation{
		BookingID: r.BookingID, MusicalID: r.MusicalID, VenueID: r.VenueID,
		SectionID: r.SectionID, SeatNumber: r.SeatNumber, SeatLabel: r.SeatLabel,
		ShowDate: seat.DateOnly(r.ShowDate), ShowTime: seat.ShowTime(r.ShowTime),
		TicketType: pricing.TicketType(r.TicketType), Price: pricing.Amount(r.Price),
	}
}

// BookingRepository は予約台帳の PostgreSQL 実装
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository は BookingRepository を作成する
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// BookedSeats は公演回・セクションの予約済み座席番号を取得する
// 開演時刻は "HH:mm" の前方一致で照合する（"19:30:00" は "19:30" に一致）
func (r *BookingRepository) BookedSeats(ctx context.Context, q booking.BookedSeatsQuery) ([]int, error) {
	query := `
		SELECT seat_number FROM booked_seats
		WHERE musical_id = $1 AND venue_id = $2 AND section_id = $3
		  AND show_date = $4::date AND show_time LIKE $5::text || '%'
		ORDER BY seat_number
	`
	var numbers []int
	if err := r.db.SelectContext(ctx, &numbers, query,
		q.MusicalID, q.VenueID, q.SectionID, seat.FormatDate(q.ShowDate), q.ShowTime.Prefix(),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", booking.ErrLedgerUnavailable, err)
	}
	return numbers, nil
}

// CreateRecord は予約レコードを作成する
func (r *BookingRepository) CreateRecord(ctx context.Context, tx transaction.Tx, rec *booking.Record) error {
	stx, err := unwrapTx(tx)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO receipts (id, customer_id, musical_id, total_price, show_date, show_time, receipt_text, created_at)
		VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8)
	`
	if _, err := stx.ExecContext(ctx, query,
		rec.ID, rec.CustomerID, rec.MusicalID, int64(rec.TotalPrice),
		seat.FormatDate(rec.ShowDate), rec.ShowTime.Prefix(), rec.ReceiptText, rec.CreatedAt,
	); err != nil {
		return fmt.Errorf("予約レコード作成に失敗: %w", err)
	}
	return nil
}

// CreateAllocations は座席割り当てをマルチバリューINSERTで作成する
func (r *BookingRepository) CreateAllocations(ctx context.Context, tx transaction.Tx, allocations []booking.Allocation) error {
	if len(allocations) == 0 {
		return nil
	}
	stx, err := unwrapTx(tx)
	if err != nil {
		return err
	}

	const columns = 10
	query := `INSERT INTO booked_seats (booking_id, musical_id, venue_id, section_id, seat_number, seat_label, show_date, show_time, ticket_type, price) VALUES `
	args := make([]interface{}, 0, len(allocations)*columns)
	placeholders := make([]string, 0, len(allocations))
	for i, a := range allocations {
		base := i * columns
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d::date, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10))
		args = append(args, a.BookingID, a.MusicalID, a.VenueID, a.SectionID, a.SeatNumber, a.SeatLabel,
			seat.FormatDate(a.ShowDate), a.ShowTime.Prefix(), string(a.TicketType), int64(a.Price))
	}

	if _, err := stx.ExecContext(ctx, query+strings.Join(placeholders, ", "), args...); err != nil {
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", booking.ErrSeatAlreadyAllocated, pgErr.Detail)
		}
		return fmt.Errorf("座席割り当て作成に失敗: %w", err)
	}
	return nil
}

// DecrementAvailableTickets は残数が足りる場合のみ減らす
func (r *BookingRepository) DecrementAvailableTickets(ctx context.Context, tx transaction.Tx, musicalID int64, quantity int) error {
	stx, err := unwrapTx(tx)
	if err != nil {
		return err
	}
	query := `UPDATE musicals SET available_tickets = available_tickets - $1 WHERE id = $2 AND available_tickets >= $1`
	result, err := stx.ExecContext(ctx, query, quantity, musicalID)
	if err != nil {
		return fmt.Errorf("残数更新に失敗: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("残数更新結果の取得に失敗: %w", err)
	}
	if rows == 0 {
		return booking.ErrInsufficientInventory
	}
	return nil
}

// GetByID はIDから予約を座席付きで取得する
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*booking.Record, error) {
	var row receiptRow
	query := `SELECT id, customer_id, musical_id, total_price, show_date, show_time, receipt_text, created_at FROM receipts WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, booking.ErrBookingNotFound
		}
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == "22P02" {
			// UUID として不正な ID
			return nil, booking.ErrBookingNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", err)
	}
	seats, err := r.getAllocations(ctx, row.ID)
	if err != nil {
		return nil, err
	}
	return row.toEntity(seats), nil
}

// GetByCustomerID は顧客の予約一覧を新しい順に取得する
func (r *BookingRepository) GetByCustomerID(ctx context.Context, q booking.HistoryQuery) ([]*booking.Record, error) {
	var rows []receiptRow
	query := `
		SELECT id, customer_id, musical_id, total_price, show_date, show_time, receipt_text, created_at
		FROM receipts
		WHERE customer_id = $1
		  AND show_date BETWEEN COALESCE($2::date, '-infinity'::date) AND COALESCE($3::date, 'infinity'::date)
		ORDER BY created_at DESC LIMIT $4 OFFSET $5
	`
	if err := r.db.SelectContext(ctx, &rows, query, q.CustomerID, nullDate(q.From), nullDate(q.To), q.Limit, q.Offset); err != nil {
		return nil, fmt.Errorf("予約一覧取得に失敗: %w", err)
	}
	records := make([]*booking.Record, len(rows))
	for i := range rows {
		seats, err := r.getAllocations(ctx, rows[i].ID)
		if err != nil {
			return nil, err
		}
		records[i] = rows[i].toEntity(seats)
	}
	return records, nil
}

// CountAllocationsByMusical はミュージカルごとの割り当て座席数を取得する
func (r *BookingRepository) CountAllocationsByMusical(ctx context.Context) (map[int64]int, error) {
	var rows []struct {
		MusicalID int64 `db:"musical_id"`
		Count     int   `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT musical_id, COUNT(*) AS count FROM booked_seats GROUP BY musical_id`); err != nil {
		return nil, fmt.Errorf("%w: %v", booking.ErrLedgerUnavailable, err)
	}
	counts := make(map[int64]int, len(rows))
	for _, row := range rows {
		counts[row.MusicalID] = row.Count
	}
	return counts, nil
}

// nullDate はゼロ値の日付を NULL として渡す
func nullDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return seat.FormatDate(t)
}

func (r *BookingRepository) getAllocations(ctx context.Context, bookingID string) ([]booking.Allocation, error) {
	var rows []bookedSeatRow
	query := `
		SELECT booking_id, musical_id, venue_id, section_id, seat_number, seat_label, show_date, show_time, ticket_type, price
		FROM booked_seats WHERE booking_id = $1 ORDER BY id
	`
	if err := r.db.SelectContext(ctx, &rows, query, bookingID); err != nil {
		return nil, fmt.Errorf("座席割り当て取得に失敗: %w", err)
	}
	seats := make([]booking.Allocation, len(rows))
	for i := range rows {
		seats[i] = rows[i].toEntity()
	}
	return seats, nil
}

var _ booking.Repository = (*BookingRepository)(nil)
