package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sanosuguru/go-musical-box-office/internal/domain/booking"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/catalog"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/seat"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/transaction"
)

var (
	ErrTxDone    = errors.New("トランザクションは既に終了しています")
	ErrForeignTx = errors.New("このストアのトランザクションではありません")
)

// Op は障害注入の対象操作
type Op string

const (
	OpCreateRecord      Op = "create_record"
	OpCreateAllocations Op = "create_allocations"
	OpAppendRevenue     Op = "append_revenue"
	OpDecrement         Op = "decrement"
	OpCommit            Op = "commit"
	OpBookedSeats       Op = "booked_seats"
)

// Store はカタログと予約台帳のインメモリ実装
// 書き込みはトランザクションにバッファされ、Commit 時に一意性と残数を再検証してから反映される
type Store struct {
	mu sync.RWMutex

	musicals      map[int64]*catalog.Musical
	venues        map[int64]*catalog.Venue
	musicalVenues map[int64][]int64

	records     map[string]*booking.Record
	allocations []booking.Allocation
	slots       map[booking.SlotKey]string
	revenue     []booking.RevenueEntry

	nextMusicalID int64
	nextVenueID   int64
	nextSectionID int64
	nextRevenueID int64

	faults map[Op]error
}

// NewStore は空のストアを作成する
func NewStore() *Store {
	return &Store{
		musicals:      make(map[int64]*catalog.Musical),
		venues:        make(map[int64]*catalog.Venue),
		musicalVenues: make(map[int64][]int64),
		records:       make(map[string]*booking.Record),
		slots:         make(map[booking.SlotKey]string),
		faults:        make(map[Op]error),
	}
}

// InjectFault は指定した操作を err で失敗させる。nil で解除する
func (s *Store) InjectFault(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

func (s *Store) fault(op Op) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.faults[op]
}

// ---- catalog.Writer ----

// CreateMusical はミュージカルを作成する
func (s *Store) CreateMusical(ctx context.Context, m *catalog.Musical) error {
	if err := m.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.musicals {
		if strings.EqualFold(existing.Name, m.Name) {
			return fmt.Errorf("ミュージカル %q は既に存在します", m.Name)
		}
	}
	s.nextMusicalID++
	m.ID = s.nextMusicalID
	s.musicals[m.ID] = cloneMusical(m)
	return nil
}

// CreateVenue は会場とセクションを作成する
func (s *Store) CreateVenue(ctx context.Context, v *catalog.Venue) error {
	if err := v.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextVenueID++
	v.ID = s.nextVenueID
	for i := range v.Sections {
		s.nextSectionID++
		v.Sections[i].ID = s.nextSectionID
		v.Sections[i].VenueID = v.ID
	}
	s.venues[v.ID] = cloneVenue(v)
	return nil
}

// AddVenueToMusical はミュージカルの上演会場を登録する
func (s *Store) AddVenueToMusical(ctx context.Context, musicalID, venueID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.musicals[musicalID]; !ok {
		return catalog.ErrMusicalNotFound
	}
	if _, ok := s.venues[venueID]; !ok {
		return catalog.ErrVenueNotFound
	}
	for _, id := range s.musicalVenues[musicalID] {
		if id == venueID {
			return nil
		}
	}
	s.musicalVenues[musicalID] = append(s.musicalVenues[musicalID], venueID)
	return nil
}

// ---- catalog.Repository ----

// GetMusicalByName は名前（大文字小文字を区別しない）からミュージカルを取得する
func (s *Store) GetMusicalByName(ctx context.Context, name string) (*catalog.Musical, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := s.findMusicalLocked(name)
	if m == nil {
		return nil, catalog.ErrMusicalNotFound
	}
	return cloneMusical(m), nil
}

// GetMusicalByID はIDからミュージカルを取得する
func (s *Store) GetMusicalByID(ctx context.Context, id int64) (*catalog.Musical, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.musicals[id]
	if !ok {
		return nil, catalog.ErrMusicalNotFound
	}
	return cloneMusical(m), nil
}

// ListMusicals はミュージカル一覧を名前順で取得する
func (s *Store) ListMusicals(ctx context.Context) ([]*catalog.Musical, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*catalog.Musical, 0, len(s.musicals))
	for _, m := range s.musicals {
		out = append(out, cloneMusical(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetVenuesForMusical はミュージカルを上演する会場をセクション付きで取得する
func (s *Store) GetVenuesForMusical(ctx context.Context, musicalName string) ([]*catalog.Venue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := s.findMusicalLocked(musicalName)
	if m == nil {
		return []*catalog.Venue{}, nil
	}
	ids := append([]int64(nil), s.musicalVenues[m.ID]...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*catalog.Venue, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneVenue(s.venues[id]))
	}
	return out, nil
}

// GetVenueSections は会場のセクション一覧を取得する
func (s *Store) GetVenueSections(ctx context.Context, venueID int64) ([]catalog.Section, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.venues[venueID]
	if !ok {
		return []catalog.Section{}, nil
	}
	return append([]catalog.Section(nil), v.Sections...), nil
}

func (s *Store) findMusicalLocked(name string) *catalog.Musical {
	name = strings.TrimSpace(name)
	for _, m := range s.musicals {
		if strings.EqualFold(m.Name, name) {
			return m
		}
	}
	return nil
}

// ---- booking.Repository ----

// BookedSeats は公演回・セクションの予約済み座席番号を取得する
func (s *Store) BookedSeats(ctx context.Context, q booking.BookedSeatsQuery) ([]int, error) {
	if err := s.fault(OpBookedSeats); err != nil {
		return nil, fmt.Errorf("%w: %v", booking.ErrLedgerUnavailable, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	date := seat.FormatDate(q.ShowDate)
	numbers := []int{}
	for _, a := range s.allocations {
		if a.MusicalID == q.MusicalID && a.VenueID == q.VenueID && a.SectionID == q.SectionID &&
			seat.FormatDate(a.ShowDate) == date && q.ShowTime.Matches(string(a.ShowTime)) {
			numbers = append(numbers, a.SeatNumber)
		}
	}
	sort.Ints(numbers)
	return numbers, nil
}

// CreateRecord は予約レコードをトランザクションに追加する
func (s *Store) CreateRecord(ctx context.Context, tx transaction.Tx, rec *booking.Record) error {
	mtx, err := s.unwrap(tx)
	if err != nil {
		return err
	}
	if err := s.fault(OpCreateRecord); err != nil {
		return err
	}
	mtx.records = append(mtx.records, cloneRecord(rec))
	return nil
}

// CreateAllocations は座席割り当てをトランザクションに追加する
// 確定済みまたは同じトランザクション内の割り当てと重複する場合は ErrSeatAlreadyAllocated
func (s *Store) CreateAllocations(ctx context.Context, tx transaction.Tx, allocations []booking.Allocation) error {
	mtx, err := s.unwrap(tx)
	if err != nil {
		return err
	}
	if err := s.fault(OpCreateAllocations); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range allocations {
		slot := a.Slot()
		if _, taken := s.slots[slot]; taken {
			return fmt.Errorf("%w: %s", booking.ErrSeatAlreadyAllocated, a.SeatLabel)
		}
		if _, taken := mtx.slots[slot]; taken {
			return fmt.Errorf("%w: %s", booking.ErrSeatAlreadyAllocated, a.SeatLabel)
		}
		mtx.slots[slot] = struct{}{}
		mtx.allocations = append(mtx.allocations, a)
	}
	return nil
}

// DecrementAvailableTickets は残数の減算をトランザクションに追加する
func (s *Store) DecrementAvailableTickets(ctx context.Context, tx transaction.Tx, musicalID int64, quantity int) error {
	mtx, err := s.unwrap(tx)
	if err != nil {
		return err
	}
	if err := s.fault(OpDecrement); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.musicals[musicalID]
	if !ok {
		return catalog.ErrMusicalNotFound
	}
	if m.AvailableTickets-mtx.decrements[musicalID] < quantity {
		return booking.ErrInsufficientInventory
	}
	mtx.decrements[musicalID] += quantity
	return nil
}

// Append は売上をトランザクションに追加する
func (s *Store) Append(ctx context.Context, tx transaction.Tx, entry *booking.RevenueEntry) error {
	mtx, err := s.unwrap(tx)
	if err != nil {
		return err
	}
	if err := s.fault(OpAppendRevenue); err != nil {
		return err
	}
	mtx.revenue = append(mtx.revenue, entry)
	return nil
}

// GetByID はIDから予約を座席付きで取得する
func (s *Store) GetByID(ctx context.Context, id string) (*booking.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	return s.withSeatsLocked(rec), nil
}

// GetByCustomerID は顧客の予約一覧を新しい順に取得する
func (s *Store) GetByCustomerID(ctx context.Context, q booking.HistoryQuery) ([]*booking.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*booking.Record
	for _, rec := range s.records {
		if rec.CustomerID == q.CustomerID && q.Includes(rec.ShowDate) {
			matched = append(matched, rec)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if q.Offset >= len(matched) {
		return []*booking.Record{}, nil
	}
	matched = matched[q.Offset:]
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	out := make([]*booking.Record, len(matched))
	for i, rec := range matched {
		out[i] = s.withSeatsLocked(rec)
	}
	return out, nil
}

// CountAllocationsByMusical はミュージカルごとの割り当て座席数を取得する
func (s *Store) CountAllocationsByMusical(ctx context.Context) (map[int64]int, error) {
	if err := s.fault(OpBookedSeats); err != nil {
		return nil, fmt.Errorf("%w: %v", booking.ErrLedgerUnavailable, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[int64]int)
	for _, a := range s.allocations {
		counts[a.MusicalID]++
	}
	return counts, nil
}

// Revenue は確定済みの売上一覧を返す
func (s *Store) Revenue() []booking.RevenueEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]booking.RevenueEntry(nil), s.revenue...)
}

// Allocations は確定済みの座席割り当て一覧を返す
func (s *Store) Allocations() []booking.Allocation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]booking.Allocation(nil), s.allocations...)
}

// RecordCount は確定済みの予約数を返す
func (s *Store) RecordCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) withSeatsLocked(rec *booking.Record) *booking.Record {
	out := cloneRecord(rec)
	out.Seats = nil
	for _, a := range s.allocations {
		if a.BookingID == rec.ID {
			out.Seats = append(out.Seats, a)
		}
	}
	return out
}

// ---- transaction.Manager ----

// Begin は新しいトランザクションを開始する
func (s *Store) Begin(ctx context.Context) (transaction.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Tx{
		store:      s,
		slots:      make(map[booking.SlotKey]struct{}),
		decrements: make(map[int64]int),
	}, nil
}

// Tx はインメモリストアのトランザクション
type Tx struct {
	mu          sync.Mutex
	store       *Store
	done        bool
	records     []*booking.Record
	allocations []booking.Allocation
	slots       map[booking.SlotKey]struct{}
	revenue     []*booking.RevenueEntry
	decrements  map[int64]int
}

// Commit は一意性と残数を再検証し、すべての書き込みをまとめて反映する
func (t *Tx) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxDone
	}
	t.done = true

	if err := t.store.fault(OpCommit); err != nil {
		return err
	}

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range t.allocations {
		if _, taken := s.slots[a.Slot()]; taken {
			return fmt.Errorf("%w: %s", booking.ErrSeatAlreadyAllocated, a.SeatLabel)
		}
	}
	for id, qty := range t.decrements {
		m, ok := s.musicals[id]
		if !ok {
			return catalog.ErrMusicalNotFound
		}
		if m.AvailableTickets < qty {
			return booking.ErrInsufficientInventory
		}
	}

	for id, qty := range t.decrements {
		s.musicals[id].AvailableTickets -= qty
	}
	for _, rec := range t.records {
		s.records[rec.ID] = rec
	}
	for _, a := range t.allocations {
		s.slots[a.Slot()] = a.BookingID
		s.allocations = append(s.allocations, a)
	}
	for _, e := range t.revenue {
		s.nextRevenueID++
		e.ID = s.nextRevenueID
		s.revenue = append(s.revenue, *e)
	}
	return nil
}

// Rollback はバッファした書き込みを破棄する
func (t *Tx) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxDone
	}
	t.done = true
	t.records, t.allocations, t.revenue = nil, nil, nil
	return nil
}

func (s *Store) unwrap(tx transaction.Tx) (*Tx, error) {
	mtx, ok := tx.(*Tx)
	if !ok || mtx.store != s {
		return nil, ErrForeignTx
	}
	if mtx.done {
		return nil, ErrTxDone
	}
	return mtx, nil
}

func cloneMusical(m *catalog.Musical) *catalog.Musical {
	c := *m
	c.Categories = append([]string(nil), m.Categories...)
	c.AvailableDays = append(c.AvailableDays[:0:0], m.AvailableDays...)
	return &c
}

func cloneVenue(v *catalog.Venue) *catalog.Venue {
	c := *v
	c.Sections = append([]catalog.Section(nil), v.Sections...)
	return &c
}

func cloneRecord(r *booking.Record) *booking.Record {
	c := *r
	c.Seats = append([]booking.Allocation(nil), r.Seats...)
	return &c
}

var (
	_ catalog.Repository        = (*Store)(nil)
	_ catalog.Writer            = (*Store)(nil)
	_ booking.Repository        = (*Store)(nil)
	_ booking.RevenueRepository = (*Store)(nil)
	_ transaction.Manager       = (*Store)(nil)
)
