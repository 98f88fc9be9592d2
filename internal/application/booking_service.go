package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-musical-box-office/internal/domain/booking"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/catalog"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/pricing"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/seat"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/transaction"
	redisinfra "github.com/sanosuguru/go-musical-box-office/internal/infrastructure/redis"
	"github.com/sanosuguru/go-musical-box-office/internal/pkg/logger"
	"github.com/sanosuguru/go-musical-box-office/internal/pkg/metrics"
)

const maxHistorySize = 100

// BookingOptions は予約確定処理の調整値
type BookingOptions struct {
	LockTTL            time.Duration
	LockRetries        int
	LockRetryInterval  time.Duration
	HistoryDefaultSize int
}

// DefaultBookingOptions は既定の調整値を返す
func DefaultBookingOptions() BookingOptions {
	return BookingOptions{
		LockTTL:            5 * time.Second,
		LockRetries:        3,
		LockRetryInterval:  50 * time.Millisecond,
		HistoryDefaultSize: 20,
	}
}

type BookingService struct {
	txManager   transaction.Manager
	catalogRepo catalog.Repository
	bookingRepo booking.Repository
	revenueRepo booking.RevenueRepository
	inventory   *InventoryService
	lockManager redisinfra.LockManagerInterface
	sink        booking.ReceiptSink
	opts        BookingOptions
	now         func() time.Time
}

// NewBookingService は予約確定サービスを作成する
// lockManager と sink は nil でもよい（ロックなし・レシート出力なし）
func NewBookingService(
	txm transaction.Manager,
	cr catalog.Repository,
	br booking.Repository,
	rr booking.RevenueRepository,
	inventory *InventoryService,
	lm redisinfra.LockManagerInterface,
	sink booking.ReceiptSink,
	opts BookingOptions,
) *BookingService {
	def := DefaultBookingOptions()
	if opts.LockTTL <= 0 {
		opts.LockTTL = def.LockTTL
	}
	if opts.LockRetries <= 0 {
		opts.LockRetries = def.LockRetries
	}
	if opts.LockRetryInterval <= 0 {
		opts.LockRetryInterval = def.LockRetryInterval
	}
	if opts.HistoryDefaultSize <= 0 {
		opts.HistoryDefaultSize = def.HistoryDefaultSize
	}
	return &BookingService{
		txManager:   txm,
		catalogRepo: cr,
		bookingRepo: br,
		revenueRepo: rr,
		inventory:   inventory,
		lockManager: lm,
		sink:        sink,
		opts:        opts,
		now:         time.Now,
	}
}

type CommitInput struct {
	CustomerID string
	Musical    string
	ShowDate   time.Time
	ShowTime   seat.ShowTime
	LineItems  []booking.LineItem
	// Seats は選択順の座席。明細の順に先頭から割り当てる
	Seats []seat.Ref
}

// CommitResult は確定結果
// ReceiptErr はレシート出力の失敗を表し、予約自体は確定している
type CommitResult struct {
	Record     *booking.Record
	Receipt    booking.Receipt
	ReceiptErr error
}

// Commit は座席の予約を確定する
// 成功時は予約・座席割り当て・売上・残数の更新がすべて反映され、失敗時は何も反映されない
func (s *BookingService) Commit(ctx context.Context, input CommitInput) (*CommitResult, error) {
	start := time.Now()
	fields := logger.Booking(input.CustomerID, input.Musical, seat.FormatDate(input.ShowDate), input.ShowTime.Prefix())

	result, err := s.commit(ctx, input)
	outcome := commitOutcome(err)
	metrics.Get().RecordBooking(outcome, time.Since(start))
	if err != nil {
		logger.Warn("予約の確定に失敗しました", append(fields, zap.String("outcome", outcome), zap.Error(err))...)
		return nil, err
	}

	logger.Info("予約を確定しました", append(fields,
		zap.String("booking_id", result.Record.ID),
		logger.Seats(result.Record.SeatLabels()),
		zap.String("total", result.Record.TotalPrice.String()),
	)...)
	return result, nil
}

func (s *BookingService) commit(ctx context.Context, input CommitInput) (*CommitResult, error) {
	if strings.TrimSpace(input.CustomerID) == "" {
		return nil, booking.ErrCustomerIDRequired
	}
	if err := booking.ValidateLineItems(input.LineItems); err != nil {
		return nil, err
	}
	quantity := booking.TotalQuantity(input.LineItems)
	if len(input.Seats) != quantity {
		return nil, fmt.Errorf("%w: 座席 %d 席 / チケット %d 枚", booking.ErrSeatCountMismatch, len(input.Seats), quantity)
	}

	m, err := s.catalogRepo.GetMusicalByName(ctx, input.Musical)
	if err != nil {
		return nil, err
	}
	if !m.IsAvailableOn(input.ShowDate) {
		return nil, &booking.DayUnavailableError{Day: input.ShowDate.Weekday(), ValidDays: m.AvailableDayNames()}
	}
	if quantity > m.AvailableTickets {
		return nil, fmt.Errorf("%w: 残り %d 枚", booking.ErrInsufficientInventory, m.AvailableTickets)
	}

	refs, err := s.resolveSeats(ctx, m.Name, input.Seats)
	if err != nil {
		return nil, err
	}
	key := seat.NewPerformanceKey(m.ID, refs[0].VenueID, input.ShowDate, input.ShowTime)

	release, err := s.lockSeats(ctx, key, refs)
	if err != nil {
		return nil, err
	}
	defer release()

	queries, err := s.recheck(ctx, key, refs)
	if err != nil {
		return nil, err
	}

	now := s.now()
	rec, receipt := s.buildRecord(input, m, key, refs, now)
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, rec, m, quantity, now); err != nil {
		return nil, err
	}

	s.inventory.Invalidate(context.WithoutCancel(ctx), queries...)

	result := &CommitResult{Record: rec, Receipt: receipt}
	if s.sink != nil {
		if err := s.sink.Export(context.WithoutCancel(ctx), rec.ID, rec.ReceiptText); err != nil {
			result.ReceiptErr = fmt.Errorf("%w: %w", booking.ErrArtifactWriteFailed, err)
			logger.Error("レシートの出力に失敗しました", zap.String("booking_id", rec.ID), zap.Error(err))
		}
	}
	return result, nil
}

// resolveSeats は座席をカタログのセクションと突き合わせ、価格付きの座席参照に置き換える
func (s *BookingService) resolveSeats(ctx context.Context, musicalName string, seats []seat.Ref) ([]seat.Ref, error) {
	venues, err := s.catalogRepo.GetVenuesForMusical(ctx, musicalName)
	if err != nil {
		return nil, err
	}
	venueID := seats[0].VenueID
	var venue *catalog.Venue
	for _, v := range venues {
		if v.ID == venueID {
			venue = v
			break
		}
	}
	if venue == nil {
		return nil, fmt.Errorf("%w: %d", catalog.ErrVenueNotFound, venueID)
	}

	type seatID struct {
		section int64
		number  int
	}
	seen := make(map[seatID]struct{}, len(seats))
	refs := make([]seat.Ref, 0, len(seats))
	for _, in := range seats {
		if in.VenueID != venueID {
			return nil, booking.ErrMixedVenues
		}
		sec, ok := venue.Section(in.SectionID)
		if !ok {
			return nil, fmt.Errorf("%w: %d", catalog.ErrSectionNotFound, in.SectionID)
		}
		ref, err := sec.Seat(in.Number)
		if err != nil {
			return nil, err
		}
		id := seatID{section: ref.SectionID, number: ref.Number}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: %s", booking.ErrDuplicateSeat, ref.Label())
		}
		seen[id] = struct{}{}
		ref.VenueID = venueID
		refs = append(refs, ref)
	}
	return refs, nil
}

// lockSeats は座席ごとの分散ロックを取得し、解放関数を返す
// Redis に障害がある場合はロックなしで続行し、台帳の一意制約に委ねる
func (s *BookingService) lockSeats(ctx context.Context, key seat.PerformanceKey, refs []seat.Ref) (func(), error) {
	noop := func() {}
	if s.lockManager == nil {
		return noop, nil
	}

	keys := make([]string, len(refs))
	for i, r := range refs {
		keys[i] = seatLockKey(key, r)
	}
	lock, err := s.lockManager.AcquireAll(ctx, keys, s.opts.LockTTL, s.opts.LockRetries, s.opts.LockRetryInterval)
	if err != nil {
		if errors.Is(err, redisinfra.ErrLockNotAcquired) {
			return nil, &booking.SeatConflictError{Seats: labels(refs), Err: err}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.Warn("分散ロックを取得できないためロックなしで続行します", zap.String("performance", key.String()), zap.Error(err))
		return noop, nil
	}
	return func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("分散ロックの解放に失敗しました", zap.String("performance", key.String()), zap.Error(err))
		}
	}, nil
}

// seatLockKey はロック名を返す。"lock:" はロックマネージャーが付ける
func seatLockKey(key seat.PerformanceKey, r seat.Ref) string {
	return fmt.Sprintf("seat:%s:%d:%d", key.String(), r.SectionID, r.Number)
}

// recheck はキャッシュを使わずに台帳を読み直し、予約済みの座席があれば衝突として返す
// 確定後に無効化すべきキャッシュの照会条件も返す
func (s *BookingService) recheck(ctx context.Context, key seat.PerformanceKey, refs []seat.Ref) ([]booking.BookedSeatsQuery, error) {
	var sections []int64
	bySection := make(map[int64][]seat.Ref)
	for _, r := range refs {
		if _, ok := bySection[r.SectionID]; !ok {
			sections = append(sections, r.SectionID)
		}
		bySection[r.SectionID] = append(bySection[r.SectionID], r)
	}
	sort.Slice(sections, func(i, j int) bool { return sections[i] < sections[j] })

	var conflicts []string
	queries := make([]booking.BookedSeatsQuery, 0, len(sections))
	for _, id := range sections {
		q := queryFor(key, id)
		queries = append(queries, q)
		booked, err := s.inventory.Fresh(ctx, q)
		if err != nil {
			return nil, err
		}
		for _, r := range bySection[id] {
			if booked.Contains(r.Number) {
				conflicts = append(conflicts, r.Label())
			}
		}
	}
	if len(conflicts) > 0 {
		return nil, &booking.SeatConflictError{Seats: conflicts}
	}
	return queries, nil
}

// buildRecord は明細の順に座席へチケット種別を割り当てて価格を計算する
func (s *BookingService) buildRecord(input CommitInput, m *catalog.Musical, key seat.PerformanceKey, refs []seat.Ref, now time.Time) (*booking.Record, booking.Receipt) {
	rec := booking.NewRecord(input.CustomerID, m.ID, key.ShowDate, key.ShowTime)
	rec.CreatedAt = now

	receipt := booking.Receipt{
		IssuedAt:    now,
		MusicalName: m.Name,
		ShowDate:    key.ShowDate,
		ShowTime:    key.ShowTime,
	}

	i := 0
	for _, item := range input.LineItems {
		for n := 0; n < item.Quantity; n++ {
			ref := refs[i]
			i++
			price := pricing.Price(ref.BasePrice, item.Type, 1)
			rec.Seats = append(rec.Seats, booking.Allocation{
				BookingID:  rec.ID,
				MusicalID:  m.ID,
				VenueID:    key.VenueID,
				SectionID:  ref.SectionID,
				SeatNumber: ref.Number,
				SeatLabel:  ref.Label(),
				ShowDate:   key.ShowDate,
				ShowTime:   key.ShowTime,
				TicketType: item.Type,
				Price:      price,
			})
			receipt.Lines = append(receipt.Lines, booking.ReceiptLine{SeatLabel: ref.Label(), TicketType: item.Type, Price: price})
			rec.TotalPrice += price
		}
	}
	receipt.Total = rec.TotalPrice
	rec.ReceiptText = receipt.String()
	return rec, receipt
}

// persist は予約・座席割り当て・売上・残数を1トランザクションで書き込む
func (s *BookingService) persist(ctx context.Context, rec *booking.Record, m *catalog.Musical, quantity int, now time.Time) error {
	err := transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		if err := s.bookingRepo.CreateRecord(ctx, tx, rec); err != nil {
			return err
		}
		if err := s.bookingRepo.CreateAllocations(ctx, tx, rec.Seats); err != nil {
			return err
		}
		entry := &booking.RevenueEntry{
			BookingID:       rec.ID,
			Amount:          rec.TotalPrice,
			TransactionDate: now,
			Category:        booking.RevenueCategoryTicketSales,
			Description:     fmt.Sprintf("%s %s %s x%d", m.Name, seat.FormatDate(rec.ShowDate), rec.ShowTime.Prefix(), quantity),
		}
		if err := s.revenueRepo.Append(ctx, tx, entry); err != nil {
			return err
		}
		return s.bookingRepo.DecrementAvailableTickets(ctx, tx, m.ID, quantity)
	})
	if err != nil {
		return classifyWriteError(err, rec.SeatLabels())
	}
	return nil
}

// classifyWriteError は書き込み単位の失敗を分類する
// 一意制約違反は座席の衝突、それ以外（残数ガードの競合を含む）は ErrCommitFailed で原因をラップする
func classifyWriteError(err error, seats []string) error {
	if errors.Is(err, booking.ErrSeatAlreadyAllocated) {
		return &booking.SeatConflictError{Seats: seats, Err: err}
	}
	return fmt.Errorf("%w: %w", booking.ErrCommitFailed, err)
}

func commitOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, redisinfra.ErrLockNotAcquired):
		return metrics.OutcomeLockFailed
	case errors.Is(err, booking.ErrSeatConflict):
		return metrics.OutcomeConflict
	case errors.Is(err, booking.ErrLedgerUnavailable):
		return metrics.OutcomeLedgerDegraded
	case errors.Is(err, booking.ErrCommitFailed):
		return metrics.OutcomeCommitFailed
	default:
		return metrics.OutcomeRejected
	}
}

func labels(refs []seat.Ref) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.Label()
	}
	return out
}

func (s *BookingService) GetBooking(ctx context.Context, id string) (*booking.Record, error) {
	return s.bookingRepo.GetByID(ctx, id)
}

// CustomerBookings は顧客の予約履歴を新しい順に返す
// q.From と q.To を指定すると公演日の範囲で絞り込む
func (s *BookingService) CustomerBookings(ctx context.Context, q booking.HistoryQuery) ([]*booking.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if q.Limit <= 0 {
		q.Limit = s.opts.HistoryDefaultSize
	}
	if q.Limit > maxHistorySize {
		q.Limit = maxHistorySize
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if !q.From.IsZero() {
		q.From = seat.DateOnly(q.From)
	}
	if !q.To.IsZero() {
		q.To = seat.DateOnly(q.To)
	}
	return s.bookingRepo.GetByCustomerID(ctx, q)
}

// AuditInventory は残数カウンタと台帳から導出した残数を突き合わせる
func (s *BookingService) AuditInventory(ctx context.Context) ([]booking.InventoryDrift, error) {
	musicals, err := s.catalogRepo.ListMusicals(ctx)
	if err != nil {
		return nil, fmt.Errorf("ミュージカル一覧の取得に失敗: %w", err)
	}
	counts, err := s.bookingRepo.CountAllocationsByMusical(ctx)
	if err != nil {
		return nil, err
	}

	drifts := make([]booking.InventoryDrift, 0, len(musicals))
	for _, m := range musicals {
		d := booking.InventoryDrift{
			MusicalID:   m.ID,
			MusicalName: m.Name,
			Cached:      m.AvailableTickets,
			Derived:     m.TotalTickets - counts[m.ID],
		}
		metrics.Get().SetInventoryDrift(m.Name, d.Delta())
		if d.Delta() != 0 {
			logger.Warn("残数カウンタが台帳と一致しません",
				zap.String("musical", m.Name),
				zap.Int("cached", d.Cached),
				zap.Int("derived", d.Derived),
			)
		}
		drifts = append(drifts, d)
	}
	return drifts, nil
}
