package application

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-musical-box-office/internal/domain/booking"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/catalog"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/seat"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/selection"
	"github.com/sanosuguru/go-musical-box-office/internal/pkg/logger"
	"github.com/sanosuguru/go-musical-box-office/internal/pkg/metrics"
)

// SelectionService は顧客ごとの座席選択セッションを管理する
// 1人の顧客が持てるセッションは1つで、公演回を変えると前のセッションは破棄される
type SelectionService struct {
	mu       sync.Mutex
	sessions map[string]*selection.Session

	catalog   *CatalogService
	inventory *InventoryService
	bookings  *BookingService
}

func NewSelectionService(cs *CatalogService, inv *InventoryService, bs *BookingService) *SelectionService {
	return &SelectionService{
		sessions:  make(map[string]*selection.Session),
		catalog:   cs,
		inventory: inv,
		bookings:  bs,
	}
}

type StartSelectionInput struct {
	CustomerID string
	Musical    string
	VenueID    int64
	ShowDate   time.Time
	ShowTime   seat.ShowTime
	Quantity   int
}

// Start は公演回を指定して新しい選択セッションを開始する
func (s *SelectionService) Start(ctx context.Context, input StartSelectionInput) (*selection.Session, error) {
	if strings.TrimSpace(input.CustomerID) == "" {
		return nil, booking.ErrCustomerIDRequired
	}
	if input.Quantity <= 0 {
		return nil, selection.ErrInvalidQuantity
	}

	m, err := s.catalog.GetMusical(ctx, input.Musical)
	if err != nil {
		return nil, err
	}
	if !m.IsAvailableOn(input.ShowDate) {
		return nil, &booking.DayUnavailableError{Day: input.ShowDate.Weekday(), ValidDays: m.AvailableDayNames()}
	}
	if !m.HasShowTime(input.ShowTime) {
		return nil, fmt.Errorf("%w: %s", catalog.ErrShowTimeUnavailable, input.ShowTime)
	}
	if input.Quantity > m.AvailableTickets {
		return nil, fmt.Errorf("%w: 残り %d 枚", booking.ErrInsufficientInventory, m.AvailableTickets)
	}
	v, err := s.catalog.GetVenue(ctx, m.Name, input.VenueID)
	if err != nil {
		return nil, err
	}

	key := seat.NewPerformanceKey(m.ID, v.ID, input.ShowDate, input.ShowTime)
	booked := make(map[int64]seat.BookedSet, len(v.Sections))
	for _, sec := range v.Sections {
		set, err := s.inventory.Fresh(ctx, queryFor(key, sec.ID))
		if err != nil {
			return nil, err
		}
		booked[sec.ID] = set
	}

	sess, err := selection.NewSession(input.CustomerID, m.Name, key, input.Quantity, v.Sections, booked)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if old, ok := s.sessions[input.CustomerID]; ok {
		old.Invalidate()
	}
	s.sessions[input.CustomerID] = sess
	active := len(s.sessions)
	s.mu.Unlock()

	metrics.Get().SetActiveSelections(active)
	logger.Debug("選択セッションを開始しました",
		zap.String("customer_id", input.CustomerID),
		zap.String("session_id", sess.ID()),
		zap.String("performance", key.String()),
	)
	return sess, nil
}

// Current は顧客の現在のセッションを返す
func (s *SelectionService) Current(customerID string) (*selection.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[customerID]
	if !ok {
		return nil, selection.ErrSessionNotFound
	}
	return sess, nil
}

// Toggle はセクションの予約状況を台帳から読み直してから座席の選択を切り替える
// 読み直しで予約済みになった選択中の座席は選択から外れる
// 表示用キャッシュは使わない
func (s *SelectionService) Toggle(ctx context.Context, customerID string, sectionID int64, number int) (bool, selection.View, error) {
	sess, err := s.Current(customerID)
	if err != nil {
		return false, selection.View{}, err
	}

	set, err := s.inventory.Fresh(ctx, queryFor(sess.Key(), sectionID))
	if err != nil {
		logger.Warn("予約状況の読み直しに失敗しました", zap.String("customer_id", customerID), zap.Error(err))
	}
	if dropped := sess.UpdateBooked(sectionID, set); len(dropped) > 0 {
		logger.Info("予約済みになった座席を選択から外しました", zap.String("customer_id", customerID), logger.Seats(dropped))
	}

	selected, err := sess.Toggle(sectionID, number)
	if err != nil {
		return false, sess.Snapshot(), err
	}
	return selected, sess.Snapshot(), nil
}

// Abandon はセッションを破棄する
func (s *SelectionService) Abandon(customerID string) error {
	s.mu.Lock()
	sess, ok := s.sessions[customerID]
	if ok {
		delete(s.sessions, customerID)
	}
	active := len(s.sessions)
	s.mu.Unlock()

	if !ok {
		return selection.ErrSessionNotFound
	}
	sess.Invalidate()
	metrics.Get().SetActiveSelections(active)
	return nil
}

// Commit は選択済みの座席で予約を確定する。成功したセッションは破棄される
// 失敗した場合はセッションを残すので、座席を選び直して再試行できる
func (s *SelectionService) Commit(ctx context.Context, customerID string, items []booking.LineItem) (*CommitResult, error) {
	sess, err := s.Current(customerID)
	if err != nil {
		return nil, err
	}
	seats, err := sess.SelectedSeats()
	if err != nil {
		return nil, err
	}

	key := sess.Key()
	result, err := s.bookings.Commit(ctx, CommitInput{
		CustomerID: customerID,
		Musical:    sess.MusicalName(),
		ShowDate:   key.ShowDate,
		ShowTime:   key.ShowTime,
		LineItems:  items,
		Seats:      seats,
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.sessions[customerID] == sess {
		delete(s.sessions, customerID)
	}
	active := len(s.sessions)
	s.mu.Unlock()
	metrics.Get().SetActiveSelections(active)
	return result, nil
}

// ActiveCount は保持中のセッション数を返す
func (s *SelectionService) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
