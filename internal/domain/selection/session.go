package selection

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sanosuguru/go-musical-box-office/internal/domain/booking"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/catalog"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/seat"
)

// State は選択セッションの状態
type State string

const (
	StateEmpty    State = "empty"
	StatePartial  State = "partial"
	StateComplete State = "complete"
)

// Session は1人の顧客が1つの公演回で座席を選ぶ間の状態を保持する
// 座席を確保（ロック）はしないため、確定時に必ず再検証される
type Session struct {
	mu sync.Mutex

	id          string
	customerID  string
	musicalName string
	key         seat.PerformanceKey
	quantity    int
	sections    map[int64]catalog.Section
	booked      map[int64]seat.BookedSet
	selected    []seat.Ref
	invalidated bool
	createdAt   time.Time
}

// NewSession は空の選択セッションを作成する
// booked はセクションIDごとの予約済み座席（作成時点のスナップショット）
func NewSession(customerID, musicalName string, key seat.PerformanceKey, quantity int, sections []catalog.Section, booked map[int64]seat.BookedSet) (*Session, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	s := &Session{
		id:          uuid.New().String(),
		customerID:  customerID,
		musicalName: musicalName,
		key:         key,
		quantity:    quantity,
		sections:    make(map[int64]catalog.Section, len(sections)),
		booked:      make(map[int64]seat.BookedSet, len(booked)),
		createdAt:   time.Now(),
	}
	for _, sec := range sections {
		s.sections[sec.ID] = sec
	}
	for id, set := range booked {
		s.booked[id] = set
	}
	return s, nil
}

func (s *Session) ID() string               { return s.id }
func (s *Session) CustomerID() string       { return s.customerID }
func (s *Session) MusicalName() string      { return s.musicalName }
func (s *Session) Key() seat.PerformanceKey { return s.key }
func (s *Session) Quantity() int            { return s.quantity }
func (s *Session) CreatedAt() time.Time     { return s.createdAt }
func (s *Session) SameTarget(musicalName string, key seat.PerformanceKey) bool {
	return s.musicalName == musicalName && s.key == key
}

// State は現在の状態を返す
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	switch {
	case len(s.selected) == 0:
		return StateEmpty
	case len(s.selected) < s.quantity:
		return StatePartial
	default:
		return StateComplete
	}
}

// Select は座席を選択する
// 上限に達している場合は ErrSelectionFull を返し、状態は変わらない
func (s *Session) Select(sectionID int64, number int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref, err := s.resolveLocked(sectionID, number)
	if err != nil {
		return err
	}
	if s.indexLocked(sectionID, number) >= 0 {
		return nil
	}
	if len(s.selected) >= s.quantity {
		return ErrSelectionFull
	}
	s.selected = append(s.selected, ref)
	return nil
}

// Deselect は選択済みの座席を外す
func (s *Session) Deselect(sectionID int64, number int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.invalidated {
		return ErrSessionInvalidated
	}
	i := s.indexLocked(sectionID, number)
	if i < 0 {
		return ErrSeatNotSelected
	}
	s.selected = append(s.selected[:i], s.selected[i+1:]...)
	return nil
}

// Toggle は座席の選択状態を切り替え、切り替え後に選択されているかを返す
// 選択中の座席は台帳の状態に関わらず外せる
func (s *Session) Toggle(sectionID int64, number int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.invalidated {
		return false, ErrSessionInvalidated
	}
	if i := s.indexLocked(sectionID, number); i >= 0 {
		s.selected = append(s.selected[:i], s.selected[i+1:]...)
		return false, nil
	}
	ref, err := s.resolveLocked(sectionID, number)
	if err != nil {
		return false, err
	}
	if len(s.selected) >= s.quantity {
		return false, ErrSelectionFull
	}
	s.selected = append(s.selected, ref)
	return true, nil
}

// SelectedSeats は選択が完了している場合に選択順の座席を返す
func (s *Session) SelectedSeats() ([]seat.Ref, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.invalidated {
		return nil, ErrSessionInvalidated
	}
	if s.stateLocked() != StateComplete {
		return nil, fmt.Errorf("%w: %d/%d", booking.ErrSelectionIncomplete, len(s.selected), s.quantity)
	}
	out := make([]seat.Ref, len(s.selected))
	copy(out, s.selected)
	return out, nil
}

// Snapshot は現在の選択内容を返す（状態によらない）
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	selected := make([]seat.Ref, len(s.selected))
	copy(selected, s.selected)
	return View{
		ID:          s.id,
		CustomerID:  s.customerID,
		MusicalName: s.musicalName,
		Key:         s.key,
		Quantity:    s.quantity,
		State:       s.stateLocked(),
		Selected:    selected,
		Invalidated: s.invalidated,
	}
}

// UpdateBooked は予約済み座席のスナップショットを差し替える
// 既に選択済みで予約済みになった座席は選択から外し、そのラベルを返す
func (s *Session) UpdateBooked(sectionID int64, set seat.BookedSet) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.booked[sectionID] = set
	var dropped []string
	kept := s.selected[:0]
	for _, ref := range s.selected {
		if ref.SectionID == sectionID && set.Contains(ref.Number) {
			dropped = append(dropped, ref.Label())
			continue
		}
		kept = append(kept, ref)
	}
	s.selected = kept
	return dropped
}

// Invalidate はセッションを無効化する。以降の操作はすべて ErrSessionInvalidated になる
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated = true
	s.selected = nil
}

// IsInvalidated は無効化済みかを返す
func (s *Session) IsInvalidated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invalidated
}

func (s *Session) resolveLocked(sectionID int64, number int) (seat.Ref, error) {
	if s.invalidated {
		return seat.Ref{}, ErrSessionInvalidated
	}
	sec, ok := s.sections[sectionID]
	if !ok {
		return seat.Ref{}, fmt.Errorf("%w: %d", ErrUnknownSection, sectionID)
	}
	ref, err := sec.Seat(number)
	if err != nil {
		return seat.Ref{}, err
	}
	set := s.booked[sectionID]
	if set.Degraded {
		return seat.Ref{}, booking.ErrLedgerUnavailable
	}
	if set.Contains(number) {
		return seat.Ref{}, fmt.Errorf("%w: %s", ErrSeatBooked, ref.Label())
	}
	return ref, nil
}

func (s *Session) indexLocked(sectionID int64, number int) int {
	for i, r := range s.selected {
		if r.SectionID == sectionID && r.Number == number {
			return i
		}
	}
	return -1
}

// View は選択セッションの読み取り専用のスナップショット
type View struct {
	ID          string
	CustomerID  string
	MusicalName string
	Key         seat.PerformanceKey
	Quantity    int
	State       State
	Selected    []seat.Ref
	Invalidated bool
}

// Labels は選択中の座席ラベルを返す
func (v View) Labels() []string {
	out := make([]string, len(v.Selected))
	for i, r := range v.Selected {
		out[i] = r.Label()
	}
	return out
}
