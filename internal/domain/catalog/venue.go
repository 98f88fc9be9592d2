package catalog

import (
	"fmt"
	"strings"

	"github.com/sanosuguru/go-musical-box-office/internal/domain/pricing"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/seat"
)

// Venue は会場を表す
type Venue struct {
	ID            int64
	Name          string
	TotalCapacity int
	Sections      []Section
}

// Section は会場内の価格区分（座席番号 1..Capacity）
type Section struct {
	ID        int64
	VenueID   int64
	Name      string
	Capacity  int
	BasePrice pricing.Amount
}

// Validate はセクションの検証を行う
func (s *Section) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrSectionNameRequired
	}
	if s.Capacity <= 0 {
		return ErrInvalidCapacity
	}
	if s.BasePrice < 0 {
		return ErrInvalidPrice
	}
	return nil
}

// Seat は座席番号から座席参照を作る
func (s *Section) Seat(number int) (seat.Ref, error) {
	if number < 1 || number > s.Capacity {
		return seat.Ref{}, fmt.Errorf("%w: %s%d (1..%d)", seat.ErrInvalidSeatNumber, s.Name, number, s.Capacity)
	}
	return seat.Ref{
		VenueID:     s.VenueID,
		SectionID:   s.ID,
		SectionName: s.Name,
		Number:      number,
		BasePrice:   s.BasePrice,
	}, nil
}

// UsedCapacity はセクション容量の合計を返す
func (v *Venue) UsedCapacity() int {
	total := 0
	for _, s := range v.Sections {
		total += s.Capacity
	}
	return total
}

// RemainingCapacity はまだセクションに割り当てられていない容量を返す
func (v *Venue) RemainingCapacity() int {
	return v.TotalCapacity - v.UsedCapacity()
}

// CanAddSection は容量 capacity のセクションを追加できるかを返す
func (v *Venue) CanAddSection(capacity int) error {
	if capacity <= 0 {
		return ErrInvalidCapacity
	}
	if capacity > v.RemainingCapacity() {
		return fmt.Errorf("%w: 残り %d 席", ErrVenueCapacityExceeded, v.RemainingCapacity())
	}
	return nil
}

// AddSection はセクション容量の合計が会場容量を超えない場合のみ追加する
func (v *Venue) AddSection(s Section) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if err := v.CanAddSection(s.Capacity); err != nil {
		return err
	}
	s.VenueID = v.ID
	v.Sections = append(v.Sections, s)
	return nil
}

// Validate は会場の検証を行う
func (v *Venue) Validate() error {
	if strings.TrimSpace(v.Name) == "" {
		return ErrVenueNameRequired
	}
	if v.TotalCapacity <= 0 {
		return ErrInvalidCapacity
	}
	if v.UsedCapacity() > v.TotalCapacity {
		return ErrVenueCapacityExceeded
	}
	return nil
}

// Section はIDからセクションを探す
func (v *Venue) Section(id int64) (*Section, bool) {
	for i := range v.Sections {
		if v.Sections[i].ID == id {
			return &v.Sections[i], true
		}
	}
	return nil, false
}
