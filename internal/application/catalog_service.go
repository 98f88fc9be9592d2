package application

import (
	"context"
	"fmt"
	"time"

	"github.com/sanosuguru/go-musical-box-office/internal/domain/booking"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/catalog"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/seat"
)

// CatalogService はカタログの参照を提供する
type CatalogService struct {
	repo catalog.Repository
}

func NewCatalogService(repo catalog.Repository) *CatalogService {
	return &CatalogService{repo: repo}
}

func (s *CatalogService) ListMusicals(ctx context.Context) ([]*catalog.Musical, error) {
	return s.repo.ListMusicals(ctx)
}

func (s *CatalogService) GetMusical(ctx context.Context, name string) (*catalog.Musical, error) {
	return s.repo.GetMusicalByName(ctx, name)
}

// GetVenues はミュージカルの上演会場を返す。作品が存在しない場合は ErrMusicalNotFound
func (s *CatalogService) GetVenues(ctx context.Context, musicalName string) ([]*catalog.Venue, error) {
	if _, err := s.repo.GetMusicalByName(ctx, musicalName); err != nil {
		return nil, err
	}
	return s.repo.GetVenuesForMusical(ctx, musicalName)
}

// GetVenue はミュージカルを上演する会場の中から venueID の会場を返す
func (s *CatalogService) GetVenue(ctx context.Context, musicalName string, venueID int64) (*catalog.Venue, error) {
	venues, err := s.GetVenues(ctx, musicalName)
	if err != nil {
		return nil, err
	}
	for _, v := range venues {
		if v.ID == venueID {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", catalog.ErrVenueNotFound, venueID)
}

// ShowTimes は指定日の上演枠を返す。上演曜日外なら DayUnavailableError
func (s *CatalogService) ShowTimes(ctx context.Context, musicalName string, date time.Time) ([]seat.ShowTime, error) {
	m, err := s.repo.GetMusicalByName(ctx, musicalName)
	if err != nil {
		return nil, err
	}
	if !m.IsAvailableOn(date) {
		return nil, &booking.DayUnavailableError{Day: date.Weekday(), ValidDays: m.AvailableDayNames()}
	}
	return m.ShowTimes(), nil
}
