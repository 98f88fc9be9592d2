package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-musical-box-office/internal/domain/booking"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/catalog"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/seat"
	redisinfra "github.com/sanosuguru/go-musical-box-office/internal/infrastructure/redis"
	"github.com/sanosuguru/go-musical-box-office/internal/pkg/logger"
)

const defaultSeatCacheTTL = 30 * time.Second

// InventoryService は予約台帳から座席の空き状況を導出する
// 表示用の読み取りはキャッシュを使い、予約確定時の再チェックは常に台帳を直接読む
type InventoryService struct {
	catalog  *CatalogService
	ledger   booking.Repository
	cache    redisinfra.SeatCacheInterface
	cacheTTL time.Duration
}

func NewInventoryService(cs *CatalogService, ledger booking.Repository, cache redisinfra.SeatCacheInterface, cacheTTL time.Duration) *InventoryService {
	if cacheTTL <= 0 {
		cacheTTL = defaultSeatCacheTTL
	}
	return &InventoryService{catalog: cs, ledger: ledger, cache: cache, cacheTTL: cacheTTL}
}

// BookedSeats はミュージカル名で指定した公演回・セクションの予約済み座席を返す
// 台帳を読めない場合は Degraded な空集合と ErrLedgerUnavailable をラップしたエラーを返す
func (s *InventoryService) BookedSeats(ctx context.Context, musicalName string, venueID, sectionID int64, date time.Time, showTime seat.ShowTime) (seat.BookedSet, error) {
	m, err := s.catalog.GetMusical(ctx, musicalName)
	if err != nil {
		return seat.DegradedSet(), err
	}
	return s.Cached(ctx, booking.BookedSeatsQuery{
		MusicalID: m.ID, VenueID: venueID, SectionID: sectionID,
		ShowDate: seat.DateOnly(date), ShowTime: showTime,
	})
}

// Cached は表示用にキャッシュを経由して予約済み座席を返す
func (s *InventoryService) Cached(ctx context.Context, q booking.BookedSeatsQuery) (seat.BookedSet, error) {
	if s.cache != nil {
		numbers, err := s.cache.GetBookedSeats(ctx, q)
		if err == nil {
			logger.Debug("キャッシュヒット", zap.String("key", q.CacheKey()), zap.Int("booked", len(numbers)))
			return seat.NewBookedSet(numbers), nil
		}
		if !errors.Is(err, redisinfra.ErrCacheMiss) {
			logger.Warn("キャッシュ取得エラー", zap.Error(err))
		}
	}

	// 世代は台帳より先に読む。読み取り中に確定があれば保存は捨てられる
	var (
		gen    int64
		genErr error
	)
	if s.cache != nil {
		gen, genErr = s.cache.Generation(ctx, q)
		if genErr != nil {
			logger.Warn("キャッシュ世代の取得エラー", zap.Error(genErr))
		}
	}

	set, err := s.Fresh(ctx, q)
	if err != nil {
		return set, err
	}

	if s.cache != nil && genErr == nil {
		cacheErr := s.cache.SetBookedSeats(ctx, q, set.Numbers(), gen, s.cacheTTL)
		switch {
		case errors.Is(cacheErr, redisinfra.ErrCacheStale):
			logger.Debug("読み取り中に無効化されたためキャッシュに保存しません", zap.String("key", q.CacheKey()))
		case cacheErr != nil:
			logger.Warn("キャッシュ保存エラー", zap.Error(cacheErr))
		}
	}
	return set, nil
}

// Fresh はキャッシュを使わずに台帳から予約済み座席を読む
func (s *InventoryService) Fresh(ctx context.Context, q booking.BookedSeatsQuery) (seat.BookedSet, error) {
	numbers, err := s.ledger.BookedSeats(ctx, q)
	if err != nil {
		logger.Error("予約台帳の読み取りに失敗", zap.String("key", q.CacheKey()), zap.Error(err))
		if !errors.Is(err, booking.ErrLedgerUnavailable) {
			err = fmt.Errorf("%w: %v", booking.ErrLedgerUnavailable, err)
		}
		return seat.DegradedSet(), err
	}
	return seat.NewBookedSet(numbers), nil
}

// Invalidate は表示用キャッシュを無効化する（失敗はログのみ）
func (s *InventoryService) Invalidate(ctx context.Context, queries ...booking.BookedSeatsQuery) {
	if s.cache == nil || len(queries) == 0 {
		return
	}
	if err := s.cache.Invalidate(ctx, queries...); err != nil {
		logger.Warn("キャッシュ無効化エラー", zap.Error(err))
	}
}

// SectionAvailability はセクション単位の空き状況
type SectionAvailability struct {
	Section catalog.Section
	Booked  seat.BookedSet
}

// Available は空席数を返す
func (a SectionAvailability) Available() int {
	return a.Section.Capacity - a.Booked.Len()
}

// SeatMap は公演回の会場全体の空き状況
type SeatMap struct {
	Musical  *catalog.Musical
	Venue    *catalog.Venue
	Key      seat.PerformanceKey
	Sections []SectionAvailability
	Degraded bool
}

// SeatMap は会場の全セクションの予約済み座席をまとめて返す
// 一部のセクションが読めなかった場合も結果を返し、Degraded を立てる
func (s *InventoryService) SeatMap(ctx context.Context, musicalName string, venueID int64, date time.Time, showTime seat.ShowTime) (*SeatMap, error) {
	m, err := s.catalog.GetMusical(ctx, musicalName)
	if err != nil {
		return nil, err
	}
	v, err := s.catalog.GetVenue(ctx, musicalName, venueID)
	if err != nil {
		return nil, err
	}

	key := seat.NewPerformanceKey(m.ID, v.ID, date, showTime)
	sm := &SeatMap{Musical: m, Venue: v, Key: key}
	var ledgerErr error
	for _, sec := range v.Sections {
		set, err := s.Cached(ctx, queryFor(key, sec.ID))
		if err != nil {
			sm.Degraded = true
			ledgerErr = err
		}
		sm.Sections = append(sm.Sections, SectionAvailability{Section: sec, Booked: set})
	}
	return sm, ledgerErr
}

func queryFor(key seat.PerformanceKey, sectionID int64) booking.BookedSeatsQuery {
	return booking.BookedSeatsQuery{
		MusicalID: key.MusicalID, VenueID: key.VenueID, SectionID: sectionID,
		ShowDate: key.ShowDate, ShowTime: key.ShowTime,
	}
}
