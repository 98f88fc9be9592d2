package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sanosuguru/go-musical-box-office/internal/domain/booking"
)

var (
	ErrCacheMiss  = errors.New("キャッシュが見つかりません")
	ErrCacheStale = errors.New("キャッシュの世代が古いため保存しません")
)

// generationTTL は世代キーの有効期限。失効すると世代は 0 に戻る
const generationTTL = 24 * time.Hour

// setIfGenerationScript は世代が読み取り時点から変わっていない場合のみ値を保存する
const setIfGenerationScript = `
	if (redis.call("GET", KEYS[2]) or "0") == ARGV[2] then
		redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
		return 1
	else
		return 0
	end
`

// SeatCacheInterface は表示用の予約済み座席キャッシュ
// 予約確定処理の再チェックはこのキャッシュを使わない
//
// 台帳を読む前に Generation を取得し、その世代を SetBookedSeats に渡す。
// 間に Invalidate が走った場合、古い集合は保存されない
type SeatCacheInterface interface {
	GetBookedSeats(ctx context.Context, q booking.BookedSeatsQuery) ([]int, error)
	Generation(ctx context.Context, q booking.BookedSeatsQuery) (int64, error)
	SetBookedSeats(ctx context.Context, q booking.BookedSeatsQuery, numbers []int, generation int64, ttl time.Duration) error
	Invalidate(ctx context.Context, queries ...booking.BookedSeatsQuery) error
}

// SeatCache は予約済み座席のキャッシュを管理する
type SeatCache struct {
	client redis.Cmdable
}

// NewSeatCache は新しいSeatCacheインスタンスを作成する
func NewSeatCache(client redis.Cmdable) *SeatCache {
	return &SeatCache{client: client}
}

// GetBookedSeats はセクションの予約済み座席番号をキャッシュから取得する
func (c *SeatCache) GetBookedSeats(ctx context.Context, q booking.BookedSeatsQuery) ([]int, error) {
	raw, err := c.client.Get(ctx, BookedSeatsKey(q)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}
	var numbers []int
	if err := json.Unmarshal(raw, &numbers); err != nil {
		return nil, fmt.Errorf("キャッシュの形式が不正です: %w", err)
	}
	return numbers, nil
}

// Generation はセクションのキャッシュの現在の世代を返す（未設定は 0）
func (c *SeatCache) Generation(ctx context.Context, q booking.BookedSeatsQuery) (int64, error) {
	gen, err := c.client.Get(ctx, GenerationKey(q)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("キャッシュの世代取得に失敗: %w", err)
	}
	return gen, nil
}

// SetBookedSeats はセクションの予約済み座席番号をキャッシュに保存する
// generation 以降に無効化されていた場合は保存せず ErrCacheStale を返す
func (c *SeatCache) SetBookedSeats(ctx context.Context, q booking.BookedSeatsQuery, numbers []int, generation int64, ttl time.Duration) error {
	if numbers == nil {
		numbers = []int{}
	}
	raw, err := json.Marshal(numbers)
	if err != nil {
		return fmt.Errorf("キャッシュのエンコードに失敗: %w", err)
	}
	stored, err := c.client.Eval(ctx, setIfGenerationScript,
		[]string{BookedSeatsKey(q), GenerationKey(q)},
		string(raw), generation, ttl.Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	if stored == 0 {
		return ErrCacheStale
	}
	return nil
}

// Invalidate は指定したセクションの世代を進めてからキャッシュを削除する
func (c *SeatCache) Invalidate(ctx context.Context, queries ...booking.BookedSeatsQuery) error {
	if len(queries) == 0 {
		return nil
	}
	keys := make([]string, len(queries))
	for i, q := range queries {
		keys[i] = BookedSeatsKey(q)
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, q := range queries {
			pipe.Incr(ctx, GenerationKey(q))
			pipe.Expire(ctx, GenerationKey(q), generationTTL)
		}
		pipe.Del(ctx, keys...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

// BookedSeatsKey はキャッシュのキーを返す
func BookedSeatsKey(q booking.BookedSeatsQuery) string {
	return fmt.Sprintf("seats:booked:%s", q.CacheKey())
}

// GenerationKey はキャッシュの世代キーを返す
func GenerationKey(q booking.BookedSeatsQuery) string {
	return fmt.Sprintf("seats:gen:%s", q.CacheKey())
}

var _ SeatCacheInterface = (*SeatCache)(nil)
