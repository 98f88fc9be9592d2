package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sanosuguru/go-musical-box-office/internal/pkg/metrics"
)

var (
	ErrLockNotAcquired = errors.New("ロックを取得できませんでした")
	ErrLockNotOwned    = errors.New("ロックの所有者ではありません")
)

const (
	// releaseScript は所有者確認と削除をアトミックに行う
	releaseScript = `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	extendScript = `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("PEXPIRE", KEYS[1], ARGV[2])
		else
			return 0
		end
	`
)

// Lock は取得済みのロック
type Lock interface {
	Release(ctx context.Context) error
	Extend(ctx context.Context, ttl time.Duration) error
}

// LockManagerInterface は予約確定処理が使う分散ロックの操作
type LockManagerInterface interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (Lock, error)
	AcquireLockWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (Lock, error)
	AcquireAll(ctx context.Context, keys []string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (Lock, error)
}

// DistributedLock は Redis を使用した分散ロック
type DistributedLock struct {
	client redis.Cmdable
	key    string
	value  string
	ttl    time.Duration
}

// LockManager は分散ロックを管理する
type LockManager struct {
	client   redis.Cmdable
	newToken func() string
}

// LockOption は LockManager の設定
type LockOption func(*LockManager)

// WithTokenGenerator はロック所有者トークンの生成方法を差し替える
func WithTokenGenerator(fn func() string) LockOption {
	return func(m *LockManager) { m.newToken = fn }
}

func NewLockManager(client redis.Cmdable, opts ...LockOption) *LockManager {
	m := &LockManager{
		client:   client,
		newToken: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AcquireLock はロックを取得する
func (m *LockManager) AcquireLock(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	lock, err := m.acquire(ctx, key, ttl)
	if err != nil {
		return nil, err
	}
	return lock, nil
}

func (m *LockManager) acquire(ctx context.Context, key string, ttl time.Duration) (*DistributedLock, error) {
	lockKey := fmt.Sprintf("lock:%s", key)
	lockValue := m.newToken()

	// SetNX を使用してロックを取得（キーが存在しない場合のみ設定）
	ok, err := m.client.SetNX(ctx, lockKey, lockValue, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("ロック取得に失敗: %w", err)
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}

	return &DistributedLock{
		client: m.client,
		key:    lockKey,
		value:  lockValue,
		ttl:    ttl,
	}, nil
}

// AcquireLockWithRetry はリトライ付きでロックを取得する
func (m *LockManager) AcquireLockWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (Lock, error) {
	lock, err := m.acquireWithRetry(ctx, key, ttl, maxRetries, retryDelay)
	if err != nil {
		return nil, err
	}
	return lock, nil
}

func (m *LockManager) acquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (*DistributedLock, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}
	start := time.Now()
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		lock, err := m.acquire(ctx, key, ttl)
		if err == nil {
			metrics.Get().ObserveLockDuration("acquired", time.Since(start))
			return lock, nil
		}
		lastErr = err
		if !errors.Is(err, ErrLockNotAcquired) {
			metrics.Get().ObserveLockDuration("error", time.Since(start))
			return nil, err
		}
		if i == maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	metrics.Get().ObserveLockDuration("contended", time.Since(start))
	return nil, lastErr
}

// AcquireAll は複数のキーをソート順に取得する
// 途中で失敗した場合は取得済みのロックをすべて解放する
func (m *LockManager) AcquireAll(ctx context.Context, keys []string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (Lock, error) {
	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)

	set := &LockSet{}
	var prev string
	for i, key := range sorted {
		if i > 0 && key == prev {
			continue
		}
		prev = key
		lock, err := m.acquireWithRetry(ctx, key, ttl, maxRetries, retryDelay)
		if err != nil {
			_ = set.Release(context.WithoutCancel(ctx))
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		set.locks = append(set.locks, lock)
	}
	return set, nil
}

// Release はロックを解放する（Lua スクリプトで安全に解放）
func (l *DistributedLock) Release(ctx context.Context) error {
	result, err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.value).Int()
	if err != nil {
		return fmt.Errorf("ロック解放に失敗: %w", err)
	}
	if result == 0 {
		return ErrLockNotOwned
	}
	return nil
}

// Extend はロックの有効期限を延長する
func (l *DistributedLock) Extend(ctx context.Context, ttl time.Duration) error {
	result, err := l.client.Eval(ctx, extendScript, []string{l.key}, l.value, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("ロック延長に失敗: %w", err)
	}
	if result == 0 {
		return ErrLockNotOwned
	}
	l.ttl = ttl
	return nil
}

// LockSet は AcquireAll で取得したロックの集合
type LockSet struct {
	locks []*DistributedLock
}

// Release は取得と逆順にすべて解放し、最初のエラーを返す
func (s *LockSet) Release(ctx context.Context) error {
	var first error
	for i := len(s.locks) - 1; i >= 0; i-- {
		if err := s.locks[i].Release(ctx); err != nil && first == nil {
			first = err
		}
	}
	s.locks = nil
	return first
}

// Extend はすべてのロックを延長する
func (s *LockSet) Extend(ctx context.Context, ttl time.Duration) error {
	for _, l := range s.locks {
		if err := l.Extend(ctx, ttl); err != nil {
			return err
		}
	}
	return nil
}

// Len は保持しているロック数を返す
func (s *LockSet) Len() int {
	return len(s.locks)
}

var (
	_ LockManagerInterface = (*LockManager)(nil)
	_ Lock                 = (*DistributedLock)(nil)
	_ Lock                 = (*LockSet)(nil)
)
