package booking

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// 予約確定処理のエラー分類。呼び出し側はすべて errors.Is で区別できる
var (
	ErrSelectionIncomplete   = errors.New("座席の選択が完了していません")
	ErrSeatCountMismatch     = errors.New("座席数とチケット枚数が一致しません")
	ErrDayUnavailable        = errors.New("この日は上演がありません")
	ErrInsufficientInventory = errors.New("チケットの残数が不足しています")
	ErrSeatConflict          = errors.New("座席は既に予約されています")
	ErrCommitFailed          = errors.New("予約の確定に失敗しました")
	ErrArtifactWriteFailed   = errors.New("レシートの出力に失敗しました")
)

// Booking ドメインのその他のエラー定義
var (
	ErrBookingNotFound      = errors.New("予約が見つかりません")
	ErrSeatAlreadyAllocated = errors.New("座席の一意性制約に違反しました")
	ErrLedgerUnavailable    = errors.New("予約台帳を読み取れません")
	ErrCustomerIDRequired   = errors.New("顧客IDは必須です")
	ErrMusicalIDRequired    = errors.New("ミュージカルIDは必須です")
	ErrLineItemsRequired    = errors.New("チケット明細は必須です")
	ErrInvalidQuantity      = errors.New("枚数は1以上である必要があります")
	ErrInvalidTotal         = errors.New("合計金額が不正です")
	ErrDuplicateSeat        = errors.New("同じ座席が複数回指定されています")
	ErrMixedVenues          = errors.New("1回の予約で指定できる会場は1つです")
	ErrInvalidDateRange     = errors.New("公演日の範囲が不正です")
)

// DayUnavailableError は上演曜日外の日付が指定されたことを表す
type DayUnavailableError struct {
	Day       time.Weekday
	ValidDays []string
}

func (e *DayUnavailableError) Error() string {
	return fmt.Sprintf("%s (%s)。上演曜日: %s", ErrDayUnavailable.Error(), e.Day, strings.Join(e.ValidDays, ", "))
}

func (e *DayUnavailableError) Is(target error) bool {
	return target == ErrDayUnavailable
}

// SeatConflictError は他の予約と衝突した座席を表す
// Err には一意性制約違反など検出元のエラーが入る（再チェックで検出した場合は nil）
type SeatConflictError struct {
	Seats []string
	Err   error
}

func (e *SeatConflictError) Error() string {
	msg := fmt.Sprintf("%s: %s", ErrSeatConflict.Error(), strings.Join(e.Seats, ", "))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SeatConflictError) Is(target error) bool {
	return target == ErrSeatConflict
}

func (e *SeatConflictError) Unwrap() error {
	return e.Err
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
