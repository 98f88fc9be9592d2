package catalog

import "errors"

// Catalog ドメインのエラー定義
var (
	ErrMusicalNotFound       = errors.New("ミュージカルが見つかりません")
	ErrVenueNotFound         = errors.New("会場が見つかりません")
	ErrSectionNotFound       = errors.New("セクションが見つかりません")
	ErrMusicalNameRequired   = errors.New("ミュージカル名は必須です")
	ErrVenueNameRequired     = errors.New("会場名は必須です")
	ErrSectionNameRequired   = errors.New("セクション名は必須です")
	ErrInvalidRunTime        = errors.New("上演時間が不正です")
	ErrInvalidWeekday        = errors.New("曜日が不正です")
	ErrInvalidPrice          = errors.New("価格は0以上である必要があります")
	ErrInvalidTicketCount    = errors.New("販売可能枚数が不正です")
	ErrInvalidCapacity       = errors.New("容量は1以上である必要があります")
	ErrVenueCapacityExceeded = errors.New("セクション容量の合計が会場容量を超えています")
	ErrShowTimeUnavailable   = errors.New("指定の時刻に上演はありません")
)
