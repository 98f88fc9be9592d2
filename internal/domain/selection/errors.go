package selection

import "errors"

// Selection ドメインのエラー定義
var (
	ErrSelectionFull      = errors.New("選択できる座席数の上限に達しています")
	ErrSeatBooked         = errors.New("座席は既に予約されています")
	ErrSeatNotSelected    = errors.New("座席は選択されていません")
	ErrUnknownSection     = errors.New("セクションがこの会場にありません")
	ErrSessionInvalidated = errors.New("選択セッションは無効になりました")
	ErrSessionNotFound    = errors.New("選択セッションが見つかりません")
	ErrInvalidQuantity    = errors.New("選択する座席数は1以上である必要があります")
)
