package seat

import "errors"

// Seat ドメインのエラー定義
var (
	ErrInvalidShowTime   = errors.New("開演時刻の形式が不正です")
	ErrInvalidShowDate   = errors.New("公演日の形式が不正です")
	ErrInvalidSeatNumber = errors.New("座席番号が範囲外です")
)
