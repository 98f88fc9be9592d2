package pricing

import (
	"fmt"
	"math"
)

// Amount はペンス単位の金額を表す（固定小数点）
type Amount int64

// FromPounds はポンド表記の値をペンスに変換する
func FromPounds(pounds float64) Amount {
	return Amount(math.Round(pounds * 100))
}

// Pounds はポンド単位の値を返す（表示・JSON 用）
func (a Amount) Pounds() float64 {
	return float64(a) / 100
}

// String は "£160.00" 形式で返す
func (a Amount) String() string {
	sign := ""
	v := int64(a)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s£%d.%02d", sign, v/100, v%100)
}
