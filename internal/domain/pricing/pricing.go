package pricing

import "strings"

// TicketType はチケット種別を表す
type TicketType string

const (
	Adult   TicketType = "Adult"
	Senior  TicketType = "Senior"
	Student TicketType = "Student"
)

// ParseTicketType は大文字小文字を区別せずに種別を解釈する
// 未知の種別はそのまま返し、価格計算では大人料金として扱う
func ParseTicketType(s string) TicketType {
	trimmed := strings.TrimSpace(s)
	for _, t := range []TicketType{Adult, Senior, Student} {
		if strings.EqualFold(trimmed, string(t)) {
			return t
		}
	}
	return TicketType(trimmed)
}

// IsKnown は定義済みの種別かを返す
func (t TicketType) IsKnown() bool {
	switch t {
	case Adult, Senior, Student:
		return true
	}
	return false
}

// DiscountPercent は割引率（%）を返す
func (t TicketType) DiscountPercent() int64 {
	switch t {
	case Senior:
		return 30
	case Student:
		return 60
	default:
		return 0
	}
}

// Price は base × quantity × (1 − discount) をペンス単位で計算する
// 端数は1ペンス単位で四捨五入する
func Price(base Amount, t TicketType, quantity int) Amount {
	if quantity <= 0 || base <= 0 {
		return 0
	}
	gross := int64(base) * int64(quantity) * (100 - t.DiscountPercent())
	return Amount((gross + 50) / 100)
}
