package catalog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sanosuguru/go-musical-box-office/internal/domain/pricing"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/seat"
)

// 上演枠の生成に使う劇場の営業時間
const (
	openingHour    = 10
	closingHour    = 22
	bufferMinutes  = 30
	maxShowsPerDay = 24
)

// Musical はミュージカル作品を表す
type Musical struct {
	ID             int64
	Name           string
	RunTimeMinutes int
	Categories     []string
	AgeRestriction string
	BasePrice      pricing.Amount
	// TotalTickets は販売枚数の初期値。AvailableTickets を台帳から再計算する際の基準になる
	TotalTickets int
	// AvailableTickets は表示と粗い事前チェック用のキャッシュ値。座席の真実は予約台帳にある
	AvailableTickets int
	AvailableDays    []time.Weekday
}

// Validate はミュージカルの検証を行う
func (m *Musical) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return ErrMusicalNameRequired
	}
	if m.RunTimeMinutes <= 0 {
		return ErrInvalidRunTime
	}
	if m.BasePrice < 0 {
		return ErrInvalidPrice
	}
	if m.AvailableTickets < 0 || m.AvailableTickets > m.TotalTickets {
		return ErrInvalidTicketCount
	}
	return nil
}

// IsAvailableOn は指定日の曜日に上演があるかを返す
func (m *Musical) IsAvailableOn(date time.Time) bool {
	day := date.Weekday()
	for _, d := range m.AvailableDays {
		if d == day {
			return true
		}
	}
	return false
}

// AvailableDayNames は上演曜日を日曜始まりの順で返す
func (m *Musical) AvailableDayNames() []string {
	var names []string
	for d := time.Sunday; d <= time.Saturday; d++ {
		for _, a := range m.AvailableDays {
			if a == d {
				names = append(names, d.String())
				break
			}
		}
	}
	return names
}

// ShowTimes は1日の上演枠を返す
// 10:00 開始、上演時間 + 30分の間隔で、22:00 までに終演する回のみ（最大24回）
func (m *Musical) ShowTimes() []seat.ShowTime {
	if m.RunTimeMinutes <= 0 {
		return nil
	}
	var times []seat.ShowTime
	start := openingHour * 60
	end := closingHour * 60
	for start+m.RunTimeMinutes < end {
		times = append(times, seat.ShowTimeAt(start/60, start%60))
		start += m.RunTimeMinutes + bufferMinutes
		if len(times) >= maxShowsPerDay {
			break
		}
	}
	return times
}

// HasShowTime は指定の開演時刻が上演枠に含まれるかを返す
func (m *Musical) HasShowTime(t seat.ShowTime) bool {
	for _, st := range m.ShowTimes() {
		if st.Prefix() == t.Prefix() {
			return true
		}
	}
	return false
}

var runTimePart = regexp.MustCompile(`^(\d+)(h|min)$`)

// ParseRunTime は "2h 30min" 形式の上演時間を分に変換する
func ParseRunTime(s string) (int, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, ErrInvalidRunTime
	}
	minutes := 0
	for _, f := range fields {
		parts := runTimePart.FindStringSubmatch(strings.ToLower(f))
		if parts == nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidRunTime, s)
		}
		n, _ := strconv.Atoi(parts[1])
		if parts[2] == "h" {
			n *= 60
		}
		minutes += n
	}
	if minutes <= 0 {
		return 0, ErrInvalidRunTime
	}
	return minutes, nil
}

// ParseWeekdays は "Monday, Tuesday" のような曜日リストを解釈する
func ParseWeekdays(s string) ([]time.Weekday, error) {
	var days []time.Weekday
	for _, raw := range strings.Split(strings.ReplaceAll(s, `"`, ""), ",") {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		d, ok := weekdayByName(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidWeekday, name)
		}
		days = append(days, d)
	}
	return days, nil
}

func weekdayByName(name string) (time.Weekday, bool) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := d.String()
		if strings.EqualFold(name, full) || strings.EqualFold(name, full[:3]) {
			return d, true
		}
	}
	return 0, false
}
