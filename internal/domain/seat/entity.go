package seat

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sanosuguru/go-musical-box-office/internal/domain/pricing"
)

const dateLayout = "2006-01-02"

// ShowTime は "HH:mm" 形式に正規化された開演時刻
type ShowTime string

var showTimeLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04PM", "03:04 PM"}

// ParseShowTime は開演時刻を解釈して "HH:mm" に正規化する
func ParseShowTime(s string) (ShowTime, error) {
	trimmed := strings.TrimSpace(s)
	for _, layout := range showTimeLayouts {
		if t, err := time.Parse(layout, strings.ToUpper(trimmed)); err == nil {
			return ShowTime(t.Format("15:04")), nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidShowTime, s)
}

// ShowTimeAt は時・分から ShowTime を作る
func ShowTimeAt(hour, minute int) ShowTime {
	return ShowTime(fmt.Sprintf("%02d:%02d", hour, minute))
}

// Prefix は台帳照合に使う固定長 "HH:mm" を返す
func (t ShowTime) Prefix() string {
	s := string(t)
	if len(s) > 5 {
		return s[:5]
	}
	return s
}

// Matches は台帳に記録された時刻（秒付きなどの表記揺れを含む）が一致するかを返す
func (t ShowTime) Matches(stored string) bool {
	return t.Prefix() != "" && strings.HasPrefix(stored, t.Prefix())
}

func (t ShowTime) String() string {
	return string(t)
}

// ParseShowDate は "YYYY-MM-DD" を日付（UTC 0時）として解釈する
func ParseShowDate(s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidShowDate, s)
	}
	return d, nil
}

// DateOnly は時刻部分を切り捨てた UTC の日付を返す
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate は日付を "YYYY-MM-DD" で返す
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// PerformanceKey は公演回（ミュージカル・会場・日付・時刻）を表す
// 永続化はされず、座席の一意性はこのキー単位で保証される
type PerformanceKey struct {
	MusicalID int64
	VenueID   int64
	ShowDate  time.Time
	ShowTime  ShowTime
}

// NewPerformanceKey は日付を正規化した PerformanceKey を作る
func NewPerformanceKey(musicalID, venueID int64, showDate time.Time, showTime ShowTime) PerformanceKey {
	return PerformanceKey{
		MusicalID: musicalID,
		VenueID:   venueID,
		ShowDate:  DateOnly(showDate),
		ShowTime:  showTime,
	}
}

func (k PerformanceKey) String() string {
	return fmt.Sprintf("%d:%d:%s:%s", k.MusicalID, k.VenueID, FormatDate(k.ShowDate), k.ShowTime.Prefix())
}

// Ref は公演回の中の1座席を指す
type Ref struct {
	VenueID     int64
	SectionID   int64
	SectionName string
	Number      int
	BasePrice   pricing.Amount
}

// Label は "Stalls7" のような表示用ラベルを返す
func (r Ref) Label() string {
	return fmt.Sprintf("%s%d", r.SectionName, r.Number)
}

// SameSeat は同じ座席かどうかを返す（価格などの付随情報は比較しない）
func (r Ref) SameSeat(other Ref) bool {
	return r.VenueID == other.VenueID && r.SectionID == other.SectionID && r.Number == other.Number
}

// BookedSet はあるセクションで予約済みの座席番号の集合
// Degraded は台帳を読めなかったことを示し、その場合の空集合は「全席空き」を意味しない
type BookedSet struct {
	numbers  map[int]struct{}
	Degraded bool
}

// NewBookedSet は座席番号の一覧から集合を作る
func NewBookedSet(numbers []int) BookedSet {
	set := BookedSet{numbers: make(map[int]struct{}, len(numbers))}
	for _, n := range numbers {
		set.numbers[n] = struct{}{}
	}
	return set
}

// DegradedSet は台帳読み取りに失敗したときの空集合を返す
func DegradedSet() BookedSet {
	return BookedSet{numbers: map[int]struct{}{}, Degraded: true}
}

// Contains は座席番号が予約済みかを返す
func (b BookedSet) Contains(number int) bool {
	_, ok := b.numbers[number]
	return ok
}

// Len は予約済み座席数を返す
func (b BookedSet) Len() int {
	return len(b.numbers)
}

// Numbers は昇順の座席番号一覧を返す
func (b BookedSet) Numbers() []int {
	out := make([]int, 0, len(b.numbers))
	for n := range b.numbers {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}
