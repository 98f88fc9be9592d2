package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sanosuguru/go-musical-box-office/internal/domain/pricing"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/seat"
)

// ReceiptSeparator はレシートの区切り線
const ReceiptSeparator = "--------------------------------------"

// ReceiptLine はレシートの座席明細
type ReceiptLine struct {
	SeatLabel  string
	TicketType pricing.TicketType
	Price      pricing.Amount
}

// Receipt は人が読むためのレシート。機械処理は想定しない
type Receipt struct {
	IssuedAt    time.Time
	MusicalName string
	ShowDate    time.Time
	ShowTime    seat.ShowTime
	Lines       []ReceiptLine
	Total       pricing.Amount
}

// String はレシートをテキストに整形する
func (r Receipt) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Date and Time: %s\n", r.IssuedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Musical: %s\n", r.MusicalName)
	fmt.Fprintf(&b, "Show Time: %s %s\n", seat.FormatDate(r.ShowDate), r.ShowTime)
	b.WriteString("Ticket Details:\n")
	for _, l := range r.Lines {
		fmt.Fprintf(&b, "%s (%s): %s\n", l.SeatLabel, l.TicketType, l.Price)
	}
	fmt.Fprintf(&b, "Total Price: %s\n", r.Total)
	b.WriteString(ReceiptSeparator + "\n")
	return b.String()
}

// ReceiptSink はレシートの出力先（追記のみ）
type ReceiptSink interface {
	Export(ctx context.Context, bookingID string, text string) error
}
