package render

import (
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/image"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/extension"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type TicketDocument struct {
	OrderID   string
	Email     string
	PaidAt    string
	Currency  string
	Total     int64
	Tickets   []TicketLine
	TierNames map[string]string
}

type TicketLine struct {
	Code   string
	TierID string
	Status string
}

// TicketsPDF lays out one block per ticket with its QR code.
func TicketsPDF(doc TicketDocument) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(20,
		text.NewCol(8, "Your tickets", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, FormatCents(doc.Total, doc.Currency), props.Text{
			Size:  12,
			Style: fontstyle.Bold,
			Align: align.Right,
			Top:   4,
		}),
	)
	m.AddRow(16,
		col.New(12).Add(
			text.New("Order: "+doc.OrderID, props.Text{Top: 0}),
			text.New("Paid: "+doc.PaidAt, props.Text{Top: 4}),
			text.New(doc.Email, props.Text{Top: 8}),
		),
	)

	for _, ticket := range doc.Tickets {
		png, err := QRCode(ticket.Code, DefaultQRSize)
		if err != nil {
			return nil, fmt.Errorf("render qr for %s: %w", ticket.Code, err)
		}
		tierName := doc.TierNames[ticket.TierID]
		if tierName == "" {
			tierName = ticket.TierID
		}
		m.AddRow(45,
			image.NewFromBytesCol(4, png, extension.Png, props.Rect{Center: true, Percent: 90}),
			col.New(8).Add(
				text.New(tierName, props.Text{Size: 14, Style: fontstyle.Bold, Top: 6}),
				text.New(ticket.Code, props.Text{Size: 10, Top: 16}),
				text.New("Status: "+ticket.Status, props.Text{Size: 9, Top: 24}),
			),
		)
	}

	out, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return out.GetBytes(), nil
}

// FormatCents renders an amount such as "USD 25.00".
func FormatCents(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s %s%d.%02d", currency, sign, cents/100, cents%100)
}
