package render

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQRCodeProducesPNG(t *testing.T) {
	png, err := QRCode("01HZY3M3T5Q6J1XW7K2N8B4C9D", 128)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	_, err = QRCode("  ", 128)
	assert.ErrorIs(t, err, ErrEmptyCode)
}

func TestTicketsPDF(t *testing.T) {
	out, err := TicketsPDF(TicketDocument{
		OrderID:  "1",
		Currency: "USD",
		Total:    5376,
		Tickets: []TicketLine{
			{Code: "01HZY3M3T5Q6J1XW7K2N8B4C9D", TierID: "7", Status: "valid"},
			{Code: "01HZY3M3T5Q6J1XW7K2N8B4C9E", TierID: "7", Status: "valid"},
		},
		TierNames: map[string]string{"7": "General Admission"},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "USD 25.00", FormatCents(2500, "USD"))
	assert.Equal(t, "EUR 0.07", FormatCents(7, "EUR"))
	assert.Equal(t, "USD -1.50", FormatCents(-150, "USD"))
}
