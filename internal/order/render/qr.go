package render

import (
	"errors"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	DefaultQRSize = 256
	maxQRSize     = 1024
)

var ErrEmptyCode = errors.New("empty_code")

// QRCode renders a PNG QR code that scanners read back as code.
func QRCode(code string, size int) ([]byte, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrEmptyCode
	}
	if size <= 0 {
		size = DefaultQRSize
	}
	if size > maxQRSize {
		size = maxQRSize
	}
	return qrcode.Encode(code, qrcode.Medium, size)
}
