// Package qrcode renders QR code images for shortened URLs.
package qrcode

import (
	"fmt"

	"github.com/skip2/go-qrcode"
	"github.com/vadimbarashkov/url-shortener/internal/entity"
)

// Encoder renders PNG QR codes at the High recovery level, which restores up
// to 25% of damaged modules.
type Encoder struct {
	level qrcode.RecoveryLevel
}

func NewEncoder() *Encoder {
	return &Encoder{level: qrcode.High}
}

// Encode returns a PNG image of content, at least size×size pixels.
// The image grows past size when the QR grid and its border need more pixels.
// Content beyond the capacity of the largest QR version fails with
// entity.ErrQRCodeCapacityExceeded.
func (e *Encoder) Encode(content string, size int) ([]byte, error) {
	const op = "adapter.qrcode.Encoder.Encode"

	if content == "" {
		return nil, fmt.Errorf("%s: empty content", op)
	}

	qr, err := qrcode.New(content, e.level)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, entity.ErrQRCodeCapacityExceeded, err)
	}

	png, err := qr.PNG(size)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to encode png: %w", op, err)
	}

	return png, nil
}
