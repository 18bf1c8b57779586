// Package wallet renders the demo wallet-pairing QR code.
package wallet

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// SessionURI is a fixed placeholder pairing string, not a live session.
const SessionURI = "wc:test-session@2?relay-protocol=irn&symKey=demo123456789"

// ImageSize is the PNG edge length in pixels.
const ImageSize = 256

// QRCode is the /api/wallet/qr/ payload.
type QRCode struct {
	URI string `json:"uri"`
	QR  string `json:"qr"`
}

// Generate renders SessionURI as a base64 PNG data URI.
func Generate() (*QRCode, error) {
	return Render(SessionURI)
}

// Render encodes uri as a QR code.
func Render(uri string) (*QRCode, error) {
	png, err := qrcode.Encode(uri, qrcode.Medium, ImageSize)
	if err != nil {
		return nil, fmt.Errorf("render qr code: %w", err)
	}
	return &QRCode{
		URI: uri,
		QR:  "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	}, nil
}
