package otp

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// DefaultQRSize is the PNG edge length used when size is not positive.
const DefaultQRSize = 256

// QRCodePNG renders uri as a PNG QR code with medium error correction.
func QRCodePNG(uri string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultQRSize
	}
	png, err := qrcode.Encode(uri, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("render qr code: %w", err)
	}
	return png, nil
}

// QRCodeDataURI renders uri as a data:image/png;base64 URI ready for an
// <img> tag.
func QRCodeDataURI(uri string, size int) (string, error) {
	png, err := QRCodePNG(uri, size)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
