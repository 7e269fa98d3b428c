// Package qrdecode extracts the embedded text from a QR image. The rest of
// the service only sees the Decoder interface; the zxing port behind it is
// swappable.
package qrdecode

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// ErrNoCode is returned when the image is readable but contains no QR code.
var ErrNoCode = errors.New("no qr code found in image")

// Decoder turns image bytes into the embedded text, or reports that no
// code was found.
type Decoder interface {
	Decode(data []byte) (string, error)
}

// ZxingDecoder decodes QR codes with the gozxing port of the zxing library.
type ZxingDecoder struct {
	reader gozxing.Reader
}

// NewZxingDecoder creates a new QR decoder instance
func NewZxingDecoder() *ZxingDecoder {
	return &ZxingDecoder{reader: qrcode.NewQRCodeReader()}
}

// Decode reads the first QR code embedded in a PNG or JPEG image.
func (d *ZxingDecoder) Decode(data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("failed to binarize image: %w", err)
	}

	result, err := d.reader.Decode(bmp, nil)
	if err != nil {
		// zxing reports "not found" for images without a locatable code.
		return "", ErrNoCode
	}

	return result.GetText(), nil
}
