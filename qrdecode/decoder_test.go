package qrdecode

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

func encodeQR(t *testing.T, text string) []byte {
	t.Helper()

	writer := qrcode.NewQRCodeWriter()
	matrix, err := writer.EncodeWithoutHint(text, gozxing.BarcodeFormat_QR_CODE, 256, 256)
	if err != nil {
		t.Fatalf("failed to encode test qr code: %v", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, matrix); err != nil {
		t.Fatalf("failed to render test qr code: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeRoundTrip(t *testing.T) {
	decoder := NewZxingDecoder()

	tests := []string{
		"http://example-test.com",
		"https://example-test.com/path?query=1",
		"plain text payload",
	}

	for _, text := range tests {
		data := encodeQR(t, text)
		got, err := decoder.Decode(data)
		if err != nil {
			t.Fatalf("Decode(%q image) failed: %v", text, err)
		}
		if got != text {
			t.Errorf("Decode = %q, want %q", got, text)
		}
	}
}

func TestDecodeBlankImage(t *testing.T) {
	decoder := NewZxingDecoder()

	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to render blank image: %v", err)
	}

	_, err := decoder.Decode(buf.Bytes())
	if !errors.Is(err, ErrNoCode) {
		t.Errorf("expected ErrNoCode for a blank image, got %v", err)
	}
}

func TestDecodeGarbageBytes(t *testing.T) {
	decoder := NewZxingDecoder()

	_, err := decoder.Decode([]byte("not an image at all"))
	if err == nil {
		t.Fatal("expected an error for non-image bytes")
	}
	if errors.Is(err, ErrNoCode) {
		t.Error("unreadable bytes are not the same failure as a missing code")
	}
}
