package label

import (
	"bytes"
	"context"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var ErrUnsupportedImage = errors.New("label: unsupported image format")

// Result of text and barcode recognition. Barcodes keep reader order.
type Result struct {
	Text     string   `json:"text"`
	Barcodes []string `json:"barcodes"`
}

type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (*Result, error)
}

// Format returns "Text: {text}\nBarcodes: {a, b}".
func Format(res *Result) string {
	return "Text: " + res.Text + "\nBarcodes: " + strings.Join(res.Barcodes, ", ")
}

// ImageFormat returns codec name, like "jpeg" or "webp".
func ImageFormat(b []byte) (string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return "", ErrUnsupportedImage
	}
	return format, nil
}

type Reader struct {
	recognizer Recognizer
}

func NewReader(recognizer Recognizer) *Reader {
	return &Reader{recognizer: recognizer}
}

// ReadLabel recognizes text and barcodes on the image and returns them in
// the printable form of Format.
func (r *Reader) ReadLabel(ctx context.Context, image []byte) (string, error) {
	res, err := r.Read(ctx, image)
	if err != nil {
		return "", err
	}
	return Format(res), nil
}

func (r *Reader) Read(ctx context.Context, image []byte) (*Result, error) {
	if _, err := ImageFormat(image); err != nil {
		return nil, err
	}
	return r.recognizer.Recognize(ctx, image)
}
