// Package media turns staff identifiers and uploaded photos into the image
// artifacts kept next to a staff profile.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/skip2/go-qrcode"
)

// Photo bounds and QR size used for every registration.
const (
	MaxPhotoSide = 800
	PhotoQuality = 85
	QRSize       = 256
)

// ErrUndecodable is returned when an upload is not a supported image.
var ErrUndecodable = errors.New("image could not be decoded")

// QRCode renders data as a PNG QR code.
func QRCode(data string) ([]byte, error) {
	if data == "" {
		return nil, errors.New("qr: empty payload")
	}
	png, err := qrcode.Encode(data, qrcode.Medium, QRSize)
	if err != nil {
		return nil, fmt.Errorf("qr: encode: %w", err)
	}
	return png, nil
}

// NormalizePhoto decodes a jpeg/png/gif upload, applies EXIF orientation,
// shrinks it to fit MaxPhotoSide and re-encodes it as JPEG.
func NormalizePhoto(raw []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	b := img.Bounds()
	if b.Dx() > MaxPhotoSide || b.Dy() > MaxPhotoSide {
		img = imaging.Fit(img, MaxPhotoSide, MaxPhotoSide, imaging.Lanczos)
	}
	return encodeJPEG(img)
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(PhotoQuality)); err != nil {
		return nil, fmt.Errorf("photo: encode: %w", err)
	}
	return buf.Bytes(), nil
}

