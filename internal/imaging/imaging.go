// Package imaging validates and normalizes uploaded images before they are
// handed to the face detector.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/upashthiti/upashthiti/internal/constants"
)

// ErrInvalidImage is returned when the uploaded bytes are not a decodable image.
var ErrInvalidImage = errors.New("invalid image data")

// ErrImageTooSmall is returned when the image is below the minimum usable size.
var ErrImageTooSmall = errors.New("image too small")

// Prepare decodes the uploaded bytes, rejects anything unusable and returns
// JPEG bytes no larger than constants.MaxImageDimension on either side.
// Oversized captures are downscaled so that detector calls stay bounded in
// memory and latency.
func Prepare(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width < constants.MinImageDimension || height < constants.MinImageDimension {
		return nil, fmt.Errorf("%w: %dx%d, minimum %dx%d",
			ErrImageTooSmall, width, height, constants.MinImageDimension, constants.MinImageDimension)
	}

	if width <= constants.MaxImageDimension && height <= constants.MaxImageDimension {
		return data, nil
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = constants.MaxImageDimension
		newHeight = int(float64(height) * float64(constants.MaxImageDimension) / float64(width))
	} else {
		newHeight = constants.MaxImageDimension
		newWidth = int(float64(width) * float64(constants.MaxImageDimension) / float64(height))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("encoding resized image: %w", err)
	}
	return buf.Bytes(), nil
}

// DetectMIMEType detects the MIME type from image data by magic bytes.
func DetectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// GIF: 47 49 46 38
	if data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x38 {
		return "image/gif"
	}
	// WebP: 52 49 46 46 ... 57 45 42 50
	if len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
		return "image/webp"
	}
	return "application/octet-stream"
}
