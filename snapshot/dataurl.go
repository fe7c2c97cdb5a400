// Package snapshot converts captured frames and uploaded files into base64 data URLs,
// the inline image representation the EcoVision backend accepts and embeds in reports.
package snapshot

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
)

const (
	// MIMEJPEG is the MIME type used for camera captures
	MIMEJPEG = "image/jpeg"

	// DefaultJPEGQuality matches the browser default for canvas JPEG export
	DefaultJPEGQuality = 92
)

// ErrInvalidDataURL is returned when a string is not a base64 data URL
var ErrInvalidDataURL = errors.New("invalid data URL")

// DataURL is a base64-encoded inline image: data:<mime>;base64,<payload>
type DataURL string

// Encode builds a data URL from raw bytes
func Encode(mimeType string, data []byte) DataURL {
	return DataURL("data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data))
}

// String returns the data URL as a plain string
func (u DataURL) String() string {
	return string(u)
}

// IsZero reports whether the data URL is empty
func (u DataURL) IsZero() bool {
	return u == ""
}

// Decode splits the data URL into its MIME type and decoded payload
func (u DataURL) Decode() (string, []byte, error) {
	s := string(u)
	if !strings.HasPrefix(s, "data:") {
		return "", nil, ErrInvalidDataURL
	}

	header, payload, ok := strings.Cut(s[len("data:"):], ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing payload separator", ErrInvalidDataURL)
	}

	mimeType, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return "", nil, fmt.Errorf("%w: payload is not base64", ErrInvalidDataURL)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}

	return mimeType, data, nil
}

// MIMEType returns the declared MIME type, or "" if the data URL is malformed
func (u DataURL) MIMEType() string {
	s := strings.TrimPrefix(string(u), "data:")
	if len(s) == len(u) {
		return ""
	}
	header, _, ok := strings.Cut(s, ",")
	if !ok {
		return ""
	}
	mimeType, _ := strings.CutSuffix(header, ";base64")
	return mimeType
}

// Size returns the decoded payload size in bytes without decoding it
func (u DataURL) Size() int64 {
	_, payload, ok := strings.Cut(string(u), ",")
	if !ok {
		return 0
	}
	return int64(base64.StdEncoding.DecodedLen(len(payload)) - strings.Count(payload, "="))
}

// FromImage copies a frame into an offscreen raster sized to its native bounds and
// encodes it as a JPEG data URL
func FromImage(img image.Image, quality int) (DataURL, error) {
	if img == nil {
		return "", fmt.Errorf("no frame to encode")
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return "", fmt.Errorf("frame has no pixels")
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	raster := imaging.Clone(img)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, raster, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return "", fmt.Errorf("failed to encode frame: %w", err)
	}

	return Encode(MIMEJPEG, buf.Bytes()), nil
}

// DecodeImage decodes the data URL payload into an image
func DecodeImage(u DataURL) (image.Image, error) {
	mimeType, data, err := u.Decode()
	if err != nil {
		return nil, err
	}
	return decodeBytes(mimeType, data)
}

// Thumbnail downscales the image so neither side exceeds maxDim and re-encodes it as JPEG.
// Images already within bounds are returned unchanged.
func Thumbnail(u DataURL, maxDim, quality int) (DataURL, error) {
	if maxDim <= 0 {
		return u, nil
	}

	img, err := DecodeImage(u)
	if err != nil {
		return "", err
	}

	b := img.Bounds()
	if b.Dx() <= maxDim && b.Dy() <= maxDim {
		return u, nil
	}

	return FromImage(imaging.Fit(img, maxDim, maxDim, imaging.Lanczos), quality)
}

// Dimensions returns the pixel size of the encoded image without decoding all pixels
func Dimensions(u DataURL) (width, height int, err error) {
	mimeType, data, err := u.Decode()
	if err != nil {
		return 0, 0, err
	}
	if mimeType == MIMEWebP {
		img, err := decodeBytes(mimeType, data)
		if err != nil {
			return 0, 0, err
		}
		return img.Bounds().Dx(), img.Bounds().Dy(), nil
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read image header: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
