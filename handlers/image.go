package handlers

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	maxUploadSizeBytes  = 10 << 20
	maxOutboundDim      = 1024
	outboundJPEGQuality = 92
)

// Rejection reasons surfaced to the client so it can show the right
// message inline.
var (
	ErrUnsupportedType = errors.New("unsupported-type")
	ErrFileTooLarge    = errors.New("too-large")
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
}

func validateImageFile(contentType string, size int64) error {
	if !allowedImageTypes[strings.ToLower(strings.TrimSpace(contentType))] {
		return ErrUnsupportedType
	}
	if size > maxUploadSizeBytes {
		return ErrFileTooLarge
	}
	return nil
}

// decodePreview turns the uploaded bytes into an in-memory image. WebP
// support comes from the registered x/image decoder.
func decodePreview(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// downscaleImage bounds the longer side to maxDim, scaling both dimensions
// by the same factor, and re-encodes as JPEG at the given quality. Images
// already within bounds are only re-encoded.
func downscaleImage(img image.Image, maxDim, quality int) ([]byte, int, int, error) {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	longest := w
	if h > longest {
		longest = h
	}

	if longest > maxDim {
		scale := float64(maxDim) / float64(longest)
		w = int(float64(bounds.Dx())*scale + 0.5)
		h = int(float64(bounds.Dy())*scale + 0.5)

		scaled := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, bounds, draw.Over, nil)
		img = scaled
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to encode image: %w", err)
	}

	return out.Bytes(), w, h, nil
}

// stripDataURIPrefix returns the raw base64 payload of a data URI, or the
// input unchanged when no prefix is present.
func stripDataURIPrefix(s string) string {
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	if i := strings.IndexByte(s, ','); i >= 0 {
		return s[i+1:]
	}
	return s
}

func dataURI(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
