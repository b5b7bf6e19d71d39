package handlers

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateImageFile(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		size        int64
		wantErr     error
	}{
		{"jpeg ok", "image/jpeg", 1 << 20, nil},
		{"jpg ok", "image/jpg", 1 << 20, nil},
		{"png ok", "image/png", 10 << 20, nil},
		{"webp ok", "image/webp", 512, nil},
		{"gif rejected", "image/gif", 512, ErrUnsupportedType},
		{"pdf rejected", "application/pdf", 512, ErrUnsupportedType},
		{"empty type rejected", "", 512, ErrUnsupportedType},
		{"too large", "image/jpeg", 10<<20 + 1, ErrFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateImageFile(tt.contentType, tt.size)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestDownscaleImage_BoundsLongerSide(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4000, 2000))

	_, w, h, err := downscaleImage(img, 1024, outboundJPEGQuality)
	require.NoError(t, err)

	assert.Equal(t, 1024, w)
	assert.Equal(t, 512, h)
}

func TestDownscaleImage_PortraitOrientation(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1500, 3000))

	_, w, h, err := downscaleImage(img, 1024, outboundJPEGQuality)
	require.NoError(t, err)

	assert.Equal(t, 512, w)
	assert.Equal(t, 1024, h)
}

func TestDownscaleImage_NoUpscaling(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 640, 480))

	out, w, h, err := downscaleImage(img, 1024, outboundJPEGQuality)
	require.NoError(t, err)

	assert.Equal(t, 640, w)
	assert.Equal(t, 480, h)

	decoded, err := decodePreview(out)
	require.NoError(t, err)
	assert.Equal(t, 640, decoded.Bounds().Dx())
}

func TestDecodePreview_PNGRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))))

	img, err := decodePreview(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
}

func TestDecodePreview_Garbage(t *testing.T) {
	_, err := decodePreview([]byte("not an image"))
	assert.Error(t, err)
}

func TestStripDataURIPrefix(t *testing.T) {
	assert.Equal(t, "aGVsbG8=", stripDataURIPrefix("data:image/jpeg;base64,aGVsbG8="))
	assert.Equal(t, "aGVsbG8=", stripDataURIPrefix("aGVsbG8="))
	assert.Equal(t, "data:broken", stripDataURIPrefix("data:broken"))
}

func TestDataURI(t *testing.T) {
	uri := dataURI("image/jpeg", []byte("hello"))
	assert.Equal(t, "data:image/jpeg;base64,aGVsbG8=", uri)
	assert.Equal(t, "aGVsbG8=", stripDataURIPrefix(uri))
}
