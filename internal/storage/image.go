package storage

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// Variant names one generated rendition size.
type Variant string

const (
	VariantThumbnail Variant = "thumbnail"
	VariantMedium    Variant = "medium"
	VariantLarge     Variant = "large"
)

// Maximum width per variant, in pixels.
var variantWidths = map[Variant]int{
	VariantThumbnail: 300,
	VariantMedium:    800,
	VariantLarge:     1920,
}

var variantSuffixes = map[Variant]string{
	VariantThumbnail: "_thumb",
	VariantMedium:    "_medium",
	VariantLarge:     "_large",
}

const (
	jpegQuality = 85
	webpQuality = 80
)

// Rendition is one encoded output of the image pipeline.
type Rendition struct {
	Variant     Variant
	Format      string // "jpeg" or "webp"
	Key         string
	ContentType string
	Data        []byte
}

// DecodeDataURI decodes a base64 data URI (data:image/...;base64,...)
// into an image. A bare base64 payload without the prefix is also
// accepted.
func DecodeDataURI(dataURI string) (image.Image, error) {
	payload := dataURI
	if strings.HasPrefix(dataURI, "data:") {
		idx := strings.Index(dataURI, ",")
		if idx < 0 {
			return nil, fmt.Errorf("malformed data URI")
		}
		payload = dataURI[idx+1:]
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 image data: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Resize scales an image down to maxWidth, preserving aspect ratio
// with Lanczos resampling. Images at or under maxWidth pass through
// untouched.
func Resize(img image.Image, maxWidth int) image.Image {
	if img.Bounds().Dx() <= maxWidth {
		return img
	}
	return imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
}

// EncodeJPEG encodes at quality 85.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeWebP encodes at quality 80.
func EncodeWebP(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: webpQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode webp: %w", err)
	}
	return buf.Bytes(), nil
}

// ObjectKey builds the storage key for one rendition:
// images/{userID}/{imageID}{suffix}.{ext}.
func ObjectKey(userID, imageID string, variant Variant, format string) string {
	ext := "jpg"
	if format == "webp" {
		ext = "webp"
	}
	return fmt.Sprintf("images/%s/%s%s.%s", userID, imageID, variantSuffixes[variant], ext)
}

// NewImageID returns a fresh identifier for an uploaded image.
func NewImageID() string {
	return uuid.NewString()
}

// ProcessAllVariants resizes a source image into all three variants
// and encodes each as JPEG and WebP, yielding six renditions.
func ProcessAllVariants(img image.Image, userID, imageID string) ([]Rendition, error) {
	renditions := make([]Rendition, 0, 6)

	for _, variant := range []Variant{VariantThumbnail, VariantMedium, VariantLarge} {
		resized := Resize(img, variantWidths[variant])

		jpegData, err := EncodeJPEG(resized)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", variant, err)
		}
		renditions = append(renditions, Rendition{
			Variant:     variant,
			Format:      "jpeg",
			Key:         ObjectKey(userID, imageID, variant, "jpeg"),
			ContentType: "image/jpeg",
			Data:        jpegData,
		})

		webpData, err := EncodeWebP(resized)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", variant, err)
		}
		renditions = append(renditions, Rendition{
			Variant:     variant,
			Format:      "webp",
			Key:         ObjectKey(userID, imageID, variant, "webp"),
			ContentType: "image/webp",
			Data:        webpData,
		})
	}

	return renditions, nil
}
