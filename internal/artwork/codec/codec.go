// Package codec abstracts image decode/resize/encode behind an interface so
// ArtworkService doesn't depend directly on a concrete imaging library.
package codec

import (
	"bytes"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// ImageSize is a square target dimension in pixels; the cache never stores an
// entry with no size.
type ImageSize int

// EncodedImage is an immutable re-encoded artwork blob.
type EncodedImage struct {
	MimeType string
	Bytes    []byte
}

// Len reports the byte size ArtworkCache accounts against maxCacheSize.
func (e EncodedImage) Len() int { return len(e.Bytes) }

// ImageCodec decodes raw image bytes, resizes to a square of Size pixels (preserving
// aspect ratio and cropping to fill, matching a typical cover-art thumbnail), and
// re-encodes to JPEG at the given quality.
type ImageCodec interface {
	Resize(raw []byte, size ImageSize, jpegQuality int) (EncodedImage, error)
}

// ImagingCodec is the default ImageCodec, backed by disintegration/imaging.
type ImagingCodec struct{}

func (ImagingCodec) Resize(raw []byte, size ImageSize, jpegQuality int) (EncodedImage, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return EncodedImage{}, err
	}

	resized := imaging.Fill(img, int(size), int(size), imaging.Center, imaging.Lanczos)

	quality := jpegQuality
	if quality < 1 {
		quality = 1
	} else if quality > 100 {
		quality = 100
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: quality}); err != nil {
		return EncodedImage{}, err
	}
	return EncodedImage{MimeType: "image/jpeg", Bytes: buf.Bytes()}, nil
}
