package images

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrNotImage is returned when data is not recognizable raster or SVG.
var ErrNotImage = errors.New("not an image")

// Format names understood by the PDF writer.
const (
	FormatJPEG = "JPG"
	FormatPNG  = "PNG"
)

// Normalized is image ready to be embedded into PDF: either baseline JPEG as
// it came or 8 bit PNG.
type Normalized struct {
	Data   []byte
	Format string
	Width  int
	Height int
}

// Normalize makes sure image can be embedded. JPEG is passed through, every
// other format (PNG included, it may be interlaced or 16 bit) is decoded and
// re-encoded.
func Normalize(data []byte) (*Normalized, error) {
	if IsSVG(data) {
		img, err := RasterizeSVGToImage(data, 0, 0)
		if err != nil {
			return nil, fmt.Errorf("unable to rasterize svg: %w", err)
		}
		return encodePNG(img)
	}

	kind, err := filetype.Match(data)
	if err != nil || !filetype.IsImage(data) {
		return nil, ErrNotImage
	}

	if kind.MIME.Subtype == "jpeg" {
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("unable to decode jpeg: %w", err)
		}
		return &Normalized{Data: data, Format: FormatJPEG, Width: cfg.Width, Height: cfg.Height}, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("unable to decode %s: %w", kind.MIME.Value, err)
	}
	return encodePNG(img)
}

// opaqueGray reports whether img could be stored as single channel without
// losing anything.
func opaqueGray(img image.Image) bool {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return true
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			if a != 0xffff || r != g || g != bl {
				return false
			}
		}
	}
	return true
}

func encodePNG(img image.Image) (*Normalized, error) {
	var out image.Image
	if opaqueGray(img) {
		gray := image.NewGray(img.Bounds())
		draw.Draw(gray, gray.Bounds(), img, img.Bounds().Min, draw.Src)
		out = gray
	} else {
		out = imaging.Clone(img)
	}
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, out); err != nil {
		return nil, fmt.Errorf("unable to encode png: %w", err)
	}
	b := out.Bounds()
	return &Normalized{Data: buf.Bytes(), Format: FormatPNG, Width: b.Dx(), Height: b.Dy()}, nil
}

// Blurred produces page sized, heavily blurred JPEG from the source image.
// Used as background of the closing page.
func Blurred(data []byte, width, height int, sigma float64, quality int) ([]byte, error) {
	var (
		img image.Image
		err error
	)
	if IsSVG(data) {
		img, err = RasterizeSVGToImage(data, width, height)
	} else {
		img, err = imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	}
	if err != nil {
		return nil, fmt.Errorf("unable to decode image: %w", err)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("bad target size %dx%d", width, height)
	}
	res := imaging.Resize(img, width, height, imaging.Lanczos)
	if sigma > 0 {
		res = imaging.Blur(res, sigma)
	}
	return encodeJPEG(res, quality)
}
