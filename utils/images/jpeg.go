package images

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/jpeg"
)

var errNotJPEG = errors.New("not a jpeg")

// withDensity puts JFIF header declaring dpi resolution right after SOI
// unless image already has one. Encoder in standard library never writes it
// and some viewers size images without density as 96 dpi.
func withDensity(data []byte, dpi uint16) ([]byte, error) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return nil, errNotJPEG
	}
	if data[2] == 0xFF && data[3] == 0xE0 {
		return data, nil
	}

	out := make([]byte, 0, len(data)+18)
	out = append(out, data[:2]...)
	out = append(out, 0xFF, 0xE0)
	out = binary.BigEndian.AppendUint16(out, 16)
	out = append(out, 'J', 'F', 'I', 'F', 0, 1, 2)
	// units: dots per inch
	out = append(out, 1)
	out = binary.BigEndian.AppendUint16(out, dpi)
	out = binary.BigEndian.AppendUint16(out, dpi)
	// no thumbnail
	out = append(out, 0, 0)
	return append(out, data[2:]...), nil
}

// encodeJPEG encodes page image so that one pixel maps to one PDF point.
func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return withDensity(buf.Bytes(), 72)
}
