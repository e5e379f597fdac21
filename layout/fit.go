// Package layout turns prepared content into a linear story of flow items
// laid onto a fixed set of page templates.
package layout

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidImageDimensions is returned for images which could not be sized.
var ErrInvalidImageDimensions = errors.New("invalid image dimensions")

// Fit returns display size of an image with natural size natW x natH placed
// into maxW x maxH box. Images which fit are returned unchanged, larger ones
// are scaled uniformly so aspect ratio is kept.
func Fit(natW, natH, maxW, maxH float64) (float64, float64, error) {
	if !(natW > 0 && natH > 0) || math.IsInf(natW, 0) || math.IsInf(natH, 0) {
		return 0, 0, fmt.Errorf("%w: natural size %gx%g", ErrInvalidImageDimensions, natW, natH)
	}
	if !(maxW > 0 && maxH > 0) {
		return 0, 0, fmt.Errorf("%w: no room in %gx%g box", ErrInvalidImageDimensions, maxW, maxH)
	}
	if natW <= maxW && natH <= maxH {
		return natW, natH, nil
	}
	scale := math.Min(maxW/natW, maxH/natH)
	w, h := natW*scale, natH*scale
	// rounding must not push binding side over the bound
	return math.Min(w, maxW), math.Min(h, maxH), nil
}
