// Package common keeps enums shared by configuration, layout and job
// tracking so that none of those packages has to import the others.
package common

// Physical page size of the produced document.
// ENUM(letter, a4, legal)
type PageSize int

// Dimensions returns page width and height in points.
func (p PageSize) Dimensions() (float64, float64) {
	switch p {
	case PageSizeA4:
		return 595.28, 841.89
	case PageSizeLegal:
		return 612, 1008
	default:
		return 612, 792
	}
}

// GofpdfName is the size name understood by the PDF writer.
func (p PageSize) GofpdfName() string {
	switch p {
	case PageSizeA4:
		return "A4"
	case PageSizeLegal:
		return "Legal"
	default:
		return "Letter"
	}
}

// Lifecycle state of conversion job.
// ENUM(pending, processing, completed, error)
type JobStatus int

// Finished reports whether no further transitions are possible.
func (s JobStatus) Finished() bool {
	return s == JobStatusCompleted || s == JobStatusError
}
