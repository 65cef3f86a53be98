package render

import (
	"errors"
	"fmt"

	"neuritesim/internal/models"
)

// InvalidSegmentError reports a segment that cannot be rendered, such as one
// with a non-positive width or non-finite coordinates.
type InvalidSegmentError struct {
	Segment models.Segment
	Reason  string
}

func (e *InvalidSegmentError) Error() string {
	return fmt.Sprintf("invalid segment %v-%v (width %v): %s", e.Segment.A, e.Segment.B, e.Segment.Width, e.Reason)
}

// IsInvalidSegment reports whether err is or wraps an *InvalidSegmentError.
func IsInvalidSegment(err error) bool {
	var is *InvalidSegmentError
	return errors.As(err, &is)
}
