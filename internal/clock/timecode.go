package clock

import (
	"fmt"
	"math"
)

// Timecode formats a 1-based frame as HH:MM:SS:FF at rate r. FF counts frames
// within the current second using the nominal (rounded) rate.
func Timecode(frame int, r Rate) string {
	if frame < 1 {
		frame = 1
	}
	if r.Validate() != nil {
		r = Film
	}
	nominal := int(math.Round(r.Float()))
	if nominal < 1 {
		nominal = 1
	}
	elapsed := int64(frame - 1)
	// Whole seconds elapsed, from exact rational time.
	secs := elapsed * r.Den / r.Num
	return fmt.Sprintf("%02d:%02d:%02d:%02d",
		secs/3600, (secs%3600)/60, secs%60, int(elapsed)%nominal)
}
