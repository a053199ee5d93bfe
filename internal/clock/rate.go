package clock

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidRate is returned for a frame rate that is not a positive rational.
var ErrInvalidRate = errors.New("frame rate must be positive")

// Rate is a frame rate expressed as the rational Num/Den frames per second.
type Rate struct {
	Num int64 `json:"num"`
	Den int64 `json:"den"`
}

// Frame rate presets.
var (
	Film = Rate{Num: 24, Den: 1}
	PAL  = Rate{Num: 25, Den: 1}
	NTSC = Rate{Num: 30000, Den: 1001}
	Web  = Rate{Num: 30, Den: 1}
	High = Rate{Num: 60, Den: 1}
)

// maxRate and maxDen bound Num/Den so the accumulator cannot overflow on long
// ticks.
const (
	maxRate = 1000
	maxDen  = 1_000_000
)

// FPS returns an integer frame rate as a Rate.
func FPS(n int64) Rate {
	return Rate{Num: n, Den: 1}
}

// Validate reports whether r is a usable frame rate.
func (r Rate) Validate() error {
	if r.Num <= 0 || r.Den <= 0 {
		return fmt.Errorf("%d/%d: %w", r.Num, r.Den, ErrInvalidRate)
	}
	if r.Den > maxDen {
		return fmt.Errorf("%d/%d denominator exceeds %d: %w", r.Num, r.Den, maxDen, ErrInvalidRate)
	}
	if r.Num > maxRate*r.Den {
		return fmt.Errorf("%d/%d exceeds %d fps: %w", r.Num, r.Den, maxRate, ErrInvalidRate)
	}
	return nil
}

// Float returns the rate in frames per second.
func (r Rate) Float() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

func (r Rate) String() string {
	if r.Den == 1 {
		return strconv.FormatInt(r.Num, 10)
	}
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// ParseRate parses "24", "29.97", "30000/1001" or a preset name such as
// "film", "pal", "ntsc", "web" and "high". The decimal 29.97 and 59.94 map to
// their exact NTSC rationals.
func ParseRate(s string) (Rate, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "film":
		return Film, nil
	case "pal":
		return PAL, nil
	case "ntsc", "29.97":
		return NTSC, nil
	case "59.94":
		return Rate{Num: 60000, Den: 1001}, nil
	case "web":
		return Web, nil
	case "high":
		return High, nil
	}

	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err := strconv.ParseInt(num, 10, 64)
		if err != nil {
			return Rate{}, fmt.Errorf("parse rate %q: %w", s, err)
		}
		d, err := strconv.ParseInt(den, 10, 64)
		if err != nil {
			return Rate{}, fmt.Errorf("parse rate %q: %w", s, err)
		}
		r := Rate{Num: n, Den: d}
		return r, r.Validate()
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Rate{}, fmt.Errorf("parse rate %q: %w", s, err)
	}
	return RateFromFloat(f)
}

// RateFromFloat converts a decimal fps to a Rate with millisecond-frame
// precision.
func RateFromFloat(f float64) (Rate, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return Rate{}, fmt.Errorf("%v: %w", f, ErrInvalidRate)
	}
	if f == math.Trunc(f) {
		r := FPS(int64(f))
		return r, r.Validate()
	}
	r := reduce(Rate{Num: int64(math.Round(f * 1000)), Den: 1000})
	return r, r.Validate()
}

func reduce(r Rate) Rate {
	a, b := r.Num, r.Den
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return r
	}
	return Rate{Num: r.Num / a, Den: r.Den / a}
}
