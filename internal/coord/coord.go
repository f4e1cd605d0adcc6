// Package coord formats catalog positions and dates into the string forms the
// TNS bulk report expects.
//
// Right ascension renders as HH:MM:SS.ss and declination as ±DD:MM:SS.ss.
// Declination carries "+" only when strictly positive; zero renders with "-".
// Downstream tooling relies on that, so it is kept as is.
package coord

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/soniakeys/unit"
)

// centi-units (hundredths of a second) per hour or per degree
const centiPerUnit = 3600 * 100

var (
	// ErrNotANumber is returned for cells that do not parse as a finite number.
	ErrNotANumber = errors.New("not a finite number")

	// ErrOutOfRange is returned for values outside their valid range.
	ErrOutOfRange = errors.New("out of range")
)

// FormatRA renders right ascension given in decimal degrees. Values outside
// [0, 360) wrap.
func FormatRA(deg float64) string {
	ra := unit.RAFromDeg(deg)
	cs := int64(math.Round(ra.Hour() * centiPerUnit))
	// 23:59:59.996 rounds up to 24h
	cs %= 24 * centiPerUnit

	h, m, s := split(cs)
	return fmt.Sprintf("%02d:%02d:%05.2f", h, m, s)
}

// FormatDec renders declination given in decimal degrees.
func FormatDec(deg float64) string {
	sign := "-"
	if deg > 0 {
		sign = "+"
	}

	a := unit.AngleFromDeg(math.Abs(deg))
	cs := int64(math.Round(a.Sec() * 100))

	d, m, s := split(cs)
	return fmt.Sprintf("%s%02d:%02d:%05.2f", sign, d, m, s)
}

// split breaks hundredths of an arc/time second into whole units, minutes and
// seconds. Rounding happens before the split so seconds never read 60.00.
func split(cs int64) (major, minutes int64, seconds float64) {
	major = cs / centiPerUnit
	rem := cs % centiPerUnit
	minutes = rem / 6000
	seconds = float64(rem%6000) / 100
	return major, minutes, seconds
}

// ParseDegrees parses an RA or Dec cell.
func ParseDegrees(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrNotANumber, s)
	}
	return v, nil
}

// ParseDec parses a declination cell and checks it lies in [-90, 90].
func ParseDec(s string) (float64, error) {
	v, err := ParseDegrees(s)
	if err != nil {
		return 0, err
	}
	if v < -90 || v > 90 {
		return 0, fmt.Errorf("%w: declination %v", ErrOutOfRange, v)
	}
	return v, nil
}

// =============================================================================
// DATES
// =============================================================================

// FormatDate renders a calendar date as YYYY-MM-DD.
func FormatDate(year, month, day int) string {
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}

// ParseDate reads year, month and day cells and returns the formatted date.
// Cells may hold integral floats ("2023.0"); fractional parts round half to
// even.
func ParseDate(year, month, day string) (string, error) {
	y, err := parseDatePart("year", year, 0, 9999)
	if err != nil {
		return "", err
	}
	m, err := parseDatePart("month", month, 1, 12)
	if err != nil {
		return "", err
	}
	d, err := parseDatePart("day", day, 1, 31)
	if err != nil {
		return "", err
	}
	return FormatDate(y, m, d), nil
}

func parseDatePart(name, s string, lo, hi int) (int, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s %w: %q", name, ErrNotANumber, s)
	}

	n := int(math.RoundToEven(v))
	if n < lo || n > hi {
		return 0, fmt.Errorf("%s %w: %d", name, ErrOutOfRange, n)
	}
	return n, nil
}
