// Package units provides speed unit constants, conversions between metres
// per second and display units, and the timezone helpers used when
// bucketing violations by local hour.
package units

import (
	"slices"
	"strings"
)

// Speed units accepted in config, flags and query parameters. KPH is an
// alias of KMPH.
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

const mpsToMPH = 2.2369362920544

// ValidUnits lists every accepted unit name.
var ValidUnits = []string{MPS, MPH, KMPH, KPH}

func IsValid(unit string) bool { return slices.Contains(ValidUnits, unit) }

// GetValidUnitsString is ValidUnits joined for error and help text.
func GetValidUnitsString() string { return strings.Join(ValidUnits, ", ") }

// Label returns the axis and column label for unit, e.g. "km/h".
func Label(unit string) string {
	switch unit {
	case MPH:
		return "mph"
	case KMPH, KPH:
		return "km/h"
	default:
		return "m/s"
	}
}

// ConvertSpeed converts a speed from meters per second to the target units.
// Evidence records and tracks carry speeds in m/s.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedMPS * mpsToMPH
	case KMPH, KPH:
		return speedMPS * 3.6
	default:
		return speedMPS
	}
}

// ToMPS converts a speed expressed in units back to metres per second.
// Unknown units are treated as m/s.
func ToMPS(speed float64, fromUnits string) float64 {
	switch fromUnits {
	case MPH:
		return speed / mpsToMPH
	case KMPH, KPH:
		return speed / 3.6
	default:
		return speed
	}
}

// PixelsToMeters converts an image-plane distance to metres using the
// camera's pixels-per-metre calibration. A non-positive calibration yields 0.
func PixelsToMeters(px, pixelsPerMeter float64) float64 {
	if pixelsPerMeter <= 0 {
		return 0
	}
	return px / pixelsPerMeter
}
