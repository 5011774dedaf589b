// Package units converts metric sensor values to the configured unit system and labels them.
package units

import (
	"strings"

	"github.com/pkg/errors"
)

// System is a unit system readings are reported in.
type System int

const (
	// Metric reports C, Pa, m, m/s², rad/s and kg.
	Metric System = iota
	// Imperial reports F, inHg, ft, ft/s², deg/s and kg.
	Imperial
)

func (s System) String() string {
	if s == Imperial {
		return "imperial"
	}
	return "metric"
}

// ParseSystem parses "metric" or "imperial", case-insensitively. An empty string is metric.
func ParseSystem(s string) (System, error) {
	switch strings.ToLower(s) {
	case "", "metric":
		return Metric, nil
	case "imperial":
		return Imperial, nil
	default:
		return Metric, errors.Errorf("units must be either 'metric' or 'imperial', got %q", s)
	}
}

// Quantity is a physical quantity a sensor reports.
type Quantity int

// The quantities known to the converter.
const (
	Temperature Quantity = iota
	Pressure
	Altitude
	Acceleration
	AngularRate
	Weight
)

// Conversion factors from metric to imperial.
const (
	PaToInHg         = 0.0002953
	MetersToFeet     = 3.28084
	RadiansToDegrees = 57.2958
)

// RawCountsPerKilogram is the load cell calibration: 8200 raw ADC counts are one kilogram.
const RawCountsPerKilogram = 8200.0

type conversion struct {
	metricLabel   string
	imperialLabel string
	scale         float64
	offset        float64
}

var conversions = map[Quantity]conversion{
	Temperature:  {"C", "F", 9.0 / 5.0, 32},
	Pressure:     {"Pa", "inHg", PaToInHg, 0},
	Altitude:     {"m", "ft", MetersToFeet, 0},
	Acceleration: {"m/s²", "ft/s²", MetersToFeet, 0},
	AngularRate:  {"rad/s", "deg/s", RadiansToDegrees, 0},
	Weight:       {"kg", "kg", 1, 0},
}

// Convert converts a metric value of q to system s and returns it with its unit label.
func Convert(q Quantity, metric float64, s System) (float64, string) {
	c := conversions[q]
	if s != Imperial {
		return metric, c.metricLabel
	}
	return metric*c.scale + c.offset, c.imperialLabel
}

// ConvertInverse converts a value of q in system s back to metric.
func ConvertInverse(q Quantity, value float64, s System) float64 {
	c := conversions[q]
	if s != Imperial {
		return value
	}
	return (value - c.offset) / c.scale
}

// Label returns the unit label of q in system s.
func Label(q Quantity, s System) string {
	_, label := Convert(q, 0, s)
	return label
}

// Key formats a reading key as "<name> - <unit>".
func Key(name string, q Quantity, s System) string {
	return name + " - " + Label(q, s)
}

// RawToKilograms converts a raw load cell count to kilograms.
func RawToKilograms(raw float64) float64 {
	return raw / RawCountsPerKilogram
}
