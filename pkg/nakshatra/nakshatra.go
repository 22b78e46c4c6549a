// Package nakshatra maps an ecliptic longitude to its lunar mansion.
package nakshatra

import (
	"math"
)

const (
	// Count is the number of nakshatras.
	Count = 27

	// Span is the width of one nakshatra in degrees (13°20').
	Span = 360.0 / Count

	// PadaSpan is the width of one quarter (3°20').
	PadaSpan = Span / 4
)

// Names in zodiacal order starting at 0° Aries.
var Names = [Count]string{
	"Ashwini", "Bharani", "Krittika", "Rohini", "Mrigashira", "Ardra",
	"Punarvasu", "Pushya", "Ashlesha", "Magha", "Purva Phalguni",
	"Uttara Phalguni", "Hasta", "Chitra", "Swati", "Vishakha", "Anuradha",
	"Jyeshtha", "Mula", "Purva Ashadha", "Uttara Ashadha", "Shravana",
	"Dhanishta", "Shatabhisha", "Purva Bhadrapada", "Uttara Bhadrapada",
	"Revati",
}

// lordCycle repeats three times across the 27 mansions.
var lordCycle = [9]string{
	"Ketu", "Venus", "Sun", "Moon", "Mars", "Rahu", "Jupiter", "Saturn", "Mercury",
}

// Result describes the nakshatra of a longitude.
type Result struct {
	Name  string `json:"nakshatra"`
	Pada  int    `json:"pada"`
	Lord  string `json:"lord"`
	Index int    `json:"nakshatra_index"`
}

// Lord returns the ruling planet of the nakshatra at index.
func Lord(index int) string {
	return lordCycle[((index%9)+9)%9]
}

// FromLongitude returns the nakshatra, pada and lord for deg. Any real
// input is accepted: values wrap into [0, 360) and NaN or infinite values
// are treated as 0.
func FromLongitude(deg float64) Result {
	d := Normalize(deg)

	index := int(d / Span)
	if index > Count-1 {
		index = Count - 1
	}

	pada := int(math.Mod(d, Span)/PadaSpan) + 1
	pada = min(max(pada, 1), 4)

	return Result{
		Name:  Names[index],
		Pada:  pada,
		Lord:  Lord(index),
		Index: index,
	}
}

// Normalize wraps deg into [0, 360).
func Normalize(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	// -tiny + 360 rounds to 360
	if d >= 360 {
		d = 0
	}
	return d
}
