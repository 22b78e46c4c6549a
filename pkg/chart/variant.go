package chart

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownVariant is returned for a division code outside the variant table.
var ErrUnknownVariant = errors.New("unknown division")

// Variant is one divisional chart served by the upstream API.
type Variant struct {
	// Code is the lowercase division code, e.g. "d9".
	Code string `json:"code"`

	// Endpoint is the upstream endpoint name that renders this chart.
	Endpoint string `json:"endpoint"`

	// Name is the display name.
	Name string `json:"name"`
}

// South Indian style is the upstream default for every endpoint below.
var variants = []Variant{
	{"d1", "horoscope-chart-svg-code", "Rasi Chart (Birth Chart)"},
	{"d2", "d2-chart-svg-code", "Hora Chart"},
	{"d3", "d3-chart-svg-code", "Drekkana Chart"},
	{"d4", "d4-chart-svg-code", "Chaturthamsa Chart"},
	{"d5", "d5-chart-svg-code", "Panchamsa Chart"},
	{"d6", "d6-chart-svg-code", "Shasthamsa Chart"},
	{"d7", "d7-chart-svg-code", "Saptamsa Chart"},
	{"d8", "d8-chart-svg-code", "Ashtamsa Chart"},
	{"d9", "navamsa-chart-svg-code", "Navamsa Chart"},
	{"d10", "d10-chart-svg-code", "Dasamsa Chart"},
	{"d11", "d11-chart-svg-code", "Rudramsa Chart"},
	{"d12", "d12-chart-svg-code", "Dwadasamsa Chart"},
	{"d16", "d16-chart-svg-code", "Shodasamsa Chart"},
	{"d20", "d20-chart-svg-code", "Vimsamsa Chart"},
	{"d24", "d24-chart-svg-code", "Siddhamsa Chart"},
	{"d27", "d27-chart-svg-code", "Nakshatramsa Chart"},
	{"d30", "d30-chart-svg-code", "Trimsamsa Chart"},
	{"d40", "d40-chart-svg-code", "Khavedamsa Chart"},
	{"d45", "d45-chart-svg-code", "Akshavedamsa Chart"},
	{"d60", "d60-chart-svg-code", "Shashtyamsa Chart"},
}

var variantIndex = func() map[string]Variant {
	m := make(map[string]Variant, len(variants))
	for _, v := range variants {
		m[v.Code] = v
	}
	return m
}()

// Variants returns the variant table in its canonical order.
func Variants() []Variant {
	out := make([]Variant, len(variants))
	copy(out, variants)
	return out
}

// Codes returns every division code in canonical order.
func Codes() []string {
	out := make([]string, len(variants))
	for i, v := range variants {
		out[i] = v.Code
	}
	return out
}

// LookupVariant resolves a division code case-insensitively.
func LookupVariant(code string) (Variant, error) {
	normalized := strings.ToLower(strings.TrimSpace(code))
	v, ok := variantIndex[normalized]
	if !ok {
		return Variant{}, fmt.Errorf("%w: %s", ErrUnknownVariant, normalized)
	}
	return v, nil
}

// DisplayName returns the display name for a code, or "Chart <CODE>" when
// the code has none.
func DisplayName(code string) string {
	if v, err := LookupVariant(code); err == nil && v.Name != "" {
		return v.Name
	}
	return "Chart " + strings.ToUpper(code)
}
