// Package extract recovers ascendant and planet signs from a South Indian
// chart SVG by mapping each text label's coordinates onto the fixed 4x4
// sign grid.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Abhiiiiiinav/Vedic-Sage/pkg/chart"
)

// DefaultChartWidth is assumed when the svg tag declares no size.
const DefaultChartWidth = 400.0

// Grid maps (row, col) to a 1-based sign. 0 marks the four center cells.
var Grid = [4][4]int{
	{12, 1, 2, 3},
	{11, 0, 0, 4},
	{10, 0, 0, 5},
	{9, 8, 7, 6},
}

// PlanetCodes are the recognised planet labels in canonical order.
var PlanetCodes = []string{"Su", "Mo", "Ma", "Me", "Ju", "Ve", "Sa", "Ra", "Ke"}

var ascendantMarkers = map[string]bool{"Asc": true, "As": true, "Ascendant": true, "ASC": true}

var planetSet = func() map[string]bool {
	m := make(map[string]bool, len(PlanetCodes))
	for _, code := range PlanetCodes {
		m[code] = true
	}
	return m
}()

var (
	svgTagRe   = regexp.MustCompile(`(?is)<svg\b[^>]*>`)
	viewBoxRe  = regexp.MustCompile(`(?i)\sviewBox\s*=\s*["']\s*[-\d.]+[\s,]+[-\d.]+[\s,]+([\d.]+)`)
	widthRe    = regexp.MustCompile(`(?i)\swidth\s*=\s*["']?\s*([\d.]+)`)
	textRe     = regexp.MustCompile(`(?is)<text\b([^>]*)>([^<]+)</text>`)
	xAttrRe    = regexp.MustCompile(`(?i)(?:^|\s)x\s*=\s*["']([^"']*)["']`)
	yAttrRe    = regexp.MustCompile(`(?i)(?:^|\s)y\s*=\s*["']([^"']*)["']`)
	labelTrash = strings.NewReplacer("(", "", ")", "", " ", "", "\t", "", "\n", "", "\r", "")
)

// Positions is what a chart diagram says about sign placements.
type Positions struct {
	// AscendantSign is 1..12, or 0 when no marker was found.
	AscendantSign int `json:"ascendant_sign"`

	// PlanetSigns maps planet code to sign.
	PlanetSigns map[string]int `json:"planet_signs"`

	// PlanetsByHouse maps house 1..12 to the planet codes in it, in
	// canonical order. Empty when the input is not an SVG.
	PlanetsByHouse map[int][]string `json:"planets_in_houses"`
}

// AscendantName returns the ascendant's sign name or "Unknown".
func (p Positions) AscendantName() string {
	return chart.SignName(p.AscendantSign)
}

// ExtractPositions parses svg. It never fails: unparseable labels are
// skipped and a non-SVG input yields empty positions.
func ExtractPositions(svg string) Positions {
	if !strings.Contains(svg, "<svg") {
		return Positions{
			PlanetSigns:    map[string]int{},
			PlanetsByHouse: map[int][]string{},
		}
	}

	cell := ChartWidth(svg) / 4

	asc := 0
	signs := make(map[string]int)

	for _, m := range textRe.FindAllStringSubmatch(svg, -1) {
		x, okX := attrFloat(xAttrRe, m[1])
		y, okY := attrFloat(yAttrRe, m[1])
		if !okX || !okY {
			continue
		}

		sign := Grid[clampCell(y/cell)][clampCell(x/cell)]
		if sign == 0 {
			continue
		}

		label := labelTrash.Replace(m[2])
		switch {
		case ascendantMarkers[label]:
			// first marker wins; later ones are usually legend text
			if asc == 0 {
				asc = sign
			}
		case planetSet[label]:
			signs[label] = sign
		}
	}

	return Positions{
		AscendantSign:  asc,
		PlanetSigns:    signs,
		PlanetsByHouse: houses(asc, signs),
	}
}

// ChartWidth reads the chart width from the svg tag: viewBox width first,
// then the width attribute, else DefaultChartWidth.
func ChartWidth(svg string) float64 {
	tag := svgTagRe.FindString(svg)
	if tag == "" {
		return DefaultChartWidth
	}
	for _, re := range []*regexp.Regexp{viewBoxRe, widthRe} {
		if m := re.FindStringSubmatch(tag); m != nil {
			if w, err := strconv.ParseFloat(m[1], 64); err == nil && w > 0 {
				return w
			}
		}
	}
	return DefaultChartWidth
}

// HouseOf returns the house of a planet sign relative to the ascendant.
func HouseOf(sign, ascendant int) int {
	return (sign-ascendant+12)%12 + 1
}

func houses(asc int, signs map[string]int) map[int][]string {
	out := make(map[int][]string, 12)
	for h := 1; h <= 12; h++ {
		out[h] = []string{}
	}
	if asc == 0 {
		return out
	}
	for _, code := range PlanetCodes {
		if sign, ok := signs[code]; ok {
			h := HouseOf(sign, asc)
			out[h] = append(out[h], code)
		}
	}
	return out
}

func attrFloat(re *regexp.Regexp, attrs string) (float64, bool) {
	m := re.FindStringSubmatch(attrs)
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(m[1]), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func clampCell(v float64) int {
	switch {
	case v != v || v < 0:
		return 0
	case v >= 3:
		return 3
	default:
		return int(v)
	}
}
