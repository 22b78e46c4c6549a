package testutil

import (
	"fmt"
	"strings"
)

// signCells maps a 1-based sign to its (row, col) in the South Indian grid.
var signCells = map[int][2]int{
	12: {0, 0}, 1: {0, 1}, 2: {0, 2}, 3: {0, 3},
	11: {1, 0}, 4: {1, 3},
	10: {2, 0}, 5: {2, 3},
	9: {3, 0}, 8: {3, 1}, 7: {3, 2}, 6: {3, 3},
}

var planetCodes = []string{"Su", "Mo", "Ma", "Me", "Ju", "Ve", "Sa", "Ra", "Ke"}

// ChartSVG renders a minimal South Indian chart of the given width with an
// "Asc" marker in ascSign (0 for none) and each planet code in its sign.
func ChartSVG(width int, ascSign int, planets map[string]int) string {
	cell := width / 4
	perCell := make(map[int]int)

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d">`, width, width)

	label := func(text string, sign int) {
		pos, ok := signCells[sign]
		if !ok {
			return
		}
		n := perCell[sign]
		perCell[sign] = n + 1
		x := pos[1]*cell + cell/2
		y := pos[0]*cell + 15 + n*(cell/8)
		fmt.Fprintf(&b, `<text x="%d" y="%d" font-size="12">%s</text>`, x, y, text)
	}

	if ascSign > 0 {
		label("Asc", ascSign)
	}
	for _, code := range planetCodes {
		if sign, ok := planets[code]; ok {
			label(code, sign)
		}
	}

	b.WriteString(`</svg>`)
	return b.String()
}

// DefaultChartPlanets is the planet placement of DefaultChartSVG.
var DefaultChartPlanets = map[string]int{
	"Su": 8, "Mo": 2, "Ma": 11, "Me": 8, "Ju": 5,
	"Ve": 9, "Sa": 3, "Ra": 2, "Ke": 8,
}

// DefaultChartAscendant is the ascendant sign of DefaultChartSVG.
const DefaultChartAscendant = 4

// DefaultChartSVG is a 400 wide chart with Cancer rising.
var DefaultChartSVG = ChartSVG(400, DefaultChartAscendant, DefaultChartPlanets)

// SamplePlanetsOutput is an upstream planets "output" value: a list of
// single-key objects, with isRetro given both as bool and string.
const SamplePlanetsOutput = `[
	{"0": {"name": "Ascendant", "fullDegree": 100.5, "normDegree": 10.5, "isRetro": "false", "current_sign": 4, "house_number": 1}},
	{"1": {"name": "Sun", "fullDegree": 216.5, "normDegree": 6.5, "isRetro": "false", "current_sign": 8, "house_number": 5}},
	{"2": {"name": "Moon", "fullDegree": 45.2, "normDegree": 15.2, "isRetro": false, "current_sign": 2, "house_number": 11}},
	{"3": {"name": "Saturn", "fullDegree": 80.1, "normDegree": 20.1, "isRetro": "true", "current_sign": 3, "house_number": 12}},
	{"4": {"name": "Rahu", "fullDegree": 40.0, "normDegree": 10.0, "isRetro": true, "current_sign": 2, "house_number": 11}}
]`
