package kundali

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Abhiiiiiinav/Vedic-Sage/pkg/chart"
)

// ErrUnexpectedPositions is returned when a planets output is not a list of
// objects.
var ErrUnexpectedPositions = errors.New("unexpected planets output")

// rawPlanet is one upstream row before normalisation.
type rawPlanet struct {
	Name        string          `json:"name"`
	FullDegree  float64         `json:"fullDegree"`
	NormDegree  float64         `json:"normDegree"`
	CurrentSign float64         `json:"current_sign"`
	HouseNumber float64         `json:"house_number"`
	IsRetro     json.RawMessage `json:"isRetro"`
}

// ParsePositions decodes the planets "output": a list of single-key objects
// such as [{"0": {"name": "Sun", ...}}, {"1": {...}}]. Rows without a name
// are skipped. isRetro is accepted as a bool or as "true"/"false".
func ParsePositions(raw json.RawMessage) ([]chart.Planet, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedPositions, err)
	}

	planets := make([]chart.Planet, 0, len(items))
	for _, item := range items {
		var wrapped map[string]json.RawMessage
		if err := json.Unmarshal(item, &wrapped); err != nil {
			continue
		}

		keys := make([]string, 0, len(wrapped))
		for k := range wrapped {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			var rp rawPlanet
			if err := json.Unmarshal(wrapped[k], &rp); err != nil || rp.Name == "" {
				continue
			}
			planets = append(planets, chart.Planet{
				Name:       rp.Name,
				FullDegree: rp.FullDegree,
				NormDegree: rp.NormDegree,
				Sign:       int(rp.CurrentSign),
				House:      int(rp.HouseNumber),
				IsRetro:    parseRetro(rp.IsRetro),
			})
		}
	}
	return planets, nil
}

func parseRetro(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		v, err := strconv.ParseBool(strings.TrimSpace(s))
		return err == nil && v
	}
	return false
}
