package kundali

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/Abhiiiiiinav/Vedic-Sage/internal/testutil"
)

func TestParsePositions(t *testing.T) {
	planets, err := ParsePositions(json.RawMessage(testutil.SamplePlanetsOutput))
	if err != nil {
		t.Fatalf("ParsePositions() error = %v", err)
	}
	if len(planets) != 5 {
		t.Fatalf("len(planets) = %d, want 5", len(planets))
	}

	want := []struct {
		name  string
		sign  int
		house int
		retro bool
	}{
		{"Ascendant", 4, 1, false},
		{"Sun", 8, 5, false},
		{"Moon", 2, 11, false},
		{"Saturn", 3, 12, true},
		{"Rahu", 2, 11, true},
	}
	for i, w := range want {
		p := planets[i]
		if p.Name != w.name || p.Sign != w.sign || p.House != w.house || p.IsRetro != w.retro {
			t.Errorf("planets[%d] = %+v, want %+v", i, p, w)
		}
	}
	if planets[1].FullDegree != 216.5 || planets[1].NormDegree != 6.5 {
		t.Errorf("Sun degrees = %v/%v", planets[1].FullDegree, planets[1].NormDegree)
	}
}

func TestParsePositions_SkipsMalformedRows(t *testing.T) {
	raw := `[
		{"0": {"fullDegree": 10}},
		"not an object",
		{"1": {"name": "Mars", "fullDegree": 12.5, "current_sign": 1, "house_number": 3, "isRetro": "maybe"}},
		{"2": 42}
	]`

	planets, err := ParsePositions(json.RawMessage(raw))
	if err != nil {
		t.Fatalf("ParsePositions() error = %v", err)
	}
	if len(planets) != 1 || planets[0].Name != "Mars" {
		t.Fatalf("planets = %+v, want only Mars", planets)
	}
	if planets[0].IsRetro {
		t.Error("unparseable isRetro should be false")
	}
}

func TestParsePositions_NotAList(t *testing.T) {
	for _, raw := range []string{`{"name":"Sun"}`, `"<svg></svg>"`, ``} {
		if _, err := ParsePositions(json.RawMessage(raw)); !errors.Is(err, ErrUnexpectedPositions) {
			t.Errorf("ParsePositions(%q) error = %v, want ErrUnexpectedPositions", raw, err)
		}
	}
}

func TestParseRetro(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{`true`, true},
		{`false`, false},
		{`"true"`, true},
		{`"True"`, true},
		{`"false"`, false},
		{`"yes"`, false},
		{`1`, false},
		{``, false},
		{`null`, false},
	}
	for _, tt := range tests {
		if got := parseRetro(json.RawMessage(tt.raw)); got != tt.want {
			t.Errorf("parseRetro(%s) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
