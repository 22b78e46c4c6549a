// Package chart defines the birth-detail request, the divisional chart
// variants served by the upstream API and the zodiac sign tables shared by
// the extractor and the kundali service.
package chart

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Defaults applied by Normalize when a field is absent from the request.
const (
	DefaultYear             = 2024
	DefaultMonth            = 1
	DefaultDate             = 1
	DefaultHours            = 12
	DefaultMinutes          = 0
	DefaultSeconds          = 0
	DefaultLatitude         = 28.6139
	DefaultLongitude        = 77.2090
	DefaultTimezone         = 5.5
	DefaultObservationPoint = "topocentric"
	DefaultAyanamsha        = "lahiri"
)

// ErrInvalidField indicates a birth field that is present but not a number.
var ErrInvalidField = errors.New("invalid birth field")

// BirthRequest is a fully defaulted set of birth details.
// Field names follow the upstream wire format.
type BirthRequest struct {
	Year             int     `json:"year" validate:"gte=1,lte=9999"`
	Month            int     `json:"month" validate:"gte=1,lte=12"`
	Date             int     `json:"date" validate:"gte=1,lte=31"`
	Hours            int     `json:"hours" validate:"gte=0,lte=23"`
	Minutes          int     `json:"minutes" validate:"gte=0,lte=59"`
	Seconds          int     `json:"seconds" validate:"gte=0,lte=59"`
	Latitude         float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude        float64 `json:"longitude" validate:"gte=-180,lte=180"`
	Timezone         float64 `json:"timezone" validate:"gte=-14,lte=14"`
	ObservationPoint string  `json:"observation_point" validate:"required,oneof=topocentric geocentric"`
	Ayanamsha        string  `json:"ayanamsha" validate:"required"`
}

// PayloadConfig is the nested settings block of the upstream body.
type PayloadConfig struct {
	ObservationPoint string `json:"observation_point"`
	Ayanamsha        string `json:"ayanamsha"`
}

// Payload is the JSON body posted to every upstream endpoint.
type Payload struct {
	Year      int           `json:"year"`
	Month     int           `json:"month"`
	Date      int           `json:"date"`
	Hours     int           `json:"hours"`
	Minutes   int           `json:"minutes"`
	Seconds   int           `json:"seconds"`
	Latitude  float64       `json:"latitude"`
	Longitude float64       `json:"longitude"`
	Timezone  float64       `json:"timezone"`
	Config    PayloadConfig `json:"config"`
}

// Default returns a BirthRequest with every field set to its default.
func Default() BirthRequest {
	return BirthRequest{
		Year:             DefaultYear,
		Month:            DefaultMonth,
		Date:             DefaultDate,
		Hours:            DefaultHours,
		Minutes:          DefaultMinutes,
		Seconds:          DefaultSeconds,
		Latitude:         DefaultLatitude,
		Longitude:        DefaultLongitude,
		Timezone:         DefaultTimezone,
		ObservationPoint: DefaultObservationPoint,
		Ayanamsha:        DefaultAyanamsha,
	}
}

// Payload converts the request into the upstream body.
func (r BirthRequest) Payload() Payload {
	return Payload{
		Year:      r.Year,
		Month:     r.Month,
		Date:      r.Date,
		Hours:     r.Hours,
		Minutes:   r.Minutes,
		Seconds:   r.Seconds,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Timezone:  r.Timezone,
		Config: PayloadConfig{
			ObservationPoint: r.ObservationPoint,
			Ayanamsha:        r.Ayanamsha,
		},
	}
}

// Normalize builds a BirthRequest from a loosely typed request body or
// query map. Absent fields take their defaults; numeric fields accept JSON
// numbers or numeric strings. observation_point and ayanamsha are read from
// the top level first and from a nested "config" object second.
func Normalize(raw map[string]any) (BirthRequest, error) {
	r := Default()

	ints := []struct {
		key string
		dst *int
	}{
		{"year", &r.Year},
		{"month", &r.Month},
		{"date", &r.Date},
		{"hours", &r.Hours},
		{"minutes", &r.Minutes},
		{"seconds", &r.Seconds},
	}
	for _, f := range ints {
		v, ok := raw[f.key]
		if !ok || v == nil {
			continue
		}
		n, err := toInt(v)
		if err != nil {
			return BirthRequest{}, fmt.Errorf("%w: %s: %v", ErrInvalidField, f.key, err)
		}
		*f.dst = n
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{"latitude", &r.Latitude},
		{"longitude", &r.Longitude},
		{"timezone", &r.Timezone},
	}
	for _, f := range floats {
		v, ok := raw[f.key]
		if !ok || v == nil {
			continue
		}
		x, err := toFloat(v)
		if err != nil {
			return BirthRequest{}, fmt.Errorf("%w: %s: %v", ErrInvalidField, f.key, err)
		}
		*f.dst = x
	}

	nested, _ := raw["config"].(map[string]any)
	if s := stringField(raw, nested, "observation_point"); s != "" {
		r.ObservationPoint = s
	}
	if s := stringField(raw, nested, "ayanamsha"); s != "" {
		r.Ayanamsha = s
	}

	return r, nil
}

func stringField(top, nested map[string]any, key string) string {
	if s, ok := top[key].(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	if s, ok := nested[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func toInt(v any) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64:
		return int(x), nil
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return int(n), nil
		}
		f, err := x.Float64()
		if err != nil {
			return 0, err
		}
		return int(f), nil
	case string:
		s := strings.TrimSpace(x)
		if n, err := strconv.Atoi(s); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", x)
		}
		return int(f), nil
	case []string:
		if len(x) == 0 {
			return 0, fmt.Errorf("empty value")
		}
		return toInt(x[0])
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case json.Number:
		return x.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", x)
		}
		return f, nil
	case []string:
		if len(x) == 0 {
			return 0, fmt.Errorf("empty value")
		}
		return toFloat(x[0])
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}
