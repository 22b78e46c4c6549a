package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Abhiiiiiinav/Vedic-Sage/pkg/chart"
)

// KindPlanets is the cache kind used for planetary-position tables.
const KindPlanets = "planets"

// chartIDLength is the number of hex characters kept from the digest.
const chartIDLength = 16

// Key identifies a cached diagram or position table.
type Key string

// String returns the key as stored.
func (k Key) String() string { return string(k) }

// KeyFunc derives a cache key for a chart kind and birth request.
type KeyFunc func(kind string, r chart.BirthRequest) Key

// DeriveKey builds the cache key from kind, date, time to the minute and
// coordinates. Seconds, timezone, ayanamsha and observation point are not
// part of the key.
//
// Format: kind_year_month_date_hours_minutes_latitude_longitude
//
// Example:
//
//	d1_2003_11_22_13_30_14.82_74.1359
func DeriveKey(kind string, r chart.BirthRequest) Key {
	return Key(strings.Join(baseKeyParts(kind, r), "_"))
}

// DeriveStrictKey extends DeriveKey with seconds, timezone, observation
// point and ayanamsha, so requests that differ in astrological settings
// never share an entry.
func DeriveStrictKey(kind string, r chart.BirthRequest) Key {
	parts := append(baseKeyParts(kind, r),
		strconv.Itoa(r.Seconds),
		formatFloat(r.Timezone),
		r.ObservationPoint,
		r.Ayanamsha,
	)
	return Key(strings.Join(parts, "_"))
}

func baseKeyParts(kind string, r chart.BirthRequest) []string {
	return []string{
		kind,
		strconv.Itoa(r.Year),
		strconv.Itoa(r.Month),
		strconv.Itoa(r.Date),
		strconv.Itoa(r.Hours),
		strconv.Itoa(r.Minutes),
		formatFloat(r.Latitude),
		formatFloat(r.Longitude),
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ChartID returns a 16 hex character SHA-256 prefix of payload serialized
// with lexicographically sorted keys. Payloads holding the same values
// produce the same id whatever their field order or struct shape.
func ChartID(payload any) (string, error) {
	canonical, err := canonicalJSON(payload)
	if err != nil {
		return "", fmt.Errorf("canonicalize payload: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:chartIDLength], nil
}

// canonicalJSON round-trips v through a generic JSON tree. encoding/json
// writes map keys in sorted order, which makes the output order independent.
func canonicalJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, err
	}
	return json.Marshal(tree)
}
