// Package kundali assembles chart responses: it resolves division codes,
// fans variant fetches out over a bounded pool, extracts sign placements
// from each diagram and attaches nakshatras to the D1 planet table.
package kundali

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Abhiiiiiinav/Vedic-Sage/pkg/batch"
	"github.com/Abhiiiiiinav/Vedic-Sage/pkg/cache"
	"github.com/Abhiiiiiinav/Vedic-Sage/pkg/chart"
	"github.com/Abhiiiiiinav/Vedic-Sage/pkg/client"
	"github.com/Abhiiiiiinav/Vedic-Sage/pkg/extract"
	"github.com/Abhiiiiiinav/Vedic-Sage/pkg/logging"
	"github.com/Abhiiiiiinav/Vedic-Sage/pkg/nakshatra"
)

// AscendantName is the planet-table row that is not a graha.
const AscendantName = "Ascendant"

// DefaultBatchCodes are fetched by Batch when no codes are given.
var DefaultBatchCodes = []string{"d1", "d9"}

// Gateway is the upstream surface the service needs. *client.Client
// implements it.
type Gateway interface {
	FetchDiagram(ctx context.Context, endpoint string, r chart.BirthRequest, v *chart.Variant) (*client.DiagramResult, error)
	FetchPositions(ctx context.Context, r chart.BirthRequest) (*client.PositionsResult, error)
}

// Service answers chart requests.
type Service struct {
	gateway Gateway
	batch   batch.Config
	logger  zerolog.Logger
}

// NewService creates a service over gateway. A zero batch config uses
// batch.DefaultConfig.
func NewService(gateway Gateway, cfg batch.Config) *Service {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = batch.DefaultMaxConcurrency
	}
	return &Service{
		gateway: gateway,
		batch:   cfg,
		logger:  logging.NewLogger("kundali"),
	}
}

// ChartResult is one rendered division.
type ChartResult struct {
	ChartID   string `json:"chart_id"`
	SVG       string `json:"svg"`
	ChartType string `json:"chart_type"`
	ChartName string `json:"chart_name"`
	Cached    bool   `json:"cached"`
}

// Chart fetches one division. Unknown codes fail with
// chart.ErrUnknownVariant before any upstream call.
func (s *Service) Chart(ctx context.Context, code string, r chart.BirthRequest) (*ChartResult, error) {
	v, err := chart.LookupVariant(code)
	if err != nil {
		return nil, err
	}

	res, err := s.gateway.FetchDiagram(ctx, v.Endpoint, r, &v)
	if err != nil {
		return nil, err
	}

	return &ChartResult{
		ChartID:   s.chartID(r),
		SVG:       res.SVG,
		ChartType: strings.ToUpper(v.Code),
		ChartName: chart.DisplayName(v.Code),
		Cached:    res.Cached,
	}, nil
}

// BatchChart is one entry of a batch response.
type BatchChart struct {
	SVG    string `json:"svg"`
	Name   string `json:"name"`
	Cached bool   `json:"cached"`
}

// BatchResult collects several divisions. Errors is nil when every
// division succeeded.
type BatchResult struct {
	Success bool                  `json:"success"`
	ChartID string                `json:"chart_id"`
	Charts  map[string]BatchChart `json:"charts"`
	Errors  map[string]string     `json:"errors"`
	Count   int                   `json:"count"`
}

// Batch fetches codes (DefaultBatchCodes when nil; an empty list fetches
// nothing). Each code is an
// independent fetch; a failed or unknown code is reported in Errors and
// never fails the others.
func (s *Service) Batch(ctx context.Context, codes []string, r chart.BirthRequest) *BatchResult {
	if codes == nil {
		codes = DefaultBatchCodes
	}

	out := &BatchResult{
		ChartID: s.chartID(r),
		Charts:  make(map[string]BatchChart),
	}
	errs := make(map[string]string)

	for _, res := range s.fetchDiagrams(ctx, codes, r, errs) {
		if res.Err != nil {
			errs[res.Item] = errorSummary(res.Err)
			continue
		}
		out.Charts[res.Item] = BatchChart{
			SVG:    res.Value.SVG,
			Name:   chart.DisplayName(res.Item),
			Cached: res.Value.Cached,
		}
	}

	out.Count = len(out.Charts)
	out.Success = out.Count > 0
	if len(errs) > 0 {
		out.Errors = errs
	}
	return out
}

// Division is the extracted view of one divisional chart.
type Division struct {
	SVG             string           `json:"svg"`
	ChartName       string           `json:"chart_name"`
	AscendantSign   int              `json:"ascendant_sign"`
	AscendantName   string           `json:"ascendant_name"`
	PlanetSigns     map[string]int   `json:"planet_signs"`
	PlanetsInHouses map[int][]string `json:"planets_in_houses"`
	Cached          bool             `json:"cached"`
}

// PlanetDetail is a D1 planet with its nakshatra.
type PlanetDetail struct {
	FullDegree    float64 `json:"fullDegree"`
	NormDegree    float64 `json:"normDegree"`
	Sign          int     `json:"sign"`
	SignName      string  `json:"sign_name"`
	House         int     `json:"house"`
	IsRetro       bool    `json:"isRetro"`
	Nakshatra     string  `json:"nakshatra"`
	NakshatraPada int     `json:"nakshatra_pada"`
	NakshatraLord string  `json:"nakshatra_lord"`
}

// FullResult is the combined kundali: extracted divisions, the D1 planet
// table and a nakshatra map that excludes the ascendant.
type FullResult struct {
	Success    bool                        `json:"success"`
	ChartID    string                      `json:"chart_id"`
	Divisions  map[string]Division         `json:"divisions"`
	D1Planets  map[string]PlanetDetail     `json:"d1_planets"`
	Nakshatras map[string]nakshatra.Result `json:"nakshatras"`
	Errors     map[string]string           `json:"errors"`
	Count      int                         `json:"count"`
}

// Full fetches every code (all divisions when nil) together with the D1
// planet table. Success means at least one division was extracted; a
// planet-table failure is reported under Errors["planets"].
func (s *Service) Full(ctx context.Context, codes []string, r chart.BirthRequest) *FullResult {
	if codes == nil {
		codes = chart.Codes()
	}

	out := &FullResult{
		ChartID:    s.chartID(r),
		Divisions:  make(map[string]Division),
		D1Planets:  make(map[string]PlanetDetail),
		Nakshatras: make(map[string]nakshatra.Result),
	}
	errs := make(map[string]string)

	var (
		wg        sync.WaitGroup
		planets   []chart.Planet
		planetErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		planets, planetErr = s.Planets(ctx, r)
	}()

	for _, res := range s.fetchDiagrams(ctx, codes, r, errs) {
		if res.Err != nil {
			errs[res.Item] = errorSummary(res.Err)
			continue
		}
		pos := extract.ExtractPositions(res.Value.SVG)
		out.Divisions[res.Item] = Division{
			SVG:             res.Value.SVG,
			ChartName:       chart.DisplayName(res.Item),
			AscendantSign:   pos.AscendantSign,
			AscendantName:   pos.AscendantName(),
			PlanetSigns:     pos.PlanetSigns,
			PlanetsInHouses: pos.PlanetsByHouse,
			Cached:          res.Value.Cached,
		}
	}

	wg.Wait()
	if planetErr != nil {
		s.logger.Warn().Err(planetErr).Msg("D1 planet table unavailable")
		errs[cache.KindPlanets] = errorSummary(planetErr)
	}
	for _, p := range planets {
		nk := nakshatra.FromLongitude(p.FullDegree)
		out.D1Planets[p.Name] = PlanetDetail{
			FullDegree:    p.FullDegree,
			NormDegree:    p.NormDegree,
			Sign:          p.Sign,
			SignName:      chart.SignName(p.Sign),
			House:         p.House,
			IsRetro:       p.IsRetro,
			Nakshatra:     nk.Name,
			NakshatraPada: nk.Pada,
			NakshatraLord: nk.Lord,
		}
		if p.Name != AscendantName {
			out.Nakshatras[p.Name] = nk
		}
	}

	out.Count = len(out.Divisions)
	out.Success = out.Count > 0
	if len(errs) > 0 {
		out.Errors = errs
	}

	s.logger.Debug().
		Int("divisions", out.Count).
		Int("planets", len(out.D1Planets)).
		Int("errors", len(errs)).
		Msg("Full kundali assembled")
	return out
}

// PlanetsResult is the raw planets output.
type PlanetsResult struct {
	Output json.RawMessage `json:"output"`
	Cached bool            `json:"cached"`
}

// RawPlanets returns the planets endpoint output as received.
func (s *Service) RawPlanets(ctx context.Context, r chart.BirthRequest) (*PlanetsResult, error) {
	res, err := s.gateway.FetchPositions(ctx, r)
	if err != nil {
		return nil, err
	}
	return &PlanetsResult{Output: res.Output, Cached: res.Cached}, nil
}

// Planets returns the parsed D1 planet table.
func (s *Service) Planets(ctx context.Context, r chart.BirthRequest) ([]chart.Planet, error) {
	res, err := s.gateway.FetchPositions(ctx, r)
	if err != nil {
		return nil, err
	}
	planets, err := ParsePositions(res.Output)
	if err != nil {
		return nil, fmt.Errorf("parse planets: %w", err)
	}
	return planets, nil
}

// fetchDiagrams fetches every known code over the batch pool. Unknown codes
// are recorded in errs and not fetched.
func (s *Service) fetchDiagrams(ctx context.Context, codes []string, r chart.BirthRequest, errs map[string]string) []batch.Result[*client.DiagramResult] {
	known := s.resolve(codes, errs)
	bf := batch.NewBatchFetcher(func(ctx context.Context, code string) (*client.DiagramResult, error) {
		v := known[code]
		return s.gateway.FetchDiagram(ctx, v.Endpoint, r, &v)
	}, s.batch)
	return bf.FetchAll(ctx, keys(codes, known))
}

// resolve lowercases codes and looks each up once. Unknown codes are
// recorded in errs.
func (s *Service) resolve(codes []string, errs map[string]string) map[string]chart.Variant {
	known := make(map[string]chart.Variant, len(codes))
	for _, code := range codes {
		code = strings.ToLower(strings.TrimSpace(code))
		if _, seen := known[code]; seen {
			continue
		}
		v, err := chart.LookupVariant(code)
		if err != nil {
			errs[code] = "Unknown division: " + code
			continue
		}
		known[code] = v
	}
	return known
}

func (s *Service) chartID(r chart.BirthRequest) string {
	id, err := cache.ChartID(r.Payload())
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to derive chart id")
	}
	return id
}

// keys returns the known codes in request order without duplicates.
func keys(codes []string, known map[string]chart.Variant) []string {
	out := make([]string, 0, len(known))
	seen := make(map[string]bool, len(known))
	for _, code := range codes {
		code = strings.ToLower(strings.TrimSpace(code))
		if _, ok := known[code]; ok && !seen[code] {
			seen[code] = true
			out = append(out, code)
		}
	}
	return out
}

// errorSummary is the short message reported per division.
func errorSummary(err error) string {
	var fe *client.FetchError
	if errors.As(err, &fe) && fe.Message != "" {
		return fe.Message
	}
	return err.Error()
}
