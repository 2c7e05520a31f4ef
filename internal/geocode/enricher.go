package geocode

import (
	"context"
	"log/slog"
	"strings"
)

// Location is the enrichment result. All three fields are nil when the
// location could not be resolved.
type Location struct {
	Latitude  *string `json:"latitude"`
	Longitude *string `json:"longitude"`
	AreaLabel *string `json:"area_label"`
}

// Found reports whether coordinates were resolved.
func (l Location) Found() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// Searcher is the geocoding capability the enricher depends on.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Place, error)
}

var (
	neighborhoodKeys = []string{"suburb", "neighbourhood", "city_district", "quarter", "hamlet"}
	cityKeys         = []string{"city", "town", "municipality", "village"}
)

type Enricher struct {
	searcher  Searcher
	areaIndex int
	logger    *slog.Logger
}

// NewEnricher builds an enricher. areaIndex picks the comma-separated
// segment of the display name used when the candidate has no structured
// address; 0 or 1 also selects neighborhood-level address components,
// 2 and above select city-level ones.
func NewEnricher(s Searcher, areaIndex int, logger *slog.Logger) *Enricher {
	if areaIndex < 0 {
		areaIndex = 1
	}
	return &Enricher{searcher: s, areaIndex: areaIndex, logger: logger}
}

// Enrich resolves text. It never fails: no match and geocoder errors both
// yield an empty Location.
func (e *Enricher) Enrich(ctx context.Context, text string) Location {
	query := strings.TrimSpace(text)
	if query == "" {
		return Location{}
	}

	places, err := e.searcher.Search(ctx, query)
	if err != nil {
		e.logger.Warn("geocoding failed, continuing without coordinates", "query", query, "error", err)
		return Location{}
	}
	if len(places) == 0 {
		e.logger.Info("geocoding returned no match", "query", query)
		return Location{}
	}

	p := places[0]
	lat, lon := strings.TrimSpace(p.Lat), strings.TrimSpace(p.Lon)
	if lat == "" || lon == "" {
		e.logger.Warn("geocoding candidate without coordinates", "query", query)
		return Location{}
	}

	loc := Location{Latitude: &lat, Longitude: &lon}
	if area := e.areaLabel(p); area != "" {
		loc.AreaLabel = &area
	}
	e.logger.Debug("location resolved", "query", query, "lat", lat, "lon", lon, "area", loc.AreaLabel != nil)
	return loc
}

func (e *Enricher) areaLabel(p Place) string {
	keys := neighborhoodKeys
	if e.areaIndex >= 2 {
		keys = cityKeys
	}
	for _, k := range keys {
		if v := strings.TrimSpace(p.Address[k]); v != "" {
			return v
		}
	}
	return Segment(p.DisplayName, e.areaIndex)
}

// Segment returns the trimmed idx-th comma-separated part of displayName,
// or "" when idx is out of range.
func Segment(displayName string, idx int) string {
	if displayName == "" || idx < 0 {
		return ""
	}
	parts := strings.Split(displayName, ",")
	if idx >= len(parts) {
		return ""
	}
	return strings.TrimSpace(parts[idx])
}
