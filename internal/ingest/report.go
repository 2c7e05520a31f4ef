package ingest

import (
	"github.com/AloysioLvy/radar-intake/internal/extractor"
	"github.com/AloysioLvy/radar-intake/internal/geocode"
)

// EnrichedReport is the body posted to the ingestion backend. Field names
// follow the backend's report request contract.
type EnrichedReport struct {
	Name         *string `json:"name"`
	Latitude     *string `json:"latitude"`
	Longitude    *string `json:"longitude"`
	CrimeName    string  `json:"crime_name"`
	ReportDate   string  `json:"report_date"`
	CrimeWeight  int     `json:"crime_weight"`
	LocationText string  `json:"location_text"`
}

// Build assembles the report from the extracted fields, the severity
// weight and the geocoding result.
func Build(r extractor.ExtractedReport, weight int, loc geocode.Location) EnrichedReport {
	return EnrichedReport{
		Name:         loc.AreaLabel,
		Latitude:     loc.Latitude,
		Longitude:    loc.Longitude,
		CrimeName:    r.CrimeType,
		ReportDate:   r.IncidentDate,
		CrimeWeight:  weight,
		LocationText: r.LocationText,
	}
}
