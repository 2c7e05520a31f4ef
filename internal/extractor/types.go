package extractor

// Kind is the outcome of classifying one assistant turn.
type Kind string

const (
	KindOrdinary Kind = "ordinary"
	KindSummary  Kind = "summary"
	KindTerminal Kind = "terminal"
)

// ExtractedReport is the structured payload the model emits after the
// user confirms the summary.
type ExtractedReport struct {
	CrimeType    string `json:"tipo_de_crime"`
	IncidentDate string `json:"data_crime"`
	LocationText string `json:"localizacao"`
}

// Classification holds the classified turn. Report is set only for
// KindTerminal.
type Classification struct {
	Kind   Kind
	Text   string
	Report *ExtractedReport
}

// Key aliases accepted in the terminal payload. The first entry of each
// list is the canonical key the system instruction asks for.
var (
	crimeTypeKeys = []string{"tipo_de_crime", "crime_type", "crimeType", "crime_name", "tipo"}
	dateKeys      = []string{"data_crime", "data_da_denuncia", "data", "incident_date", "report_date", "crimeData", "date"}
	locationKeys  = []string{"localizacao", "localização", "location", "location_text", "local", "endereco", "endereço"}
)

// summaryMarkers are matched against the folded turn text.
var summaryMarkers = []string{
	"resumo dos dados coletados",
	"summary of collected data",
	"esta correto?",
}
