// Package severity scores crime types against the reference list of
// heinous crimes.
package severity

import "github.com/AloysioLvy/radar-intake/internal/textutil"

const (
	// WeightBaseline is returned for any crime not on the reference list.
	WeightBaseline = 3
	// WeightHeinous is returned for crimes on the reference list.
	WeightHeinous = 9
)

// HeinousCrimes is the canonical reference list.
var HeinousCrimes = []string{
	"latrocínio",
	"homicídio qualificado",
	"homicídio praticado por grupo de extermínio",
	"homicídio doloso",
	"feminicídio",
	"genocídio",
	"estupro",
	"estupro de vulnerável",
	"atentado violento ao pudor",
	"favorecimento à prostituição",
	"exploração sexual",
	"tráfico de pessoas",
	"tráfico de drogas",
	"organização criminosa",
	"comércio ilegal de armas",
	"tráfico internacional de armas",
	"extorsão qualificada",
	"extorsão mediante sequestro",
	"sequestro e cárcere privado",
	"sequestro e extorsão qualificada",
	"envenenamento de alimentos",
	"epidemia com resultado morte",
	"falsificação de medicamentos",
}

// Classifier holds a folded, immutable copy of the reference list.
type Classifier struct {
	reference map[string]struct{}
}

// New builds a classifier over labels. Labels are folded the same way as
// inputs, so "Latrocínio" and " latrocinio " are the same entry.
func New(labels []string) *Classifier {
	ref := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		if f := textutil.Fold(l); f != "" {
			ref[f] = struct{}{}
		}
	}
	return &Classifier{reference: ref}
}

// Default returns a classifier over HeinousCrimes.
func Default() *Classifier {
	return New(HeinousCrimes)
}

// Weight returns WeightHeinous when crimeType exactly matches a reference
// label after folding, WeightBaseline otherwise.
func (c *Classifier) Weight(crimeType string) int {
	if c.IsHeinous(crimeType) {
		return WeightHeinous
	}
	return WeightBaseline
}

// IsHeinous reports exact membership after folding.
func (c *Classifier) IsHeinous(crimeType string) bool {
	_, ok := c.reference[textutil.Fold(crimeType)]
	return ok
}

// Size returns the number of distinct reference labels.
func (c *Classifier) Size() int {
	return len(c.reference)
}
