package extract

import (
	"regexp"
	"strings"

	"github.com/shehryarbajwa/smiles-flights/pkg/models"
)

// Phrases the site wraps around prices that carry no information
var priceBoilerplate = []string{
	"Precio final",
	"por tramo",
	"por pasajero",
	"Desde",
	"desde",
}

// " x Club Smiles", " × 2" and the like trail the amount
var qualifierRe = regexp.MustCompile(`(?i)\s+[x×]\s+`)

// ParsePriceOption normalizes one price line such as
// "Desde 12.000 millas + $ 50 x Club Smiles" into points and cash parts.
// The second result is false when no points amount is left.
func ParsePriceOption(raw string) (models.PriceOption, bool) {
	text := collapseSpace(raw)
	for _, phrase := range priceBoilerplate {
		text = strings.ReplaceAll(text, phrase, "")
	}
	text = collapseSpace(text)

	pointsPart, cashPart, hasCash := strings.Cut(text, "+")

	option := models.PriceOption{
		Points: stripQualifier(pointsPart),
	}
	if hasCash {
		option.CashSupplement = stripQualifier(cashPart)
	}

	return option, option.Points != ""
}

func stripQualifier(s string) string {
	s = collapseSpace(s)
	if loc := qualifierRe.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}
	return strings.TrimSpace(s)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
