package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/shehryarbajwa/smiles-flights/pkg/models"
)

// Result is what one extraction produced
type Result struct {
	Offers []models.FlightOffer
	// NoResults is set when the page rendered but listed no flights
	NoResults  bool
	Attempts   int
	SnapshotID string
}

// ParseOffers reads up to limit offers from rendered markup, in page order.
// A page without a populated results container yields NoResults, not an error.
func ParseOffers(markup string, limit int) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page markup: %w", err)
	}

	container := findPopulatedContainer(doc)
	if container == nil {
		return &Result{NoResults: true}, nil
	}

	var offers []models.FlightOffer
	container.Find(OfferGroupSelector).EachWithBreak(func(_ int, group *goquery.Selection) bool {
		if limit > 0 && len(offers) >= limit {
			return false
		}
		offers = append(offers, OfferFromGroup(group))
		return true
	})

	return &Result{Offers: offers, NoResults: len(offers) == 0}, nil
}

// findPopulatedContainer returns the first results container holding at least one offer group
func findPopulatedContainer(doc *goquery.Document) *goquery.Selection {
	var found *goquery.Selection
	doc.Find(ResultsContainerSelector).EachWithBreak(func(_ int, c *goquery.Selection) bool {
		if c.Find(OfferGroupSelector).Length() > 0 {
			found = c
			return false
		}
		return true
	})
	return found
}

// OfferFromGroup builds an offer from one itinerary card. Missing
// sub-elements become models.NotAvailable.
func OfferFromGroup(group *goquery.Selection) models.FlightOffer {
	offer := models.FlightOffer{
		OriginLeg:      textOf(group, OriginLegSelector),
		DestinationLeg: textOf(group, DestinationLegSelector),
		Duration:       textOf(group, DurationSelector),
		Stops:          textOf(group, StopsSelector),
		SeatsAvailable: textOf(group, SeatsSelector),
		PriceOptions:   []models.PriceOption{},
	}

	group.Find(PriceItemSelector).Each(func(_ int, item *goquery.Selection) {
		if option, ok := ParsePriceOption(item.Text()); ok {
			offer.PriceOptions = append(offer.PriceOptions, option)
		}
	})

	return offer
}

func textOf(group *goquery.Selection, selector string) string {
	text := collapseSpace(group.Find(selector).First().Text())
	if text == "" {
		return models.NotAvailable
	}
	return text
}
