package extract

// CSS selectors for the Smiles emission results page. They are the only
// coupling to the site's markup; when the site changes, change them here.
const (
	// Present once the client-side search has rendered something, results or not
	PageReadySelector = `.select-flight-list-accordion, .resume-filters, .no-flights-found`

	// Results list; the page may render several, only a populated one counts
	ResultsContainerSelector = `.select-flight-list-accordion`
	OfferGroupSelector       = `.select-flight-list-accordion-item`

	// Inside an offer group
	OriginLegSelector      = `.flight-info .departure`
	DestinationLegSelector = `.flight-info .arrival`
	DurationSelector       = `.flight-info .duration`
	StopsSelector          = `.flight-info .stops`
	SeatsSelector          = `.seats-available`
	PriceItemSelector      = `.miles-prices li`
)
