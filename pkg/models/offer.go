package models

// NotAvailable fills any offer field the results page did not render
const NotAvailable = "N/A"

// PriceOption is one redeemable price line of an offer, e.g. "12000 millas + $50"
type PriceOption struct {
	Points         string `json:"points"`
	CashSupplement string `json:"cashSupplement,omitempty"`
}

// HasCash reports whether the option needs a cash top-up
func (p PriceOption) HasCash() bool {
	return p.CashSupplement != ""
}

// FlightOffer is the display text of one itinerary card. Fields are kept as
// the site renders them; nothing is parsed into numbers.
type FlightOffer struct {
	OriginLeg      string        `json:"originLeg"`
	DestinationLeg string        `json:"destinationLeg"`
	Duration       string        `json:"duration"`
	Stops          string        `json:"stops"`
	SeatsAvailable string        `json:"seatsAvailable"`
	PriceOptions   []PriceOption `json:"priceOptions"`
}
