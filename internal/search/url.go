package search

import (
	"fmt"
	"net/url"
	"time"

	"github.com/shehryarbajwa/smiles-flights/pkg/models"
)

const dateLayout = "2006-01-02"

// URLBuilder renders the emission search URL of the target site
type URLBuilder struct {
	BaseURL      string
	CurrencyCode string
	// Location defaults to time.Local. The site's date picker works on local
	// midnight; whether that matches the server's zone is unverified.
	Location *time.Location
}

// NewURLBuilder creates a builder using the local time zone
func NewURLBuilder(baseURL, currency string) *URLBuilder {
	return &URLBuilder{BaseURL: baseURL, CurrencyCode: currency}
}

// Build returns the query URL for req
func (b *URLBuilder) Build(req *models.SearchRequest) (string, error) {
	ts, err := b.DepartureTimestamp(req.Date)
	if err != nil {
		return "", err
	}

	// Fixed parameter order keeps the output byte-identical across calls.
	q := fmt.Sprintf(
		"originAirportCode=%s&destinationAirportCode=%s&departureDate=%d"+
			"&adults=1&children=0&infants=0&isFlexibleDateChecked=false"+
			"&tripType=1&cabinType=all&currencyCode=%s",
		url.QueryEscape(req.Origin),
		url.QueryEscape(req.Destination),
		ts,
		url.QueryEscape(b.CurrencyCode),
	)
	return b.BaseURL + "?" + q, nil
}

// DepartureTimestamp converts YYYY-MM-DD into epoch milliseconds at midnight
func (b *URLBuilder) DepartureTimestamp(date string) (int64, error) {
	loc := b.location()
	day, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidDateFormat, date, err)
	}
	return day.UnixMilli(), nil
}

// DateFromTimestamp is the inverse of DepartureTimestamp
func (b *URLBuilder) DateFromTimestamp(ms int64) string {
	return time.UnixMilli(ms).In(b.location()).Format(dateLayout)
}

func (b *URLBuilder) location() *time.Location {
	if b.Location != nil {
		return b.Location
	}
	return time.Local
}
