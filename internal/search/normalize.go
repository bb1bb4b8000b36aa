package search

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shehryarbajwa/smiles-flights/pkg/models"
)

var (
	ErrInvalidArgumentCount = errors.New("expected ORIGIN DESTINATION DATE")
	ErrInvalidDateFormat    = errors.New("invalid date format")
	ErrRestrictedFeature    = errors.New("full-month search is not available")
)

var (
	dayMonthRe = regexp.MustCompile(`^(\d{1,2})[-/](\d{1,2})$`)
	ddmmRe     = regexp.MustCompile(`^(\d{2})(\d{2})$`)
	monthRe    = regexp.MustCompile(`^\d{1,2}$`)
	yearMonRe  = regexp.MustCompile(`^\d{4}-\d{1,2}$`)
	isoDateRe  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Normalizer turns raw command text into a SearchRequest
type Normalizer struct {
	defaultYear int
}

// NewNormalizer creates a normalizer that completes shorthand dates with defaultYear
func NewNormalizer(defaultYear int) *Normalizer {
	return &Normalizer{defaultYear: defaultYear}
}

// Parse splits raw on whitespace and normalizes the three tokens
func (n *Normalizer) Parse(raw string) (*models.SearchRequest, error) {
	parts := strings.Fields(raw)
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: got %d tokens", ErrInvalidArgumentCount, len(parts))
	}

	date, err := n.NormalizeDate(parts[2])
	if err != nil {
		return nil, err
	}

	return &models.SearchRequest{
		Origin:      strings.ToUpper(parts[0]),
		Destination: strings.ToUpper(parts[1]),
		Date:        date,
	}, nil
}

// NormalizeDate maps the accepted date shapes onto YYYY-MM-DD. Day/month
// ranges are not checked here; BuildURL rejects impossible calendar dates.
func (n *Normalizer) NormalizeDate(token string) (string, error) {
	switch {
	case isoDateRe.MatchString(token):
		return token, nil
	case dayMonthRe.MatchString(token):
		m := dayMonthRe.FindStringSubmatch(token)
		return n.withYear(m[1], m[2]), nil
	case ddmmRe.MatchString(token):
		m := ddmmRe.FindStringSubmatch(token)
		return n.withYear(m[1], m[2]), nil
	case monthRe.MatchString(token), yearMonRe.MatchString(token):
		return "", fmt.Errorf("%w: %q looks like a month", ErrRestrictedFeature, token)
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDateFormat, token)
	}
}

// withYear reads the pair day-first. When only the month-first reading is
// possible ("12-25"), it is used instead.
func (n *Normalizer) withYear(first, second string) string {
	d, _ := strconv.Atoi(first)
	m, _ := strconv.Atoi(second)
	if d <= 12 && m > 12 {
		d, m = m, d
	}
	return fmt.Sprintf("%04d-%02d-%02d", n.defaultYear, m, d)
}
