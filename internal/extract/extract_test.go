package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehryarbajwa/smiles-flights/internal/browser"
	"github.com/shehryarbajwa/smiles-flights/pkg/models"
)

type groupSpec struct {
	from, to, duration, stops, seats string
	prices                           []string
}

func groupHTML(g groupSpec) string {
	var b strings.Builder
	b.WriteString(`<div class="select-flight-list-accordion-item"><div class="flight-info">`)
	if g.from != "" {
		fmt.Fprintf(&b, `<span class="departure">%s</span>`, g.from)
	}
	if g.to != "" {
		fmt.Fprintf(&b, `<span class="arrival">%s</span>`, g.to)
	}
	if g.duration != "" {
		fmt.Fprintf(&b, `<span class="duration">%s</span>`, g.duration)
	}
	if g.stops != "" {
		fmt.Fprintf(&b, `<span class="stops">%s</span>`, g.stops)
	}
	b.WriteString(`</div>`)
	if g.seats != "" {
		fmt.Fprintf(&b, `<p class="seats-available">%s</p>`, g.seats)
	}
	b.WriteString(`<ul class="miles-prices">`)
	for _, p := range g.prices {
		fmt.Fprintf(&b, `<li>%s</li>`, p)
	}
	b.WriteString(`</ul></div>`)
	return b.String()
}

func page(containers ...string) string {
	return `<html><body><div class="resume-filters"><table></table></div>` +
		strings.Join(containers, "") + `</body></html>`
}

func container(groups ...groupSpec) string {
	var b strings.Builder
	b.WriteString(`<div class="select-flight-list-accordion">`)
	for _, g := range groups {
		b.WriteString(groupHTML(g))
	}
	b.WriteString(`</div>`)
	return b.String()
}

func fullGroup(i int) groupSpec {
	return groupSpec{
		from:     fmt.Sprintf("EZE %02d:00", i),
		to:       fmt.Sprintf("MAD %02d:30", i),
		duration: "13h 05m",
		stops:    "Directo",
		seats:    "Quedan 3 asientos",
		prices:   []string{"Desde 12.000 millas + $ 50 x Club Smiles", "30.000 millas x Club Smiles"},
	}
}

func TestParseOffersCapsAndKeepsOrder(t *testing.T) {
	var groups []groupSpec
	for i := 1; i <= 7; i++ {
		groups = append(groups, fullGroup(i))
	}

	result, err := ParseOffers(page(container(groups...)), 5)
	require.NoError(t, err)

	require.Len(t, result.Offers, 5)
	assert.False(t, result.NoResults)
	for i, offer := range result.Offers {
		assert.Equal(t, fmt.Sprintf("EZE %02d:00", i+1), offer.OriginLeg)
	}

	first := result.Offers[0]
	assert.Equal(t, "MAD 01:30", first.DestinationLeg)
	assert.Equal(t, "13h 05m", first.Duration)
	assert.Equal(t, "Directo", first.Stops)
	assert.Equal(t, "Quedan 3 asientos", first.SeatsAvailable)
	assert.Equal(t, []models.PriceOption{
		{Points: "12.000 millas", CashSupplement: "$ 50"},
		{Points: "30.000 millas"},
	}, first.PriceOptions)
}

func TestParseOffersMissingSubElements(t *testing.T) {
	g := fullGroup(1)
	g.seats = ""
	g.stops = ""
	g.prices = nil

	result, err := ParseOffers(page(container(g)), 5)
	require.NoError(t, err)
	require.Len(t, result.Offers, 1)

	offer := result.Offers[0]
	assert.Equal(t, models.NotAvailable, offer.SeatsAvailable)
	assert.Equal(t, models.NotAvailable, offer.Stops)
	assert.Equal(t, "EZE 01:00", offer.OriginLeg)
	assert.Empty(t, offer.PriceOptions)
}

func TestParseOffersUsesFirstPopulatedContainer(t *testing.T) {
	markup := page(container(), container(fullGroup(4), fullGroup(5)), container(fullGroup(9)))

	result, err := ParseOffers(markup, 5)
	require.NoError(t, err)

	require.Len(t, result.Offers, 2)
	assert.Equal(t, "EZE 04:00", result.Offers[0].OriginLeg)
	assert.Equal(t, "EZE 05:00", result.Offers[1].OriginLeg)
}

func TestParseOffersNoResults(t *testing.T) {
	for name, markup := range map[string]string{
		"no container":    `<html><body><div class="no-flights-found">Sin vuelos</div></body></html>`,
		"empty container": page(container()),
		"not html at all": "just text",
	} {
		t.Run(name, func(t *testing.T) {
			result, err := ParseOffers(markup, 5)
			require.NoError(t, err)
			assert.True(t, result.NoResults)
			assert.Empty(t, result.Offers)
		})
	}
}

func TestParsePriceOption(t *testing.T) {
	tests := []struct {
		raw  string
		want models.PriceOption
		ok   bool
	}{
		{"12000 millas + $50 x Club Smiles", models.PriceOption{Points: "12000 millas", CashSupplement: "$50"}, true},
		{"  Desde\n 45.500   millas ", models.PriceOption{Points: "45.500 millas"}, true},
		{"20.000 millas X 2 tramos", models.PriceOption{Points: "20.000 millas"}, true},
		{"Precio final 8.000 millas + ARS 12.345,67 por pasajero", models.PriceOption{Points: "8.000 millas", CashSupplement: "ARS 12.345,67"}, true},
		{"Desde", models.PriceOption{}, false},
		{"", models.PriceOption{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParsePriceOption(tt.raw)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

type fakeSessions struct {
	ensures   int
	restarts  int
	shutdowns int
	ensureErr error
}

func (f *fakeSessions) Ensure(ctx context.Context) (*browser.Session, error) {
	f.ensures++
	if f.ensureErr != nil {
		return nil, f.ensureErr
	}
	return &browser.Session{ID: "ensure"}, nil
}

func (f *fakeSessions) Restart(ctx context.Context) (*browser.Session, error) {
	f.restarts++
	return &browser.Session{ID: fmt.Sprintf("restart-%d", f.restarts)}, nil
}

func (f *fakeSessions) Shutdown() {
	f.shutdowns++
}

type fakeRenderer struct {
	failures []error
	markup   string
	calls    []string
	panicOn  int
}

func (f *fakeRenderer) Render(ctx context.Context, session *browser.Session, url string) (string, error) {
	f.calls = append(f.calls, session.ID)
	if f.panicOn == len(f.calls) {
		panic("stale node")
	}
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		return "", err
	}
	return f.markup, nil
}

type fakeSnapshots struct {
	saved []string
}

func (f *fakeSnapshots) Save(markup string) (string, error) {
	f.saved = append(f.saved, markup)
	return "snap-1", nil
}

func TestExtractSucceedsFirstTry(t *testing.T) {
	sessions := &fakeSessions{}
	renderer := &fakeRenderer{markup: page(container(fullGroup(1)))}
	snaps := &fakeSnapshots{}

	result, err := NewExtractor(sessions, renderer, 5).WithSnapshots(snaps).Extract(context.Background(), "https://example.test", 2)
	require.NoError(t, err)

	assert.Len(t, result.Offers, 1)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, "snap-1", result.SnapshotID)
	assert.Equal(t, 0, sessions.restarts)
	assert.Equal(t, 0, sessions.shutdowns)
	assert.Len(t, snaps.saved, 1)
}

func TestExtractRestartsBetweenRetries(t *testing.T) {
	sessions := &fakeSessions{}
	renderer := &fakeRenderer{
		failures: []error{ErrPageLoadTimeout, errors.New("stale element")},
		markup:   page(container(fullGroup(1), fullGroup(2))),
	}

	result, err := NewExtractor(sessions, renderer, 5).Extract(context.Background(), "https://example.test", 2)
	require.NoError(t, err)

	assert.Len(t, result.Offers, 2)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, 2, sessions.restarts)
	assert.Equal(t, []string{"ensure", "restart-1", "restart-2"}, renderer.calls)
	assert.Equal(t, 0, sessions.shutdowns)
}

func TestExtractGivesUpAfterRetries(t *testing.T) {
	sessions := &fakeSessions{}
	renderer := &fakeRenderer{
		failures: []error{errors.New("crashed"), errors.New("crashed again"), ErrPageLoadTimeout},
	}

	_, err := NewExtractor(sessions, renderer, 5).Extract(context.Background(), "https://example.test", 2)

	var extractionErr *ExtractionError
	require.ErrorAs(t, err, &extractionErr)
	assert.Equal(t, 3, extractionErr.Attempts)
	assert.ErrorIs(t, err, ErrExtraction)
	assert.ErrorIs(t, err, ErrPageLoadTimeout)
	assert.Equal(t, 2, sessions.restarts)
	assert.Equal(t, 1, sessions.shutdowns)
}

func TestExtractWithoutRetries(t *testing.T) {
	sessions := &fakeSessions{}
	renderer := &fakeRenderer{failures: []error{errors.New("crashed")}}

	_, err := NewExtractor(sessions, renderer, 5).Extract(context.Background(), "https://example.test", 0)

	assert.ErrorIs(t, err, ErrExtraction)
	assert.Equal(t, 0, sessions.restarts)
	assert.Equal(t, 1, sessions.shutdowns)
	assert.Len(t, renderer.calls, 1)
}

func TestExtractRecoversPanics(t *testing.T) {
	sessions := &fakeSessions{}
	renderer := &fakeRenderer{panicOn: 1, markup: page(container(fullGroup(1)))}

	result, err := NewExtractor(sessions, renderer, 5).Extract(context.Background(), "https://example.test", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, 1, sessions.restarts)
}

func TestExtractEnsureFailureIsRetried(t *testing.T) {
	sessions := &fakeSessions{ensureErr: errors.New("chrome missing")}
	renderer := &fakeRenderer{markup: page(container(fullGroup(1)))}

	result, err := NewExtractor(sessions, renderer, 5).Extract(context.Background(), "https://example.test", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, []string{"restart-1"}, renderer.calls)
}

func TestExtractNoResultsIsNotAnError(t *testing.T) {
	sessions := &fakeSessions{}
	renderer := &fakeRenderer{markup: page()}

	result, err := NewExtractor(sessions, renderer, 5).Extract(context.Background(), "https://example.test", 2)
	require.NoError(t, err)
	assert.True(t, result.NoResults)
	assert.Equal(t, 0, sessions.restarts)
	assert.Equal(t, 0, sessions.shutdowns)
}
