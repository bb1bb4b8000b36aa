package format

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/shehryarbajwa/smiles-flights/pkg/models"
)

// MaxChunkSize is the chat transport's per-message limit, in characters
const MaxChunkSize = 4096

const separator = "━━━━━━━━━━━━━━━\n"

// Field and option caps keep any single block well under MaxChunkSize
const (
	maxFieldRunes   = 160
	maxPriceOptions = 6
)

// Format renders offers into HTML chunks no longer than MaxChunkSize.
// Each offer stays whole inside one chunk; offers keep their input order.
func Format(offers []models.FlightOffer, travelDate string) []string {
	if len(offers) == 0 {
		return nil
	}

	blocks := make([]string, 0, len(offers)+1)
	blocks = append(blocks, Header(len(offers), travelDate))
	for i, offer := range offers {
		blocks = append(blocks, Block(i+1, offer))
	}

	return Chunk(blocks, MaxChunkSize)
}

// Header is the first block of every formatted result
func Header(count int, travelDate string) string {
	if travelDate == "" {
		return fmt.Sprintf("✈️ <b>%d vuelos</b>\n\n", count)
	}
	return fmt.Sprintf("✈️ <b>%d vuelos para el %s</b>\n\n", count, Escape(displayDate(travelDate)))
}

// Block renders one offer. The block ends with its own separator so that
// chunks can be concatenated back into the full listing.
func Block(n int, offer models.FlightOffer) string {
	var b strings.Builder

	fmt.Fprintf(&b, "<b>Opción %d</b>\n", n)
	fmt.Fprintf(&b, "🛫 Salida: %s\n", clip(offer.OriginLeg))
	fmt.Fprintf(&b, "🛬 Llegada: %s\n", clip(offer.DestinationLeg))
	fmt.Fprintf(&b, "⏱ Duración: %s\n", clip(offer.Duration))
	fmt.Fprintf(&b, "🔁 Escalas: %s\n", clip(offer.Stops))
	fmt.Fprintf(&b, "💺 Asientos: %s\n", clip(offer.SeatsAvailable))

	b.WriteString("💰 Precios:\n")
	if len(offer.PriceOptions) == 0 {
		fmt.Fprintf(&b, "  • %s\n", models.NotAvailable)
	}
	options := offer.PriceOptions
	if len(options) > maxPriceOptions {
		options = options[:maxPriceOptions]
	}
	for _, option := range options {
		if option.HasCash() {
			fmt.Fprintf(&b, "  • %s + %s\n", clip(option.Points), clip(option.CashSupplement))
		} else {
			fmt.Fprintf(&b, "  • %s\n", clip(option.Points))
		}
	}
	if hidden := len(offer.PriceOptions) - len(options); hidden > 0 {
		fmt.Fprintf(&b, "  • … y %d más\n", hidden)
	}

	b.WriteString(separator)
	return b.String()
}

// clip escapes s and cuts it to maxFieldRunes, never inside an entity
func clip(s string) string {
	escaped := Escape(s)
	if utf8.RuneCountInString(escaped) <= maxFieldRunes {
		return escaped
	}

	var b strings.Builder
	n := 0
	for _, r := range s {
		e := Escape(string(r))
		w := utf8.RuneCountInString(e)
		if n+w > maxFieldRunes-1 {
			break
		}
		b.WriteString(e)
		n += w
	}
	b.WriteString("…")
	return b.String()
}

// Chunk packs blocks greedily into chunks of at most limit characters.
// A block is never split; one larger than limit becomes a chunk of its own.
func Chunk(blocks []string, limit int) []string {
	var chunks []string
	var current strings.Builder
	size := 0

	for _, block := range blocks {
		n := utf8.RuneCountInString(block)
		if size > 0 && size+n > limit {
			chunks = append(chunks, current.String())
			current.Reset()
			size = 0
		}
		current.WriteString(block)
		size += n
	}

	if size > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// Escape makes free text safe to embed in an HTML chat message
func Escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeHTML, s)
}

func displayDate(date string) string {
	t, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return date
	}
	return t.Format("02/01/2006")
}
