package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/shehryarbajwa/smiles-flights/internal/extract"
	"github.com/shehryarbajwa/smiles-flights/internal/format"
	"github.com/shehryarbajwa/smiles-flights/internal/lock"
	"github.com/shehryarbajwa/smiles-flights/internal/search"
	"github.com/shehryarbajwa/smiles-flights/pkg/models"
)

// UsageMessage explains the command shape
const UsageMessage = "❌ Uso incorrecto.\n\n" +
	"✈️ Debe tener 3 partes: origen (Ezeiza: EZE), destino (Madrid: MAD) y fecha (DD-MM, DD/MM, DDMM o YYYY-MM-DD).\n\n" +
	"👉 EZE MAD 25-12"

const (
	invalidDateMessage = "❌ Fecha inválida.\n\n" +
		"📅 Usá DD-MM, DD/MM, DDMM o YYYY-MM-DD con un día que exista.\n\n" +
		"👉 EZE MAD 25-12"
	restrictedMessage = "🚫 La búsqueda por mes completo no está disponible.\n\n" +
		"📅 Indicá un día concreto, por ejemplo 👉 EZE MAD 25-12"
	busyMessage     = "⏳ Ya hay una búsqueda en curso. Probá de nuevo en unos minutos."
	deadlineMessage = "⌛ La búsqueda tardó demasiado y se canceló. Probá de nuevo más tarde."
)

// ProgressMessage acknowledges an accepted search before the scrape starts
func ProgressMessage(req *models.SearchRequest, url string) string {
	return fmt.Sprintf("✅ Nueva petición cargada:\n\n"+
		"✈️ Origen: %s\n✈️ Destino: %s\n✈️ Fecha: %s\n\n"+
		"🌐 URL: %s\n\n"+
		"⌛ Obteniendo resultados...",
		format.Escape(req.Origin), format.Escape(req.Destination), format.Escape(req.Date),
		format.Escape(url))
}

func noResultsMessage(req *models.SearchRequest) string {
	return fmt.Sprintf("🔍 No se encontraron vuelos de %s a %s para el %s.",
		format.Escape(req.Origin), format.Escape(req.Destination), format.Escape(req.Date))
}

// errorMessage turns any pipeline failure into the text shown to the user
func errorMessage(err error) string {
	switch {
	case errors.Is(err, lock.ErrBusy):
		return busyMessage
	case errors.Is(err, search.ErrInvalidArgumentCount):
		return UsageMessage
	case errors.Is(err, search.ErrRestrictedFeature):
		return restrictedMessage
	case errors.Is(err, search.ErrInvalidDateFormat):
		return invalidDateMessage
	case errors.Is(err, context.DeadlineExceeded):
		return deadlineMessage
	case errors.Is(err, extract.ErrExtraction):
		return "❌ No se pudieron obtener resultados: " + format.Escape(err.Error())
	default:
		return "❌ Error procesando el mensaje: " + format.Escape(err.Error())
	}
}
