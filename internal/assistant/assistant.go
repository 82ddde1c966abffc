// Package assistant answers visitor questions by keyword lookup and points
// the page at the matching procedure section when there is one.
package assistant

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/hackgods/civil-registry-booking/internal/appointment"
)

const (
	Greeting = "Hola 👋 ¿En qué puedo ayudarte? Puedes preguntar por 'acta', 'matrimonio', etc."
	fallback = "Lo siento, no entendí. Intenta con 'requisitos de matrimonio' o 'costos'."
)

type Reply struct {
	Text string `json:"text"`
	// Target is the procedure key the page should open, if any.
	Target string `json:"target,omitempty"`
}

type Entry struct {
	Name     string
	Keywords []string
	Response string
	Target   string
}

// Assistant matches entries in order; the first entry with a keyword
// contained in the question wins.
type Assistant struct {
	entries []Entry
}

func New(entries []Entry) *Assistant {
	folded := make([]Entry, len(entries))
	for i, e := range entries {
		kws := make([]string, len(e.Keywords))
		for j, kw := range e.Keywords {
			kws[j] = fold(kw)
		}
		e.Keywords = kws
		folded[i] = e
	}
	return &Assistant{entries: folded}
}

func (a *Assistant) Answer(question string) Reply {
	q := fold(question)
	if q == "" {
		return Reply{Text: fallback}
	}
	for _, e := range a.entries {
		for _, kw := range e.Keywords {
			if strings.Contains(q, kw) {
				return Reply{Text: e.Response, Target: e.Target}
			}
		}
	}
	return Reply{Text: fallback}
}

// fold lowercases and strips diacritics so "defunción" matches "defuncion".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

func DefaultEntries() []Entry {
	return []Entry{
		{
			Name:     "birth",
			Keywords: []string{"acta", "nacimiento", "registrar bebe"},
			Response: "Claro, te muestro la información para el Registro de Nacimiento.",
			Target:   appointment.ProcedureBirth,
		},
		{
			Name:     "marriage",
			Keywords: []string{"matrimonio", "casarse", "boda"},
			Response: "Perfecto, aquí tienes los detalles sobre el Matrimonio Civil.",
			Target:   appointment.ProcedureMarriage,
		},
		{
			Name:     "death",
			Keywords: []string{"defuncion", "fallecimiento"},
			Response: "Entendido, te presento los requisitos para el Acta de Defunción.",
			Target:   appointment.ProcedureDeath,
		},
		{
			Name:     "copies",
			Keywords: []string{"copia", "copias certificadas", "certificado"},
			Response: "Te redirijo a la sección de Copias Certificadas.",
			Target:   appointment.ProcedureCopies,
		},
		{
			Name:     "greeting",
			Keywords: []string{"hola", "buenos dias", "buenas tardes"},
			Response: "¡Hola! Soy el asistente virtual. Pregúntame sobre 'nacimiento', 'matrimonio' o 'copias'.",
		},
		{
			Name:     "hours",
			Keywords: []string{"horario", "abren", "cierran", "horas"},
			Response: "Atendemos de Lunes a Viernes de 9:00 AM a 3:00 PM, y Sábados de 9:00 AM a 1:00 PM.",
		},
		{
			Name:     "costs",
			Keywords: []string{"costo", "precio", "pago", "cuanto cuesta"},
			Response: "Los costos varían por trámite. El pago se realiza en la tesorería municipal. Te recomendamos consultar directamente en oficinas para el monto exacto.",
		},
		{
			Name:     "thanks",
			Keywords: []string{"gracias", "ok", "muy bien"},
			Response: "¡De nada! Estoy para servirte. 😊",
		},
	}
}
