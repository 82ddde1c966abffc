package appointment

import "sort"

// Procedure keys offered by the office.
const (
	ProcedureBirth    = "birth"
	ProcedureMarriage = "marriage"
	ProcedureDeath    = "death"
	ProcedureCopies   = "copies"
)

type Procedure struct {
	Key          string   `json:"key"`
	Title        string   `json:"title"`
	Requirements []string `json:"requirements"`
}

// Catalog is the closed set of procedures an appointment may name.
type Catalog map[string]Procedure

func (c Catalog) Has(key string) bool {
	_, ok := c[key]
	return ok
}

func (c Catalog) Get(key string) (Procedure, bool) {
	p, ok := c[key]
	return p, ok
}

// Title falls back to the key for procedures missing from the catalog.
func (c Catalog) Title(key string) string {
	if p, ok := c[key]; ok {
		return p.Title
	}
	return key
}

// Sorted lists procedures by key.
func (c Catalog) Sorted() []Procedure {
	out := make([]Procedure, 0, len(c))
	for _, p := range c {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func DefaultCatalog() Catalog {
	return Catalog{
		ProcedureBirth: {
			Key:   ProcedureBirth,
			Title: "Registro de Nacimiento",
			Requirements: []string{
				"Certificado de Nacimiento original (expedido por el hospital).",
				"Acta de Nacimiento de los padres.",
				"Identificación oficial vigente de los padres (INE, Pasaporte).",
				"Acta de Matrimonio (si aplica).",
				"Dos testigos mayores de edad con identificación oficial.",
			},
		},
		ProcedureMarriage: {
			Key:   ProcedureMarriage,
			Title: "Matrimonio Civil",
			Requirements: []string{
				"Solicitud de matrimonio debidamente llenada.",
				"Acta de nacimiento reciente de ambos contrayentes.",
				"Identificación oficial vigente de ambos.",
				"CURP de ambos contrayentes.",
				"Análisis clínicos prenupciales (con vigencia no mayor a 15 días).",
				"Constancia de soltería (si alguno es de otro estado).",
				"Dos testigos por cada contrayente con identificación oficial.",
			},
		},
		ProcedureDeath: {
			Key:   ProcedureDeath,
			Title: "Acta de Defunción",
			Requirements: []string{
				"Certificado Médico de Defunción en formato original.",
				"Identificación oficial del fallecido.",
				"Acta de nacimiento del fallecido.",
				"Identificación oficial del declarante (familiar o responsable).",
				"CURP del fallecido.",
			},
		},
		ProcedureCopies: {
			Key:   ProcedureCopies,
			Title: "Copias Certificadas",
			Requirements: []string{
				"Nombre completo de la persona registrada en el acta.",
				"Fecha exacta de nacimiento, matrimonio, etc.",
				"Lugar de registro (municipio, estado).",
				"CURP (si se tiene).",
				"Identificación oficial del solicitante.",
				"Comprobante de pago de derechos.",
			},
		},
	}
}
