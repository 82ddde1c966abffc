// Package receipt renders the downloadable PDF documents of the booking
// site: the appointment receipt and the per procedure requirements sheet.
package receipt

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-pdf/fpdf"

	"github.com/hackgods/civil-registry-booking/internal/appointment"
)

const (
	ContentTypePDF = "application/pdf"
	DefaultOffice  = "Registro Civil de Nogales, Veracruz"
)

var ErrUnknownProcedure = errors.New("unknown procedure")

// Receipt is the data printed on an appointment receipt.
type Receipt struct {
	HolderName    string
	NationalID    string
	ProcedureType string
	Date          string
	Time          string
}

func FromAppointment(a appointment.Appointment) Receipt {
	return Receipt{
		HolderName:    a.HolderName,
		NationalID:    a.NationalID,
		ProcedureType: a.ProcedureType,
		Date:          a.Date(),
		Time:          a.Time(),
	}
}

type Document struct {
	Filename    string
	ContentType string
	Body        []byte
}

type Renderer struct {
	catalog appointment.Catalog
	office  string
}

func NewRenderer(catalog appointment.Catalog, office string) *Renderer {
	if office == "" {
		office = DefaultOffice
	}
	return &Renderer{catalog: catalog, office: office}
}

var instructions = []string{
	"Favor de presentarse 15 minutos antes de la hora de su cita.",
	"Presentar este comprobante impreso o en su dispositivo móvil.",
	"No olvide traer toda la documentación requerida en original y copia.",
}

func (r *Renderer) Receipt(rc Receipt) (Document, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Comprobante de Cita", true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 10, tr("Comprobante de Cita - Registro Civil"), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 16)
	pdf.CellFormat(0, 10, tr(r.office), "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, tr("Datos del Solicitante:"), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 8, tr("Nombre: "+rc.HolderName), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 8, tr("CURP: "+rc.NationalID), "", 1, "L", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, tr("Detalles de la Cita:"), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 8, tr("Trámite: "+r.catalog.Title(rc.ProcedureType)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 8, tr("Fecha: "+rc.Date), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 8, tr("Hora: "+rc.Time), "", 1, "L", false, 0, "")
	pdf.Ln(6)

	y := pdf.GetY()
	pdf.SetLineWidth(0.5)
	pdf.Line(20, y, 190, y)
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, tr("Instrucciones Importantes:"), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, line := range instructions {
		pdf.MultiCell(170, 7, tr("• "+line), "", "L", false)
	}

	body, err := output(pdf)
	if err != nil {
		return Document{}, err
	}
	return Document{
		Filename:    fmt.Sprintf("cita_registro_civil_%s.pdf", rc.NationalID),
		ContentType: ContentTypePDF,
		Body:        body,
	}, nil
}

// Requirements renders the sheet for one catalog procedure.
func (r *Renderer) Requirements(key string) (Document, error) {
	proc, ok := r.catalog.Get(key)
	if !ok {
		return Document{}, ErrUnknownProcedure
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetTitle("Requisitos para "+proc.Title, true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, tr(r.office), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 16)
	pdf.CellFormat(0, 10, tr("Requisitos para "+proc.Title), "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 12)
	for _, item := range proc.Requirements {
		pdf.MultiCell(180, 8, tr("• "+item), "", "L", false)
		pdf.Ln(2)
	}

	body, err := output(pdf)
	if err != nil {
		return Document{}, err
	}
	return Document{
		Filename:    fmt.Sprintf("requisitos_%s.pdf", key),
		ContentType: ContentTypePDF,
		Body:        body,
	}, nil
}

func output(pdf *fpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
