package receipt

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/civil-registry-booking/internal/appointment"
)

func sampleReceipt() Receipt {
	return Receipt{
		HolderName:    "Ana López",
		NationalID:    "ABCD123456HVZLNN09",
		ProcedureType: appointment.ProcedureMarriage,
		Date:          "2025-06-10",
		Time:          "10:00",
	}
}

func TestRenderReceipt(t *testing.T) {
	r := NewRenderer(appointment.DefaultCatalog(), "")

	doc, err := r.Receipt(sampleReceipt())
	require.NoError(t, err)

	assert.Equal(t, "cita_registro_civil_ABCD123456HVZLNN09.pdf", doc.Filename)
	assert.Equal(t, ContentTypePDF, doc.ContentType)
	assert.True(t, bytes.HasPrefix(doc.Body, []byte("%PDF-")))
}

func TestRenderRequirements(t *testing.T) {
	r := NewRenderer(appointment.DefaultCatalog(), "")

	for key := range appointment.DefaultCatalog() {
		doc, err := r.Requirements(key)
		require.NoError(t, err, key)
		assert.Equal(t, "requisitos_"+key+".pdf", doc.Filename)
		assert.True(t, bytes.HasPrefix(doc.Body, []byte("%PDF-")))
	}

	_, err := r.Requirements("divorce")
	assert.ErrorIs(t, err, ErrUnknownProcedure)
}

func TestFromAppointment(t *testing.T) {
	at, err := appointment.ParseSlot("2025-06-10 10:00", nil)
	require.NoError(t, err)

	rc := FromAppointment(appointment.Appointment{
		HolderName:    "Ana López",
		NationalID:    "ABCD123456HVZLNN09",
		ProcedureType: appointment.ProcedureMarriage,
		ScheduledAt:   at,
	})
	assert.Equal(t, sampleReceipt(), rc)
}

func TestOutboxKeepsLatestPerProfile(t *testing.T) {
	o := NewOutbox(NewRenderer(appointment.DefaultCatalog(), ""))
	ctx := context.Background()

	_, ok := o.Latest("p1")
	assert.False(t, ok)

	require.NoError(t, o.Issue(ctx, "p1", sampleReceipt()))
	second := sampleReceipt()
	second.NationalID = "PELU800101HVZRRS01"
	require.NoError(t, o.Issue(ctx, "p1", second))

	doc, ok := o.Latest("p1")
	require.True(t, ok)
	assert.Equal(t, "cita_registro_civil_PELU800101HVZRRS01.pdf", doc.Filename)

	_, ok = o.Latest("p2")
	assert.False(t, ok)
}
