package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RaMarWilson1/bookbetter/internal/dto"
	"github.com/RaMarWilson1/bookbetter/internal/models"
	appErrors "github.com/RaMarWilson1/bookbetter/pkg/errors"
)

type agendaStub struct {
	rows     []dto.AgendaRow
	from, to time.Time
}

func (a *agendaStub) ListAgenda(ctx context.Context, tenantID string, from, to time.Time) ([]dto.AgendaRow, error) {
	a.from, a.to = from, to
	return a.rows, nil
}

func newExportFixture() (*ExportService, *agendaStub) {
	staffName := "Alice"
	agenda := &agendaStub{rows: []dto.AgendaRow{{
		BookingID:   "b-1",
		StartUTC:    mustUTC("2025-03-10T13:00:00Z"),
		EndUTC:      mustUTC("2025-03-10T13:30:00Z"),
		Status:      "confirmed",
		Payment:     "deposit",
		ServiceName: "Haircut",
		StaffName:   &staffName,
		ClientName:  "Ada Lovelace",
		ClientEmail: "ada@example.com",
	}}}
	members := memberStub{
		tenant:  &models.Tenant{ID: tenantFixtureID, BusinessName: "Fade Factory", Slug: "fade-factory", TimeZone: "America/New_York"},
		members: map[string]bool{proFixtureID: true},
	}
	return NewExportService(agenda, members, nil, nil, nil, nil), agenda
}

func TestAgendaCSVUsesTenantDay(t *testing.T) {
	svc, agenda := newExportFixture()

	file, err := svc.Agenda(context.Background(), tenantFixtureID, dto.AgendaQuery{Date: "2025-03-10"}, proActor)
	require.NoError(t, err)
	assert.Equal(t, "agenda_fade-factory_2025-03-10.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Equal(t, mustUTC("2025-03-10T04:00:00Z"), agenda.from)
	assert.Equal(t, mustUTC("2025-03-11T04:00:00Z"), agenda.to)
	assert.Equal(t,
		"Start,End,Service,Staff,Client,Email,Phone,Status,Payment\n09:00,09:30,Haircut,Alice,Ada Lovelace,ada@example.com,,confirmed,deposit\n",
		string(file.Payload))
}

func TestAgendaPDF(t *testing.T) {
	svc, _ := newExportFixture()

	file, err := svc.Agenda(context.Background(), tenantFixtureID, dto.AgendaQuery{Date: "2025-03-10", Format: "pdf"}, proActor)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Payload, []byte("%PDF")))
}

func TestAgendaRejections(t *testing.T) {
	svc, _ := newExportFixture()
	ctx := context.Background()

	_, err := svc.Agenda(ctx, tenantFixtureID, dto.AgendaQuery{Date: "2025-03-10"}, clientActor)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	stranger := models.Actor{UserID: "someone-else", Role: models.RolePro, Source: SourceAPI}
	_, err = svc.Agenda(ctx, tenantFixtureID, dto.AgendaQuery{Date: "2025-03-10"}, stranger)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Agenda(ctx, tenantFixtureID, dto.AgendaQuery{Date: "10/03/2025"}, proActor)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Agenda(ctx, tenantFixtureID, dto.AgendaQuery{Date: "2025-03-10", Format: "xlsx"}, proActor)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Agenda(ctx, "missing", dto.AgendaQuery{Date: "2025-03-10"}, proActor)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
