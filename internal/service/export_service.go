package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/RaMarWilson1/bookbetter/internal/calendar"
	"github.com/RaMarWilson1/bookbetter/internal/dto"
	"github.com/RaMarWilson1/bookbetter/internal/models"
	appErrors "github.com/RaMarWilson1/bookbetter/pkg/errors"
	"github.com/RaMarWilson1/bookbetter/pkg/export"
)

// Agenda formats.
const (
	AgendaFormatCSV = "csv"
	AgendaFormatPDF = "pdf"
)

type agendaReader interface {
	ListAgenda(ctx context.Context, tenantID string, from, to time.Time) ([]dto.AgendaRow, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportService renders a tenant's day agenda as CSV or PDF.
type ExportService struct {
	agenda    agendaReader
	members   membershipChecker
	csv       csvRenderer
	pdf       pdfRenderer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(agenda agendaReader, members membershipChecker, validate *validator.Validate, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{agenda: agenda, members: members, csv: csv, pdf: pdf, validator: validate, logger: logger}
}

var agendaColumns = []export.Column{
	{Key: "start", Label: "Start", Width: 1},
	{Key: "end", Label: "End", Width: 1},
	{Key: "service", Label: "Service", Width: 2},
	{Key: "staff", Label: "Staff", Width: 1.5},
	{Key: "client", Label: "Client", Width: 2},
	{Key: "email", Label: "Email", Width: 2.5},
	{Key: "phone", Label: "Phone", Width: 1.5},
	{Key: "status", Label: "Status", Width: 1.2},
	{Key: "payment", Label: "Payment", Width: 1.2},
}

// Agenda renders every booking of tenantID that starts on the requested
// local day. Only tenant members may export.
func (s *ExportService) Agenda(ctx context.Context, tenantID string, query dto.AgendaQuery, actor models.Actor) (*dto.AgendaFile, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, invalidPayload(err)
	}
	tenant, err := s.members.FindByID(ctx, tenantID)
	if err != nil {
		return nil, notFoundOr(err, "tenant not found", "failed to load tenant")
	}
	if err := requireTenantMember(ctx, s.members, tenant.ID, actor); err != nil {
		return nil, err
	}
	loc, err := tenant.Location()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "tenant time zone is invalid")
	}
	day, err := calendar.ParseDate(strings.TrimSpace(query.Date))
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
	}

	rows, err := s.agenda.ListAgenda(ctx, tenant.ID, day.StartIn(loc), day.AddDays(1).StartIn(loc))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load agenda")
	}
	dataset := export.Dataset{
		Title:    fmt.Sprintf("%s agenda", tenant.BusinessName),
		Subtitle: fmt.Sprintf("%s (%s)", day, loc),
		Columns:  agendaColumns,
		Rows:     make([]map[string]string, 0, len(rows)),
	}
	for _, row := range rows {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"start":   row.StartUTC.In(loc).Format("15:04"),
			"end":     row.EndUTC.In(loc).Format("15:04"),
			"service": row.ServiceName,
			"staff":   deref(row.StaffName),
			"client":  row.ClientName,
			"email":   row.ClientEmail,
			"phone":   deref(row.ClientPhone),
			"status":  row.Status,
			"payment": row.Payment,
		})
	}

	format := query.Format
	if format == "" {
		format = AgendaFormatCSV
	}
	var (
		payload     []byte
		contentType string
	)
	switch format {
	case AgendaFormatPDF:
		payload, err = s.pdf.Render(dataset)
		contentType = "application/pdf"
	default:
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv"
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render agenda")
	}

	s.logger.Debug("agenda exported", zap.String("tenant_id", tenant.ID), zap.String("date", day.String()), zap.Int("rows", len(rows)), zap.String("format", format))
	return &dto.AgendaFile{
		Filename:    fmt.Sprintf("agenda_%s_%s.%s", sanitizeFilename(tenant.Slug), day, format),
		ContentType: contentType,
		Payload:     payload,
	}, nil
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
