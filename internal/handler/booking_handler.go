package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/RaMarWilson1/bookbetter/internal/dto"
	"github.com/RaMarWilson1/bookbetter/internal/models"
	"github.com/RaMarWilson1/bookbetter/internal/service"
	appErrors "github.com/RaMarWilson1/bookbetter/pkg/errors"
	"github.com/RaMarWilson1/bookbetter/pkg/response"
)

// Idempotency headers.
const (
	IdempotencyKeyHeader      = "Idempotency-Key"
	IdempotentReplayedHeader  = "Idempotent-Replayed"
	manageTokenQueryParameter = "token"
)

type reservationService interface {
	Reserve(ctx context.Context, req models.ReservationRequest) (*models.Booking, error)
}

type bookingLifecycle interface {
	Get(ctx context.Context, id string, actor models.Actor) (*models.Booking, error)
	ListForTenant(ctx context.Context, tenantID string, query dto.ListBookingsQuery, actor models.Actor) ([]models.Booking, *models.Pagination, error)
	ListForClient(ctx context.Context, clientID string, query dto.ListBookingsQuery) ([]models.Booking, *models.Pagination, error)
	MarkConfirmed(ctx context.Context, id string, payment *models.PaymentStatus, actor models.Actor) (*models.Booking, error)
	MarkCancelled(ctx context.Context, id, reason string, actor models.Actor) (*models.Booking, error)
	MarkCompleted(ctx context.Context, id string, actor models.Actor) (*models.Booking, error)
	MarkNoShow(ctx context.Context, id string, actor models.Actor) (*models.Booking, error)
	UpdateInternalNotes(ctx context.Context, id string, req dto.UpdateNotesRequest, actor models.Actor) (*models.Booking, error)
}

type idempotencyGuard interface {
	Begin(ctx context.Context, scope, key, fingerprint string) (*service.IdempotentResponse, error)
	Complete(ctx context.Context, scope, key, fingerprint string, resp service.IdempotentResponse)
	Release(ctx context.Context, scope, key string)
}

type manageTokenParser interface {
	Parse(purpose, token string) (string, time.Time, error)
}

// BookingHandler exposes reservation and lifecycle endpoints.
type BookingHandler struct {
	reservations reservationService
	bookings     bookingLifecycle
	idempotency  idempotencyGuard
	links        manageTokenParser
}

// NewBookingHandler builds the handler. idempotency and links may be nil.
func NewBookingHandler(reservations reservationService, bookings bookingLifecycle, idempotency idempotencyGuard, links manageTokenParser) *BookingHandler {
	return &BookingHandler{reservations: reservations, bookings: bookings, idempotency: idempotency, links: links}
}

// Create godoc
// @Summary Reserve a slot
// @Description Creates a pending booking. A repeated Idempotency-Key with the same body replays the first response.
// @Tags Bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Client generated key"
// @Param payload body dto.CreateBookingRequest true "Reservation"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /bookings [post]
func (h *BookingHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	body, err := c.GetRawData()
	if err != nil {
		response.Error(c, badJSON(err, "unable to read request body"))
		return
	}

	ctx := c.Request.Context()
	key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
	fingerprint := service.Fingerprint(body)
	if h.idempotency != nil && key != "" {
		replay, err := h.idempotency.Begin(ctx, claims.UserID, key, fingerprint)
		if err != nil {
			response.Error(c, err)
			return
		}
		if replay != nil {
			c.Header(IdempotentReplayedHeader, "true")
			c.Data(replay.Status, "application/json; charset=utf-8", replay.Body)
			return
		}
	}
	release := func() {
		if h.idempotency != nil && key != "" {
			h.idempotency.Release(context.WithoutCancel(ctx), claims.UserID, key)
		}
	}

	var req dto.CreateBookingRequest
	if err := json.Unmarshal(body, &req); err != nil {
		release()
		response.Error(c, badJSON(err, "invalid booking payload"))
		return
	}
	booking, err := h.reservations.Reserve(ctx, models.ReservationRequest{
		TenantID:  req.TenantID,
		ServiceID: req.ServiceID,
		StaffID:   req.StaffID,
		StartUTC:  req.StartUTC,
		ClientID:  claims.UserID,
		ClientInfo: models.ClientInfo{
			Name:  req.ClientInfo.Name,
			Email: req.ClientInfo.Email,
			Phone: req.ClientInfo.Phone,
			Notes: req.ClientInfo.Notes,
		},
	})
	if err != nil {
		release()
		response.Error(c, err)
		return
	}

	payload, err := json.Marshal(response.Envelope{Data: booking})
	if err != nil {
		release()
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode booking"))
		return
	}
	if h.idempotency != nil && key != "" {
		h.idempotency.Complete(context.WithoutCancel(ctx), claims.UserID, key, fingerprint, service.IdempotentResponse{Status: http.StatusCreated, Body: payload})
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusCreated, "application/json; charset=utf-8", payload)
}

// Get godoc
// @Summary Get a booking
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Param token query string false "Manage link token"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /bookings/{id} [get]
func (h *BookingHandler) Get(c *gin.Context) {
	actor, err := h.actorFor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	booking, err := h.bookings.Get(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// ListMine godoc
// @Summary List the caller's bookings
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param status query string false "Comma separated statuses"
// @Param from query string false "From date"
// @Param to query string false "To date"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /me/bookings [get]
func (h *BookingHandler) ListMine(c *gin.Context) {
	var query dto.ListBookingsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, badJSON(err, "invalid list query"))
		return
	}
	actor := actorFromContext(c)
	items, pagination, err := h.bookings.ListForClient(c.Request.Context(), actor.UserID, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// ListTenant godoc
// @Summary List a tenant's bookings
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param tenantId path string true "Tenant ID"
// @Param status query string false "Comma separated statuses"
// @Param staffId query string false "Staff ID"
// @Param from query string false "From date"
// @Param to query string false "To date"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /tenants/{tenantId}/bookings [get]
func (h *BookingHandler) ListTenant(c *gin.Context) {
	var query dto.ListBookingsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, badJSON(err, "invalid list query"))
		return
	}
	items, pagination, err := h.bookings.ListForTenant(c.Request.Context(), c.Param("tenantId"), query, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Confirm godoc
// @Summary Confirm a pending booking
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings/{id}/confirm [post]
func (h *BookingHandler) Confirm(c *gin.Context) {
	h.respond(c)(h.bookings.MarkConfirmed(c.Request.Context(), c.Param("id"), nil, actorFromContext(c)))
}

// Cancel godoc
// @Summary Cancel a booking
// @Description Clients cancel their own bookings; guests use the manage link token.
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param token query string false "Manage link token"
// @Param payload body dto.CancelBookingRequest false "Reason"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings/{id}/cancel [post]
func (h *BookingHandler) Cancel(c *gin.Context) {
	actor, err := h.actorFor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.CancelBookingRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, badJSON(err, "invalid cancel payload"))
			return
		}
	}
	h.respond(c)(h.bookings.MarkCancelled(c.Request.Context(), c.Param("id"), req.Reason, actor))
}

// Complete godoc
// @Summary Mark a booking completed
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Router /bookings/{id}/complete [post]
func (h *BookingHandler) Complete(c *gin.Context) {
	h.respond(c)(h.bookings.MarkCompleted(c.Request.Context(), c.Param("id"), actorFromContext(c)))
}

// NoShow godoc
// @Summary Mark a booking as no-show
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Router /bookings/{id}/no-show [post]
func (h *BookingHandler) NoShow(c *gin.Context) {
	h.respond(c)(h.bookings.MarkNoShow(c.Request.Context(), c.Param("id"), actorFromContext(c)))
}

// UpdateNotes godoc
// @Summary Replace internal notes
// @Tags Bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Param payload body dto.UpdateNotesRequest true "Notes"
// @Success 200 {object} response.Envelope
// @Router /bookings/{id}/notes [patch]
func (h *BookingHandler) UpdateNotes(c *gin.Context) {
	var req dto.UpdateNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, badJSON(err, "invalid notes payload"))
		return
	}
	h.respond(c)(h.bookings.UpdateInternalNotes(c.Request.Context(), c.Param("id"), req, actorFromContext(c)))
}

func (h *BookingHandler) respond(c *gin.Context) func(*models.Booking, error) {
	return func(booking *models.Booking, err error) {
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, booking, nil)
	}
}

// actorFor prefers a manage link token over the session. A token is only
// valid for the booking it was issued for.
func (h *BookingHandler) actorFor(c *gin.Context) (models.Actor, error) {
	token := c.Query(manageTokenQueryParameter)
	if token == "" {
		if claimsFromContext(c) == nil {
			return models.Actor{}, appErrors.ErrUnauthorized
		}
		return actorFromContext(c), nil
	}
	if h.links == nil {
		return models.Actor{}, appErrors.Clone(appErrors.ErrUnauthorized, "manage links are disabled")
	}
	bookingID, _, err := h.links.Parse(service.ManageTokenPurpose, token)
	if err != nil {
		return models.Actor{}, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid manage token")
	}
	if bookingID != c.Param("id") {
		return models.Actor{}, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
	}
	return models.Actor{Source: service.SourceManageLink}, nil
}
