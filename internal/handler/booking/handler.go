package booking

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/middleware"
	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/service/booking"
	"github.com/jwalitptl/booking-api/pkg/auth"
	"github.com/jwalitptl/booking-api/pkg/httputil"
)

const HeaderIdempotencyKey = "X-Idempotency-Key"

type Handler struct {
	service *booking.Service
	auth    *middleware.AuthMiddleware
}

func NewHandler(service *booking.Service, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{service: service, auth: auth}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	bookings := r.Group("/bookings")
	{
		bookings.POST("", h.auth.RequireRole(auth.RoleCustomer, auth.RoleAdmin), h.CreateBooking)
		bookings.GET("", h.auth.RequireRole(auth.RoleAdmin), h.ListBookings)
		bookings.GET("/mine", h.auth.RequireRole(auth.RoleCustomer), h.ListMyBookings)
		bookings.GET("/provider", h.auth.RequireRole(auth.RoleProvider), h.ListProviderBookings)
		bookings.GET("/:id", h.GetBooking)
		bookings.PUT("/:id", h.UpdateBooking)
		bookings.PUT("/:id/status", h.UpdateStatus)
		bookings.PUT("/:id/complete", h.auth.RequireRole(auth.RoleProvider, auth.RoleAdmin), h.CompleteBooking)
		bookings.DELETE("/:id", h.auth.RequireRole(auth.RoleAdmin), h.DeleteBooking)
		bookings.POST("/:id/cash-payment/confirm", h.auth.RequireRole(auth.RoleProvider, auth.RoleAdmin), h.ConfirmCashPayment)
		bookings.GET("/:id/transactions", h.ListTransactions)
	}
}

type createBookingResponse struct {
	Booking     *model.Booking     `json:"booking"`
	Transaction *model.Transaction `json:"transaction,omitempty"`
}

func (h *Handler) CreateBooking(c *gin.Context) {
	var req model.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithMessage(c, http.StatusBadRequest, middleware.DescribeValidation(err))
		return
	}

	principal, _ := middleware.Principal(c)
	customerID, ok := bookingCustomer(principal, req.CustomerID)
	if !ok {
		httputil.RespondWithMessage(c, http.StatusForbidden, "bookings can only be made for your own customer profile")
		return
	}

	date, err := model.ParseDate(req.BookingDate)
	if err != nil {
		httputil.RespondWithMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	at, err := model.ParseTimeOfDay(req.BookingTime)
	if err != nil {
		httputil.RespondWithMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.CreateBooking(c.Request.Context(), booking.CreateBookingInput{
		CustomerID:     customerID,
		ServiceID:      req.ServiceID,
		BookingDate:    date,
		BookingTime:    at,
		Note:           req.Note,
		PaymentMethod:  model.PaymentMethod(req.PaymentMethod),
		FullPayment:    req.FullPayment,
		IdempotencyKey: strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey)),
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	resp := createBookingResponse{Booking: result.Booking, Transaction: result.Transaction}
	if result.Duplicate {
		httputil.RespondWithDuplicate(c, resp)
		return
	}
	httputil.RespondWithStatus(c, http.StatusCreated, resp)
}

// bookingCustomer resolves whose booking is being created. Customers book for
// themselves; admins must name the customer.
func bookingCustomer(p *auth.Claims, requested *uuid.UUID) (uuid.UUID, bool) {
	if p == nil {
		return uuid.Nil, false
	}
	if p.Role == auth.RoleAdmin {
		if requested == nil {
			return uuid.Nil, true
		}
		return *requested, true
	}
	if p.CustomerID == nil {
		return uuid.Nil, false
	}
	if requested != nil && *requested != *p.CustomerID {
		return uuid.Nil, false
	}
	return *p.CustomerID, true
}

func (h *Handler) GetBooking(c *gin.Context) {
	b, ok := h.loadOwned(c)
	if !ok {
		return
	}
	httputil.RespondWithSuccess(c, b)
}

func (h *Handler) ListBookings(c *gin.Context) {
	filters := &model.BookingFilters{}

	if id := c.Query("customer_id"); id != "" {
		customerID, err := uuid.Parse(id)
		if err != nil {
			httputil.RespondWithMessage(c, http.StatusBadRequest, "invalid customer ID")
			return
		}
		filters.CustomerID = &customerID
	}

	if id := c.Query("provider_id"); id != "" {
		providerID, err := uuid.Parse(id)
		if err != nil {
			httputil.RespondWithMessage(c, http.StatusBadRequest, "invalid provider ID")
			return
		}
		filters.ProviderID = &providerID
	}

	if s := c.Query("status"); s != "" {
		status, err := model.ParseBookingStatus(s)
		if err != nil {
			httputil.RespondWithMessage(c, http.StatusBadRequest, err.Error())
			return
		}
		filters.Status = &status
	}

	bookings, err := h.service.ListBookings(c.Request.Context(), filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, bookings)
}

func (h *Handler) ListMyBookings(c *gin.Context) {
	principal, _ := middleware.Principal(c)
	if principal == nil || principal.CustomerID == nil {
		httputil.RespondWithMessage(c, http.StatusForbidden, "no customer profile for this user")
		return
	}

	bookings, err := h.service.ListCustomerBookings(c.Request.Context(), *principal.CustomerID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, bookings)
}

func (h *Handler) ListProviderBookings(c *gin.Context) {
	principal, _ := middleware.Principal(c)
	if principal == nil || principal.ProviderID == nil {
		httputil.RespondWithMessage(c, http.StatusForbidden, "no provider profile for this user")
		return
	}

	bookings, err := h.service.ListProviderBookings(c.Request.Context(), *principal.ProviderID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, bookings)
}

func (h *Handler) UpdateBooking(c *gin.Context) {
	b, ok := h.loadOwned(c)
	if !ok {
		return
	}

	var req model.UpdateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithMessage(c, http.StatusBadRequest, middleware.DescribeValidation(err))
		return
	}

	input := booking.UpdateBookingInput{
		Status:    req.Status,
		TotalCost: req.TotalCost,
		Note:      req.Note,
	}
	if req.BookingDate != nil {
		date, err := model.ParseDate(*req.BookingDate)
		if err != nil {
			httputil.RespondWithMessage(c, http.StatusBadRequest, err.Error())
			return
		}
		input.BookingDate = &date
	}
	if req.BookingTime != nil {
		at, err := model.ParseTimeOfDay(*req.BookingTime)
		if err != nil {
			httputil.RespondWithMessage(c, http.StatusBadRequest, err.Error())
			return
		}
		input.BookingTime = &at
	}

	updated, err := h.service.UpdateBooking(c.Request.Context(), b.ID, input)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, updated)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	b, ok := h.loadOwned(c)
	if !ok {
		return
	}

	var req model.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithMessage(c, http.StatusBadRequest, middleware.DescribeValidation(err))
		return
	}

	updated, err := h.service.UpdateStatus(c.Request.Context(), b.ID, req.Status)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, updated)
}

func (h *Handler) CompleteBooking(c *gin.Context) {
	b, ok := h.loadOwned(c)
	if !ok {
		return
	}

	updated, err := h.service.CompleteBooking(c.Request.Context(), b.ID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, updated)
}

func (h *Handler) DeleteBooking(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithMessage(c, http.StatusBadRequest, "invalid booking ID")
		return
	}

	deleted, err := h.service.DeleteBooking(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if !deleted {
		httputil.RespondWithMessage(c, http.StatusNotFound, "booking not found")
		return
	}
	c.JSON(http.StatusOK, httputil.Response{Status: "success", Message: "booking deleted"})
}

func (h *Handler) ConfirmCashPayment(c *gin.Context) {
	b, ok := h.loadOwned(c)
	if !ok {
		return
	}

	txn, err := h.service.ConfirmCashPayment(c.Request.Context(), b.ID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, txn)
}

func (h *Handler) ListTransactions(c *gin.Context) {
	b, ok := h.loadOwned(c)
	if !ok {
		return
	}

	txns, err := h.service.ListTransactions(c.Request.Context(), b.ID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, txns)
}

// loadOwned fetches the booking named by :id and checks that the principal
// is its customer, its provider or an admin. It writes the error response
// itself and reports false when the request should stop.
func (h *Handler) loadOwned(c *gin.Context) (*model.Booking, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithMessage(c, http.StatusBadRequest, "invalid booking ID")
		return nil, false
	}

	b, err := h.service.GetBooking(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return nil, false
	}

	principal, _ := middleware.Principal(c)
	if !canAccess(principal, b) {
		httputil.RespondWithMessage(c, http.StatusForbidden, "permission denied")
		return nil, false
	}
	return b, true
}

func canAccess(p *auth.Claims, b *model.Booking) bool {
	if p == nil {
		return false
	}
	switch p.Role {
	case auth.RoleAdmin:
		return true
	case auth.RoleCustomer:
		return p.CustomerID != nil && *p.CustomerID == b.CustomerID
	case auth.RoleProvider:
		return p.ProviderID != nil && *p.ProviderID == b.ProviderID
	default:
		return false
	}
}
