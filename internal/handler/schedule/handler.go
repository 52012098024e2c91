package schedule

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/middleware"
	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/service/schedule"
	"github.com/jwalitptl/booking-api/pkg/auth"
	"github.com/jwalitptl/booking-api/pkg/httputil"
)

type Handler struct {
	store *schedule.Store
	auth  *middleware.AuthMiddleware
}

func NewHandler(store *schedule.Store, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{store: store, auth: auth}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	schedules := r.Group("/providers/:id/schedules")
	{
		schedules.GET("", h.ListSlots)
		schedules.POST("", h.auth.RequireRole(auth.RoleProvider, auth.RoleAdmin), h.CreateSlot)
	}
}

type createSlotRequest struct {
	DayOfWeek string `json:"day_of_week" binding:"required,day_of_week"`
	StartTime string `json:"start_time" binding:"required,time_of_day"`
	EndTime   string `json:"end_time" binding:"required,time_of_day"`
}

// ListSlots returns a provider's weekly slots, optionally for one day.
// available=true limits the result to open slots and requires day.
func (h *Handler) ListSlots(c *gin.Context) {
	providerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithMessage(c, http.StatusBadRequest, "invalid provider ID")
		return
	}

	var day *model.DayOfWeek
	if d := c.Query("day"); d != "" {
		parsed, err := model.ParseDayOfWeek(d)
		if err != nil {
			httputil.RespondWithMessage(c, http.StatusBadRequest, err.Error())
			return
		}
		day = &parsed
	}

	onlyAvailable := false
	if v := c.Query("available"); v != "" {
		onlyAvailable, err = strconv.ParseBool(v)
		if err != nil {
			httputil.RespondWithMessage(c, http.StatusBadRequest, "available must be true or false")
			return
		}
	}

	var slots []*model.ScheduleSlot
	switch {
	case onlyAvailable && day == nil:
		httputil.RespondWithMessage(c, http.StatusBadRequest, "day is required when filtering by availability")
		return
	case onlyAvailable:
		slots, err = h.store.ListAvailable(c.Request.Context(), providerID, *day)
	default:
		slots, err = h.store.List(c.Request.Context(), providerID, day)
	}
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, slots)
}

func (h *Handler) CreateSlot(c *gin.Context) {
	providerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithMessage(c, http.StatusBadRequest, "invalid provider ID")
		return
	}

	principal, _ := middleware.Principal(c)
	if principal.Role != auth.RoleAdmin && (principal.ProviderID == nil || *principal.ProviderID != providerID) {
		httputil.RespondWithMessage(c, http.StatusForbidden, "permission denied")
		return
	}

	var req createSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithMessage(c, http.StatusBadRequest, middleware.DescribeValidation(err))
		return
	}

	// the binding tags have already checked these
	day, _ := model.ParseDayOfWeek(req.DayOfWeek)
	start, _ := model.ParseTimeOfDay(req.StartTime)
	end, _ := model.ParseTimeOfDay(req.EndTime)

	slot := &model.ScheduleSlot{
		ProviderID:  providerID,
		DayOfWeek:   day,
		StartTime:   start,
		EndTime:     end,
		IsAvailable: true,
	}
	if err := h.store.CreateSlot(c.Request.Context(), slot); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithStatus(c, http.StatusCreated, slot)
}
