package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/jwalitptl/booking-api/internal/middleware"
	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/service/booking"
	"github.com/jwalitptl/booking-api/pkg/httputil"
)

const HeaderSignature = "X-Webhook-Signature"

// Handler receives payment gateway callbacks.
type Handler struct {
	service *booking.Service
	secret  []byte
}

func NewHandler(service *booking.Service, webhookSecret string) *Handler {
	return &Handler{service: service, secret: []byte(webhookSecret)}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/payments/webhook", h.Webhook)
}

func (h *Handler) Webhook(c *gin.Context) {
	if len(h.secret) == 0 {
		httputil.RespondWithMessage(c, http.StatusServiceUnavailable, "payment webhook is not configured")
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		httputil.RespondWithMessage(c, http.StatusBadRequest, "failed to read request body")
		return
	}
	if !h.verify(body, c.GetHeader(HeaderSignature)) {
		httputil.RespondWithMessage(c, http.StatusUnauthorized, "invalid webhook signature")
		return
	}

	var p model.GatewayPayment
	if err := json.Unmarshal(body, &p); err != nil {
		httputil.RespondWithMessage(c, http.StatusBadRequest, middleware.DescribeValidation(err))
		return
	}
	if err := binding.Validator.ValidateStruct(&p); err != nil {
		httputil.RespondWithMessage(c, http.StatusBadRequest, middleware.DescribeValidation(err))
		return
	}

	txn, err := h.service.AcknowledgeGatewayPayment(c.Request.Context(), p)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, txn)
}

// verify checks a hex HMAC-SHA256 of the raw body. A "sha256=" prefix is
// accepted.
func (h *Handler) verify(body []byte, signature string) bool {
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	got, err := hex.DecodeString(signature)
	if err != nil || len(got) == 0 {
		return false
	}
	return hmac.Equal(got, Sign(h.secret, body))
}

// Sign returns the HMAC-SHA256 of body under secret.
func Sign(secret, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return mac.Sum(nil)
}
