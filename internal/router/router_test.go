package router

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/booking-api/internal/config"
	bookingh "github.com/jwalitptl/booking-api/internal/handler/booking"
	"github.com/jwalitptl/booking-api/internal/handler/health"
	paymenth "github.com/jwalitptl/booking-api/internal/handler/payment"
	scheduleh "github.com/jwalitptl/booking-api/internal/handler/schedule"
	"github.com/jwalitptl/booking-api/internal/middleware"
	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository/memory"
	"github.com/jwalitptl/booking-api/internal/service/booking"
	"github.com/jwalitptl/booking-api/internal/service/idempotency"
	"github.com/jwalitptl/booking-api/internal/service/notification"
	"github.com/jwalitptl/booking-api/internal/service/schedule"
	"github.com/jwalitptl/booking-api/pkg/auth"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/metrics"
)

const webhookSecret = "whsec"

type apiEnv struct {
	engine     *gin.Engine
	store      *memory.Store
	jwt        auth.JWTService
	providerID uuid.UUID
	serviceID  uuid.UUID
	customerID uuid.UUID
	otherID    uuid.UUID
}

type envelope struct {
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Duplicate bool            `json:"duplicate"`
}

func newAPI(t *testing.T) *apiEnv {
	t.Helper()
	store := memory.NewStore()
	e := &apiEnv{
		store:      store,
		jwt:        auth.NewJWTService("test-secret", "booking-api"),
		providerID: uuid.New(),
		serviceID:  uuid.New(),
		customerID: uuid.New(),
		otherID:    uuid.New(),
	}
	providerUser := uuid.New()
	store.AddProvider(model.Provider{ID: e.providerID, UserID: &providerUser, BusinessName: "Glow Spa"})
	store.AddService(model.Service{ID: e.serviceID, ProviderID: e.providerID, Name: "Massage", Price: decimal.NewFromInt(800)})
	store.AddCustomer(model.Customer{ID: e.customerID, UserID: uuid.New(), FirstName: "Ana"})
	store.AddCustomer(model.Customer{ID: e.otherID, UserID: uuid.New(), FirstName: "Ben"})

	slots := schedule.NewStore(store.Schedules())
	require.NoError(t, slots.CreateSlot(context.Background(), &model.ScheduleSlot{
		ProviderID:  e.providerID,
		DayOfWeek:   model.Monday,
		StartTime:   model.NewTimeOfDay(10, 0),
		EndTime:     model.NewTimeOfDay(11, 0),
		IsAvailable: true,
	}))

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg, "test")
	guard := idempotency.NewGuard(store.Idempotency(), idempotency.Config{})
	emitter := notification.NewEmitter(store.Notifications(), store.Directory(), logger.Nop())
	svc := booking.NewService(store, guard, emitter, m, logger.Nop(), booking.Config{})

	authM := middleware.NewAuthMiddleware(e.jwt)
	r := NewRouter(
		authM,
		health.NewHandler(map[string]health.Pinger{"database": store}, reg),
		[]Handler{paymenth.NewHandler(svc, webhookSecret)},
		[]Handler{bookingh.NewHandler(svc, authM), scheduleh.NewHandler(slots, authM)},
		RouterConfig{
			Mode:           gin.TestMode,
			CORS:           config.CORSConfig{AllowedOrigins: []string{"*"}},
			RequestTimeout: 5 * time.Second,
			MetricsPath:    "/metrics",
			Registerer:     reg,
		},
	)
	r.Setup()
	e.engine = r.Engine()
	return e
}

func (e *apiEnv) token(t *testing.T, claims auth.Claims) string {
	t.Helper()
	if claims.UserID == uuid.Nil {
		claims.UserID = uuid.New()
	}
	token, err := e.jwt.GenerateAccessToken(claims, time.Hour)
	require.NoError(t, err)
	return token
}

func (e *apiEnv) customerToken(t *testing.T, id uuid.UUID) string {
	return e.token(t, auth.Claims{Role: auth.RoleCustomer, CustomerID: &id})
}

func (e *apiEnv) providerToken(t *testing.T) string {
	id := e.providerID
	return e.token(t, auth.Claims{Role: auth.RoleProvider, ProviderID: &id})
}

func (e *apiEnv) do(t *testing.T, method, path, token string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func (e *apiEnv) create(t *testing.T, token, key string, method string, full bool) (*httptest.ResponseRecorder, envelope) {
	headers := map[string]string{}
	if key != "" {
		headers[bookingh.HeaderIdempotencyKey] = key
	}
	return e.do(t, http.MethodPost, "/api/v1/bookings", token, gin.H{
		"service_id":     e.serviceID,
		"booking_date":   "2026-03-02",
		"booking_time":   "10:00",
		"payment_method": method,
		"full_payment":   full,
	}, headers)
}

type created struct {
	Booking     model.Booking     `json:"booking"`
	Transaction model.Transaction `json:"transaction"`
}

func TestCreateBooking_IdempotentAndConflicting(t *testing.T) {
	e := newAPI(t)
	token := e.customerToken(t, e.customerID)

	w, env := e.create(t, token, "key-1", "gcash", false)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var first created
	require.NoError(t, json.Unmarshal(env.Data, &first))
	assert.Equal(t, model.BookingStatusPending, first.Booking.Status)
	assert.Equal(t, e.customerID, first.Booking.CustomerID)
	assert.True(t, decimal.NewFromInt(400).Equal(first.Transaction.Amount))
	assert.Equal(t, model.TransactionStatusPartial, first.Transaction.Status)

	w, env = e.create(t, token, "key-1", "gcash", false)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, env.Duplicate)
	var again created
	require.NoError(t, json.Unmarshal(env.Data, &again))
	assert.Equal(t, first.Booking.ID, again.Booking.ID)

	w, env = e.create(t, e.customerToken(t, e.otherID), "", "cash", false)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "error", env.Status)
}

func TestCreateBooking_Validation(t *testing.T) {
	e := newAPI(t)
	token := e.customerToken(t, e.customerID)

	w, env := e.do(t, http.MethodPost, "/api/v1/bookings", token, gin.H{
		"service_id":   e.serviceID,
		"booking_date": "02/03/2026",
		"booking_time": "10:00",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Message, "booking_date")

	w, env = e.create(t, token, "", "paypal", false)
	require.Equal(t, http.StatusCreated, w.Code, "unknown methods book without a transaction")
	assert.NotContains(t, string(env.Data), `"transaction"`)

	w, _ = e.create(t, "", "", "cash", false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = e.create(t, e.providerToken(t), "", "cash", false)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestBookingAccessAndLifecycle(t *testing.T) {
	e := newAPI(t)
	owner := e.customerToken(t, e.customerID)
	provider := e.providerToken(t)

	w, env := e.create(t, owner, "", "cash", false)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var c created
	require.NoError(t, json.Unmarshal(env.Data, &c))
	path := "/api/v1/bookings/" + c.Booking.ID.String()

	w, _ = e.do(t, http.MethodGet, path, owner, nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = e.do(t, http.MethodGet, path, e.customerToken(t, e.otherID), nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = e.do(t, http.MethodGet, "/api/v1/bookings/"+uuid.NewString(), owner, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = e.do(t, http.MethodGet, "/api/v1/bookings/not-a-uuid", owner, nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = e.do(t, http.MethodGet, "/api/v1/bookings/mine", owner, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mine []model.Booking
	require.NoError(t, json.Unmarshal(env.Data, &mine))
	assert.Len(t, mine, 1)

	w, env = e.do(t, http.MethodGet, "/api/v1/bookings/provider", provider, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var theirs []model.Booking
	require.NoError(t, json.Unmarshal(env.Data, &theirs))
	assert.Len(t, theirs, 1)

	w, _ = e.do(t, http.MethodGet, "/api/v1/bookings", owner, nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code, "listing all bookings is admin only")

	w, _ = e.do(t, http.MethodPut, path+"/status", owner, gin.H{"status": "FINISHED"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = e.do(t, http.MethodPost, path+"/cash-payment/confirm", provider, nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var txn model.Transaction
	require.NoError(t, json.Unmarshal(env.Data, &txn))
	assert.Equal(t, model.TransactionStatusCompleted, txn.Status)

	w, env = e.do(t, http.MethodGet, path, owner, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var b model.Booking
	require.NoError(t, json.Unmarshal(env.Data, &b))
	assert.Equal(t, model.BookingStatusCompleted, b.Status)

	w, _ = e.do(t, http.MethodPut, path+"/status", owner, gin.H{"status": "CANCELLED"}, nil)
	assert.Equal(t, http.StatusConflict, w.Code, "completed bookings are terminal")

	w, env = e.do(t, http.MethodGet, "/api/v1/providers/"+e.providerID.String()+"/schedules?day=monday&available=true", owner, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var open []model.ScheduleSlot
	require.NoError(t, json.Unmarshal(env.Data, &open))
	assert.Len(t, open, 1, "completing the booking released the slot")

	admin := e.token(t, auth.Claims{Role: auth.RoleAdmin})
	w, _ = e.do(t, http.MethodDelete, path, admin, nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = e.do(t, http.MethodDelete, path, admin, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPaymentWebhook(t *testing.T) {
	e := newAPI(t)
	owner := e.customerToken(t, e.customerID)

	w, env := e.create(t, owner, "", "gcash", false)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var c created
	require.NoError(t, json.Unmarshal(env.Data, &c))

	body, err := json.Marshal(gin.H{"booking_id": c.Booking.ID, "amount": "800", "reference": "cs_test"})
	require.NoError(t, err)

	send := func(signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(paymenth.HeaderSignature, signature)
		w := httptest.NewRecorder()
		e.engine.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, send("deadbeef").Code)
	assert.Equal(t, http.StatusUnauthorized, send("").Code)

	good := "sha256=" + hex.EncodeToString(paymenth.Sign([]byte(webhookSecret), body))
	w = send(good)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	var txn model.Transaction
	require.NoError(t, json.Unmarshal(resp.Data, &txn))
	assert.Equal(t, model.TransactionStatusCompleted, txn.Status)
	assert.True(t, decimal.NewFromInt(800).Equal(txn.Amount))

	assert.Equal(t, http.StatusOK, send(good).Code, "replayed callbacks are acknowledged")
}

func TestHealthAndMetrics(t *testing.T) {
	e := newAPI(t)

	w, _ := e.do(t, http.MethodGet, "/health/live", "", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = e.do(t, http.MethodGet, "/health/ready", "", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = e.do(t, http.MethodGet, "/metrics", "", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "booking_api_requests_total")
}
