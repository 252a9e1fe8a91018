package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"order-pipeline/internal/bus"
	"order-pipeline/internal/domain"
	"order-pipeline/internal/infra"
	"order-pipeline/internal/queue"
	"order-pipeline/internal/services"
)

type fakeIntake struct {
	fields    map[string]any
	image     *infra.Upload
	productID *uint64
}

func (f *fakeIntake) Create(ctx context.Context, fields map[string]any, image *infra.Upload) (string, error) {
	f.fields, f.image = fields, image
	return "job-create", nil
}

func (f *fakeIntake) Update(ctx context.Context, id uint64, fields map[string]any, image *infra.Upload) (string, error) {
	f.productID, f.fields, f.image = &id, fields, image
	return "job-update", nil
}

type fakeQueues struct{}

func (fakeQueues) Counts(ctx context.Context, q string) (queue.Counts, error) {
	return queue.Counts{Waiting: 3, Dead: 1}, nil
}

func (fakeQueues) DeadJobs(ctx context.Context, q string, limit int64) ([]queue.Job, error) {
	return []queue.Job{{ID: "dead-1", Queue: q, Name: "sync-order", State: queue.StateDead, LastError: "boom"}}, nil
}

func (fakeQueues) RetryDead(ctx context.Context, q, id string) error {
	if id != "dead-1" {
		return queue.ErrJobNotFound
	}
	return nil
}

type server struct {
	router   *gin.Engine
	commands *bus.Bus
	queries  *bus.Bus
	intake   *fakeIntake
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := &server{
		router:   gin.New(),
		commands: bus.New("command"),
		queries:  bus.New("query"),
		intake:   &fakeIntake{},
	}
	NewHandler(s.commands, s.queries, s.intake, fakeQueues{}, []string{"order-sync", "email"},
		prometheus.NewRegistry(), zap.NewNop()).RegisterRoutes(s.router)
	return s
}

func (s *server) do(method, path string, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

const createBody = `{
	"items": [{"productId": 1, "quantity": 2}],
	"shippingAddress": {"firstName":"Ada","lastName":"Lovelace","email":"ada@example.com","address1":"12 Analytical St","city":"London","postalCode":"N1","country":"UK"},
	"paymentDetails": {"method": "card"}
}`

func TestHandler_CreateOrder(t *testing.T) {
	s := newServer(t)
	var got services.CreateOrder
	require.NoError(t, bus.Register(s.commands, func(ctx context.Context, cmd services.CreateOrder) (*domain.Order, error) {
		got = cmd
		return &domain.Order{ID: 1, OrderNumber: "ORD-1"}, nil
	}))

	w := s.do(http.MethodPost, "/orders", createBody, map[string]string{UserIDHeader: "7"})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, uint64(7), *got.UserID)
	assert.Equal(t, "card", got.PaymentMethod)
	assert.Equal(t, []services.CreateOrderItem{{ProductID: 1, Quantity: 2}}, got.Items)
	assert.Nil(t, got.BillingAddress)
	assert.Contains(t, w.Body.String(), `"orderNumber":"ORD-1"`)
}

func TestHandler_CreateOrderBadRequests(t *testing.T) {
	s := newServer(t)
	require.NoError(t, bus.Register(s.commands, func(ctx context.Context, cmd services.CreateOrder) (*domain.Order, error) {
		t.Fatal("handler must not run")
		return nil, nil
	}))

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/orders", `{"items":[]}`, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/orders", createBody, map[string]string{UserIDHeader: "abc"}).Code)
}

func TestHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: order 1", domain.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: not yours", domain.ErrForbidden), http.StatusForbidden},
		{fmt.Errorf("%w: delivered", domain.ErrInvalidState), http.StatusConflict},
		{fmt.Errorf("%w: product 3 not found", domain.ErrOutOfStock), http.StatusConflict},
		{fmt.Errorf("%w: bad status", domain.ErrValidation), http.StatusBadRequest},
		{services.ErrPaymentDeclined, http.StatusPaymentRequired},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			s := newServer(t)
			require.NoError(t, bus.Register(s.commands, func(ctx context.Context, cmd services.CancelOrder) (*domain.Order, error) {
				return nil, tt.err
			}))
			w := s.do(http.MethodPost, "/orders/1/cancel", "", nil)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusInternalServerError {
				assert.NotContains(t, w.Body.String(), "db down")
			}
		})
	}
}

func TestHandler_CancelPassesReasonAndOwner(t *testing.T) {
	s := newServer(t)
	var got services.CancelOrder
	require.NoError(t, bus.Register(s.commands, func(ctx context.Context, cmd services.CancelOrder) (*domain.Order, error) {
		got = cmd
		return &domain.Order{ID: cmd.OrderID, Status: domain.StatusCancelled}, nil
	}))

	w := s.do(http.MethodPost, "/orders/12/cancel", `{"reason":"too slow"}`, map[string]string{UserIDHeader: "3"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uint64(12), got.OrderID)
	assert.Equal(t, uint64(3), *got.UserID)
	assert.Equal(t, "too slow", got.Reason)
}

func TestHandler_UpdateStatus(t *testing.T) {
	s := newServer(t)
	var got services.UpdateOrderStatus
	require.NoError(t, bus.Register(s.commands, func(ctx context.Context, cmd services.UpdateOrderStatus) (*domain.Order, error) {
		got = cmd
		return &domain.Order{ID: cmd.OrderID, Status: cmd.Status}, nil
	}))

	w := s.do(http.MethodPatch, "/orders/4/status", `{"status":"shipped","trackingNumber":"TRK-1","paymentStatus":"paid"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.StatusShipped, got.Status)
	assert.Equal(t, "TRK-1", *got.TrackingNumber)
	assert.Equal(t, domain.PaymentPaid, *got.PaymentStatus)
}

func TestHandler_ListOrders(t *testing.T) {
	s := newServer(t)
	var got services.GetOrders
	require.NoError(t, bus.Register(s.queries, func(ctx context.Context, q services.GetOrders) (*services.OrderPage, error) {
		got = q
		return &services.OrderPage{Orders: []domain.Order{}, Page: q.Page, Limit: q.Limit}, nil
	}))

	w := s.do(http.MethodGet, "/orders?status=pending&page=2&limit=5", "", map[string]string{UserIDHeader: "9"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.StatusPending, *got.Status)
	assert.Equal(t, 2, got.Page)
	assert.Equal(t, 5, got.Limit)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/orders?status=lost", "", nil).Code)
}

func TestHandler_CreateProductMultipart(t *testing.T) {
	s := newServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("name", "Desk Lamp"))
	require.NoError(t, mw.WriteField("is_active", "true"))
	part, err := mw.CreateFormFile("image", "lamp.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte("png-bytes"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, "/products/8", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var resp JobAcceptedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "job-update", resp.JobID)
	assert.Equal(t, uint64(8), *s.intake.productID)
	assert.Equal(t, "Desk Lamp", s.intake.fields["name"])
	assert.Equal(t, true, s.intake.fields["is_active"])
	require.NotNil(t, s.intake.image)
	assert.Equal(t, "lamp.png", s.intake.image.Filename)
	assert.Equal(t, []byte("png-bytes"), s.intake.image.Data)
}

func TestHandler_CreateProductJSON(t *testing.T) {
	s := newServer(t)
	w := s.do(http.MethodPost, "/products", `{"name":"Lamp","is_featured":false}`, nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, false, s.intake.fields["is_featured"])
	assert.Nil(t, s.intake.image)
}

func TestHandler_QueueAdmin(t *testing.T) {
	s := newServer(t)

	w := s.do(http.MethodGet, "/admin/queues/order-sync", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"waiting":3`)
	assert.Contains(t, w.Body.String(), `"dead-1"`)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/admin/queues/nope", "", nil).Code)
	assert.Equal(t, http.StatusAccepted, s.do(http.MethodPost, "/admin/queues/email/dead/dead-1/retry", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/admin/queues/email/dead/other/retry", "", nil).Code)
}

func TestHandler_HealthAndMetrics(t *testing.T) {
	s := newServer(t)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/metrics", "", nil).Code)
}
