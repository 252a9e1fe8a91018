package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"order-pipeline/internal/bus"
	"order-pipeline/internal/domain"
	"order-pipeline/internal/infra"
	"order-pipeline/internal/queue"
	"order-pipeline/internal/services"
)

// UserIDHeader carries the caller's user id. Authentication happens in
// front of this service.
const UserIDHeader = "X-User-ID"

const maxImageBytes = 10 << 20

type ProductIntake interface {
	Create(ctx context.Context, fields map[string]any, image *infra.Upload) (string, error)
	Update(ctx context.Context, productID uint64, fields map[string]any, image *infra.Upload) (string, error)
}

type QueueInspector interface {
	Counts(ctx context.Context, queue string) (queue.Counts, error)
	DeadJobs(ctx context.Context, queue string, limit int64) ([]queue.Job, error)
	RetryDead(ctx context.Context, queue, id string) error
}

type Handler struct {
	commands *bus.Bus
	queries  *bus.Bus
	products ProductIntake
	queues   QueueInspector
	known    map[string]struct{}
	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

func NewHandler(commands, queries *bus.Bus, products ProductIntake, queues QueueInspector, queueNames []string, gatherer prometheus.Gatherer, logger *zap.Logger) *Handler {
	known := make(map[string]struct{}, len(queueNames))
	for _, q := range queueNames {
		known[q] = struct{}{}
	}
	return &Handler{
		commands: commands,
		queries:  queries,
		products: products,
		queues:   queues,
		known:    known,
		gatherer: gatherer,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))

	orders := r.Group("/orders")
	orders.POST("", h.CreateOrder)
	orders.GET("", h.ListOrders)
	orders.GET("/:id", h.GetOrder)
	orders.POST("/:id/cancel", h.CancelOrder)
	orders.POST("/:id/confirm-payment", h.ConfirmPayment)
	orders.PATCH("/:id/status", h.UpdateStatus)

	r.POST("/products", h.CreateProduct)
	r.PUT("/products/:id", h.UpdateProduct)

	admin := r.Group("/admin/queues")
	admin.GET("/:queue", h.QueueStats)
	admin.POST("/:queue/dead/:id/retry", h.RetryDeadJob)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) CreateOrder(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cmd := services.CreateOrder{
		UserID:          userID,
		ShippingAddress: req.ShippingAddress.toDomain(),
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
	}
	if cmd.PaymentMethod == "" {
		cmd.PaymentMethod = req.PaymentDetails.Method
	}
	if req.BillingAddress != nil {
		billing := req.BillingAddress.toDomain()
		cmd.BillingAddress = &billing
	}
	for _, it := range req.Items {
		cmd.Items = append(cmd.Items, services.CreateOrderItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	order, err := bus.Execute[*domain.Order](c.Request.Context(), h.commands, cmd)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) ListOrders(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	var q ListOrdersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	query := services.GetOrders{UserID: userID, Page: q.Page, Limit: q.Limit}
	if q.Status != "" {
		status := domain.OrderStatus(q.Status)
		if !status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status " + q.Status})
			return
		}
		query.Status = &status
	}

	page, err := bus.Execute[*services.OrderPage](c.Request.Context(), h.queries, query)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) GetOrder(c *gin.Context) {
	id, userID, ok := h.orderTarget(c)
	if !ok {
		return
	}
	order, err := bus.Execute[*domain.Order](c.Request.Context(), h.queries, services.GetOrder{OrderID: id, UserID: userID})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) CancelOrder(c *gin.Context) {
	id, userID, ok := h.orderTarget(c)
	if !ok {
		return
	}
	var req CancelOrderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	order, err := bus.Execute[*domain.Order](c.Request.Context(), h.commands, services.CancelOrder{OrderID: id, UserID: userID, Reason: req.Reason})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) ConfirmPayment(c *gin.Context) {
	id, userID, ok := h.orderTarget(c)
	if !ok {
		return
	}
	order, err := bus.Execute[*domain.Order](c.Request.Context(), h.commands, services.ConfirmPayment{OrderID: id, UserID: userID})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := services.UpdateOrderStatus{
		OrderID:        id,
		Status:         domain.OrderStatus(req.Status),
		TrackingNumber: req.TrackingNumber,
	}
	if req.PaymentStatus != nil {
		ps := domain.PaymentStatus(*req.PaymentStatus)
		cmd.PaymentStatus = &ps
	}
	order, err := bus.Execute[*domain.Order](c.Request.Context(), h.commands, cmd)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) CreateProduct(c *gin.Context) {
	fields, image, ok := h.productForm(c)
	if !ok {
		return
	}
	jobID, err := h.products.Create(c.Request.Context(), fields, image)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, JobAcceptedResponse{JobID: jobID})
}

func (h *Handler) UpdateProduct(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	fields, image, ok := h.productForm(c)
	if !ok {
		return
	}
	jobID, err := h.products.Update(c.Request.Context(), id, fields, image)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, JobAcceptedResponse{JobID: jobID})
}

// productForm reads product fields from a JSON body or a multipart form.
// "true" and "false" form values are turned into booleans.
func (h *Handler) productForm(c *gin.Context) (map[string]any, *infra.Upload, bool) {
	if strings.HasPrefix(c.ContentType(), "application/json") {
		var fields map[string]any
		if err := c.ShouldBindJSON(&fields); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return nil, nil, false
		}
		return fields, nil, true
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected multipart form: " + err.Error()})
		return nil, nil, false
	}
	fields := make(map[string]any, len(form.Value))
	for k, vs := range form.Value {
		if len(vs) == 0 {
			continue
		}
		switch v := vs[0]; v {
		case "true":
			fields[k] = true
		case "false":
			fields[k] = false
		default:
			fields[k] = v
		}
	}

	files := form.File["image"]
	if len(files) == 0 {
		return fields, nil, true
	}
	fh := files[0]
	if fh.Size > maxImageBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
		return nil, nil, false
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, nil, false
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxImageBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, nil, false
	}
	return fields, &infra.Upload{Filename: fh.Filename, Data: data}, true
}

func (h *Handler) QueueStats(c *gin.Context) {
	name, ok := h.queueName(c)
	if !ok {
		return
	}
	limit := int64(20)
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	ctx := c.Request.Context()
	counts, err := h.queues.Counts(ctx, name)
	if err != nil {
		h.writeError(c, err)
		return
	}
	dead, err := h.queues.DeadJobs(ctx, name, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if dead == nil {
		dead = []queue.Job{}
	}
	c.JSON(http.StatusOK, gin.H{"queue": name, "counts": counts, "dead": dead})
}

func (h *Handler) RetryDeadJob(c *gin.Context) {
	name, ok := h.queueName(c)
	if !ok {
		return
	}
	if err := h.queues.RetryDead(c.Request.Context(), name, c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, JobAcceptedResponse{JobID: c.Param("id")})
}

func (h *Handler) queueName(c *gin.Context) (string, bool) {
	name := c.Param("queue")
	if _, ok := h.known[name]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown queue " + name})
		return "", false
	}
	return name, true
}

func (h *Handler) orderTarget(c *gin.Context) (uint64, *uint64, bool) {
	id, ok := parseID(c, "id")
	if !ok {
		return 0, nil, false
	}
	userID, ok := h.userID(c)
	return id, userID, ok
}

func (h *Handler) userID(c *gin.Context) (*uint64, bool) {
	raw := c.GetHeader(UserIDHeader)
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid %s header", UserIDHeader)})
		return nil, false
	}
	return &id, true
}

func parseID(c *gin.Context, param string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + param})
		return 0, false
	}
	return id, true
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, queue.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrOutOfStock), errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrPaymentDeclined):
		return http.StatusPaymentRequired
	}
	return http.StatusInternalServerError
}
