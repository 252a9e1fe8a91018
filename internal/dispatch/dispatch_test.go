package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"order-pipeline/internal/bus"
	"order-pipeline/internal/domain"
	"order-pipeline/internal/infra"
	"order-pipeline/internal/mocks"
	"order-pipeline/internal/processors"
	"order-pipeline/internal/queue"
)

func sampleOrder() domain.Order {
	return domain.Order{
		ID:            5,
		OrderNumber:   "ORD-5",
		Status:        domain.StatusProcessing,
		PaymentStatus: domain.PaymentPaid,
		Subtotal:      decimal.RequireFromString("100"),
		Tax:           decimal.RequireFromString("10"),
		Total:         decimal.RequireFromString("110"),
		ShippingAddr:  domain.Address{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"},
		Items: []domain.OrderItem{
			{ProductID: 1, ProductName: "Widget", Quantity: 2, Price: decimal.RequireFromString("50"), Subtotal: decimal.RequireFromString("100")},
		},
	}
}

func withKey(queueName, key string) queue.Options {
	return Policy(queueName, key)
}

func TestIdempotencyKeys(t *testing.T) {
	tracking := "TRK-1"
	empty := ""
	assert.Equal(t, "sync-order-ORD-1", SyncOrderKey("ORD-1"))
	assert.Equal(t, "update-order-status-ORD-1-shipped", UpdateOrderStatusKey("ORD-1", domain.StatusShipped, nil))
	assert.Equal(t, "update-order-status-ORD-1-shipped", UpdateOrderStatusKey("ORD-1", domain.StatusShipped, &empty))
	assert.Equal(t, "update-order-status-ORD-1-shipped-TRK-1", UpdateOrderStatusKey("ORD-1", domain.StatusShipped, &tracking))
	assert.Equal(t, "cancel-order-ORD-1", CancelOrderKey("ORD-1"))
	assert.Equal(t, "deduct-inventory-ORD-1", DeductInventoryKey("ORD-1"))
}

func TestPolicy(t *testing.T) {
	assert.Equal(t, 5, Policy(processors.QueueOrderSync, "").MaxAttempts)
	assert.Equal(t, 5, Policy(processors.QueueInventorySync, "").MaxAttempts)
	assert.Equal(t, 3, Policy(processors.QueueEmail, "").MaxAttempts)
	assert.Equal(t, queue.BackoffExponential, Policy(processors.QueueEmail, "").Backoff.Type)
	assert.Equal(t, "k", Policy(processors.QueueOrderSync, "k").IdempotencyKey)
}

func TestDispatcher_OrderCreated(t *testing.T) {
	enq := new(mocks.MockEnqueuer)
	enq.On("EnqueueUnique", mock.Anything, processors.QueueOrderSync, processors.JobSyncOrder,
		processors.SyncOrderPayload{OrderID: 5, OrderNumber: "ORD-5"},
		withKey(processors.QueueOrderSync, "sync-order-ORD-5")).Return("job-1", true, nil)

	d := NewDispatcher(enq, zap.NewNop())
	require.NoError(t, d.OnOrderCreated(context.Background(), domain.OrderCreatedEvent{Order: sampleOrder()}))
	enq.AssertExpectations(t)
}

func TestDispatcher_PaymentConfirmedFansOut(t *testing.T) {
	enq := new(mocks.MockEnqueuer)
	enq.On("EnqueueUnique", mock.Anything, processors.QueueInventorySync, processors.JobDeductInventory,
		processors.DeductInventoryPayload{OrderNumber: "ORD-5", Items: []processors.InventoryLine{{ProductID: 1, Quantity: 2}}},
		withKey(processors.QueueInventorySync, "deduct-inventory-ORD-5")).Return("job-1", true, nil)
	enq.On("EnqueueUnique", mock.Anything, processors.QueueEmail, processors.JobOrderConfirmation,
		mock.MatchedBy(func(p processors.OrderConfirmationPayload) bool {
			return p.To == "ada@example.com" && p.CustomerName == "Ada Lovelace" && len(p.Items) == 1 && p.Total.Equal(decimal.NewFromInt(110))
		}),
		withKey(processors.QueueEmail, "")).Return("job-2", true, nil)
	paid := "paid"
	enq.On("EnqueueUnique", mock.Anything, processors.QueueOrderSync, processors.JobUpdateOrderStatus,
		processors.UpdateOrderStatusPayload{OrderNumber: "ORD-5", Status: "processing", PaymentStatus: &paid},
		withKey(processors.QueueOrderSync, "update-order-status-ORD-5-processing")).Return("job-3", true, nil)

	d := NewDispatcher(enq, zap.NewNop())
	require.NoError(t, d.OnPaymentConfirmed(context.Background(), domain.PaymentConfirmedEvent{Order: sampleOrder()}))
	enq.AssertExpectations(t)
}

func TestDispatcher_StatusUpdatedAndCancelled(t *testing.T) {
	enq := new(mocks.MockEnqueuer)
	tracking := "TRK-2"
	enq.On("EnqueueUnique", mock.Anything, processors.QueueOrderSync, processors.JobUpdateOrderStatus,
		processors.UpdateOrderStatusPayload{OrderNumber: "ORD-5", Status: "shipped", TrackingNumber: &tracking},
		withKey(processors.QueueOrderSync, "update-order-status-ORD-5-shipped-TRK-2")).Return("job-1", true, nil)
	enq.On("EnqueueUnique", mock.Anything, processors.QueueOrderSync, processors.JobCancelOrder,
		processors.CancelOrderPayload{OrderNumber: "ORD-5", Reason: "fraud"},
		withKey(processors.QueueOrderSync, "cancel-order-ORD-5")).Return("job-2", true, nil)

	d := NewDispatcher(enq, zap.NewNop())
	require.NoError(t, d.OnOrderStatusUpdated(context.Background(), domain.OrderStatusUpdatedEvent{
		Order: sampleOrder(), OldStatus: domain.StatusProcessing, NewStatus: domain.StatusShipped, TrackingNumber: &tracking,
	}))
	require.NoError(t, d.OnOrderCancelled(context.Background(), domain.OrderCancelledEvent{Order: sampleOrder(), Reason: "fraud"}))
	enq.AssertExpectations(t)
}

func TestDispatcher_EnqueueFailureIsLoggedNotReturned(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	enq := new(mocks.MockEnqueuer)
	enq.On("EnqueueUnique", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", false, errors.New("dial tcp: connection refused"))

	eb := bus.NewEventBus(zap.New(core))
	NewDispatcher(enq, zap.New(core)).Subscribe(eb)

	healthy := false
	bus.On(eb, "after", func(ctx context.Context, e domain.PaymentConfirmedEvent) error {
		healthy = true
		return nil
	})

	eb.Publish(context.Background(), domain.PaymentConfirmedEvent{Order: sampleOrder()})

	assert.True(t, healthy)
	assert.Equal(t, 3, logs.FilterMessage("failed to enqueue job").Len())
	assert.Equal(t, 0, logs.FilterMessage("event subscriber failed").Len())
}

func TestDispatcher_RedeliveryCollapsesToOneJob(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	q := queue.NewRedisQueue(client, queue.RedisOptions{Prefix: "test"})

	core, logs := observer.New(zap.InfoLevel)
	eb := bus.NewEventBus(zap.NewNop())
	NewDispatcher(q, zap.New(core)).Subscribe(eb)

	evt := domain.PaymentConfirmedEvent{Order: sampleOrder(), OccurredAt: time.Now()}
	eb.Publish(context.Background(), evt)
	assert.Equal(t, 0, logs.FilterMessage("duplicate job ignored").Len())
	eb.Publish(context.Background(), evt)

	// deduct-inventory and update-order-status are keyed; email is not.
	assert.Equal(t, 2, logs.FilterMessage("duplicate job ignored").Len())

	inventory, err := q.Counts(context.Background(), processors.QueueInventorySync)
	require.NoError(t, err)
	assert.Equal(t, int64(1), inventory.Waiting)

	// Email jobs carry no key, so both deliveries are kept.
	emails, err := q.Counts(context.Background(), processors.QueueEmail)
	require.NoError(t, err)
	assert.Equal(t, int64(2), emails.Waiting)
}

func newMiniredisQueue(t *testing.T) *queue.RedisQueue {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return queue.NewRedisQueue(client, queue.RedisOptions{Prefix: "test"})
}

func TestDispatcher_EnqueuesAfterCallerHangsUp(t *testing.T) {
	q := newMiniredisQueue(t)
	core, logs := observer.New(zap.ErrorLevel)
	eb := bus.NewEventBus(zap.New(core))
	NewDispatcher(q, zap.New(core)).Subscribe(eb)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	eb.Publish(ctx, domain.PaymentConfirmedEvent{Order: sampleOrder()})

	assert.Equal(t, 0, logs.FilterMessage("failed to enqueue job").Len())
	for _, name := range []string{processors.QueueInventorySync, processors.QueueEmail, processors.QueueOrderSync} {
		counts, err := q.Counts(context.Background(), name)
		require.NoError(t, err)
		assert.Equal(t, int64(1), counts.Waiting, name)
	}
}

func TestProductIntake(t *testing.T) {
	enq := new(mocks.MockEnqueuer)
	id := uint64(4)
	image := &infra.Upload{Filename: "lamp.png", Data: []byte{0x89, 0x50}}
	enq.On("Enqueue", mock.Anything, processors.QueueProductCreation, processors.JobCreateProduct,
		processors.ProductUpsertPayload{Fields: map[string]any{"name": "Lamp"}, Image: image},
		withKey(processors.QueueProductCreation, "")).Return("job-1", nil)
	enq.On("Enqueue", mock.Anything, processors.QueueProductCreation, processors.JobUpdateProduct,
		processors.ProductUpsertPayload{ProductID: &id, Fields: map[string]any{"stock": "3"}},
		withKey(processors.QueueProductCreation, "")).Return("job-2", nil)

	intake := NewProductIntake(enq)
	jobID, err := intake.Create(context.Background(), map[string]any{"name": "Lamp"}, image)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)

	jobID, err = intake.Update(context.Background(), 4, map[string]any{"stock": "3"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "job-2", jobID)
	enq.AssertExpectations(t)
}

func TestRoutesHaveProcessors(t *testing.T) {
	reg := queue.NewRegistry()
	gw := new(mocks.MockAdminGateway)
	require.NoError(t, processors.Register(reg, processors.Deps{
		OrderSync: gw, Inventory: gw, Products: gw,
		Orders: new(mocks.MockOrderRepository),
		Email:  new(mocks.MockEmailSender),
		Logger: zap.NewNop(),
	}))
	assert.NoError(t, reg.Require(Routes()...))
}

func TestRelay(t *testing.T) {
	pub := new(mocks.MockPublisher)
	pub.On("Publish", mock.Anything, "ORD-5", mock.MatchedBy(func(m infra.Envelope) bool {
		_, ok := m.Data.(domain.OrderCancelledEvent)
		return m.Pattern == domain.EventOrderCancelled && m.ID != "" && ok
	})).Return(errors.New("channel closed"))

	core, logs := observer.New(zap.ErrorLevel)
	eb := bus.NewEventBus(zap.New(core))
	NewRelay(pub, time.Second, zap.New(core)).Subscribe(eb)

	eb.Publish(context.Background(), domain.OrderCancelledEvent{Order: sampleOrder(), Reason: "fraud"})

	pub.AssertExpectations(t)
	assert.Equal(t, 1, logs.FilterMessage("failed to relay event").Len())
}

// blockingPublisher holds every publish until its context ends.
type blockingPublisher struct {
	ctxErrAtCall error
	hasDeadline  bool
}

func (p *blockingPublisher) Publish(ctx context.Context, key string, msg infra.Envelope) error {
	p.ctxErrAtCall = ctx.Err()
	_, p.hasDeadline = ctx.Deadline()
	<-ctx.Done()
	return ctx.Err()
}

func (p *blockingPublisher) Close() error { return nil }

func TestRelay_SlowBrokerIsBounded(t *testing.T) {
	pub := &blockingPublisher{}
	core, logs := observer.New(zap.ErrorLevel)
	eb := bus.NewEventBus(zap.New(core))
	NewRelay(pub, 100*time.Millisecond, zap.New(core)).Subscribe(eb)

	start := time.Now()
	eb.Publish(context.Background(), domain.OrderCreatedEvent{Order: sampleOrder()})

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, pub.hasDeadline)
	assert.Equal(t, 1, logs.FilterMessage("failed to relay event").Len())
}

func TestRelay_IgnoresCallerCancellation(t *testing.T) {
	pub := new(mocks.MockPublisher)
	pub.On("Publish", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }), "ORD-5", mock.Anything).Return(nil)

	r := NewRelay(pub, time.Second, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, r.Forward(ctx, domain.PaymentConfirmedEvent{Order: sampleOrder()}))
	pub.AssertExpectations(t)
}
