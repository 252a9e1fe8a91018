package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"order-pipeline/internal/domain"
	"order-pipeline/internal/infra"
	"order-pipeline/internal/infra/email"
	"order-pipeline/internal/queue"
	"order-pipeline/internal/repository"
)

type MockOrderRepository struct {
	mock.Mock
}

type MockProductClient struct {
	mock.Mock
}

type MockAdminGateway struct {
	mock.Mock
}

type MockEnqueuer struct {
	mock.Mock
}

type MockEmailSender struct {
	mock.Mock
}

type MockPublisher struct {
	mock.Mock
}

type MockPaymentProcessor struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id uint64) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	args := m.Called(ctx, orderNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) FindMany(ctx context.Context, filter repository.OrderFilter, page, limit int) ([]domain.Order, int64, error) {
	args := m.Called(ctx, filter, page, limit)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]domain.Order), args.Get(1).(int64), args.Error(2)
}

func (m *MockProductClient) GetProductById(ctx context.Context, productId uint64) (*infra.ProductInfo, error) {
	args := m.Called(ctx, productId)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*infra.ProductInfo), args.Error(1)
}

func (m *MockProductClient) GetProductsBatch(ctx context.Context, ids []uint64) ([]infra.ProductInfo, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]infra.ProductInfo), args.Error(1)
}

func (m *MockAdminGateway) DeductInventoryForOrder(ctx context.Context, req infra.DeductInventoryRequest, idempotencyKey string) error {
	args := m.Called(ctx, req, idempotencyKey)
	return args.Error(0)
}

func (m *MockAdminGateway) SyncOrder(ctx context.Context, req infra.OrderSyncRequest, idempotencyKey string) error {
	args := m.Called(ctx, req, idempotencyKey)
	return args.Error(0)
}

func (m *MockAdminGateway) UpdateOrderStatus(ctx context.Context, orderNumber string, req infra.OrderStatusRequest, idempotencyKey string) error {
	args := m.Called(ctx, orderNumber, req, idempotencyKey)
	return args.Error(0)
}

func (m *MockAdminGateway) CancelOrder(ctx context.Context, orderNumber string, req infra.CancelOrderRequest, idempotencyKey string) error {
	args := m.Called(ctx, orderNumber, req, idempotencyKey)
	return args.Error(0)
}

func (m *MockAdminGateway) CreateProduct(ctx context.Context, form infra.ProductForm) (*infra.ProductInfo, error) {
	args := m.Called(ctx, form)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*infra.ProductInfo), args.Error(1)
}

func (m *MockAdminGateway) UpdateProduct(ctx context.Context, id uint64, form infra.ProductForm) (*infra.ProductInfo, error) {
	args := m.Called(ctx, id, form)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*infra.ProductInfo), args.Error(1)
}

func (m *MockEnqueuer) Enqueue(ctx context.Context, queueName, name string, payload any, opts queue.Options) (string, error) {
	args := m.Called(ctx, queueName, name, payload, opts)
	return args.String(0), args.Error(1)
}

func (m *MockEnqueuer) EnqueueUnique(ctx context.Context, queueName, name string, payload any, opts queue.Options) (string, bool, error) {
	args := m.Called(ctx, queueName, name, payload, opts)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockEmailSender) Send(ctx context.Context, to, subject, templateName string, data any) error {
	args := m.Called(ctx, to, subject, templateName, data)
	return args.Error(0)
}

func (m *MockPublisher) Publish(ctx context.Context, key string, msg infra.Envelope) error {
	args := m.Called(ctx, key, msg)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockPaymentProcessor) Capture(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

var (
	_ repository.OrderRepository     = (*MockOrderRepository)(nil)
	_ infra.ProductClientInterface   = (*MockProductClient)(nil)
	_ infra.InventoryClientInterface = (*MockAdminGateway)(nil)
	_ infra.OrderSyncClientInterface = (*MockAdminGateway)(nil)
	_ infra.ProductWriterInterface   = (*MockAdminGateway)(nil)
	_ queue.Enqueuer                 = (*MockEnqueuer)(nil)
	_ infra.MessagePublisher         = (*MockPublisher)(nil)
	_ email.Sender                   = (*MockEmailSender)(nil)
)
