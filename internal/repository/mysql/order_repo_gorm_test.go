package mysql

import (
	"context"
	"fmt"
	"testing"
	"time"

	"order-pipeline/internal/domain"
	mmysql "order-pipeline/internal/infra/mysql"
	"order-pipeline/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	require.NoError(t, mmysql.Migrate(db))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	return db
}

func sampleOrder(number string, userID *uint64, createdAt time.Time) *domain.Order {
	price := decimal.RequireFromString("50")
	items := []domain.OrderItem{{
		ProductID:   1,
		ProductName: "Widget",
		ProductSKU:  "W-1",
		Quantity:    2,
		Price:       price,
		Subtotal:    domain.LineSubtotal(price, 2),
	}}
	o := &domain.Order{
		OrderNumber:   number,
		UserID:        userID,
		Status:        domain.StatusPending,
		PaymentStatus: domain.PaymentPending,
		ShippingAddr:  domain.Address{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", City: "London"},
		Items:         items,
		CreatedAt:     createdAt,
	}
	o.BillingAddr = o.ShippingAddr
	o.ApplyPricing(domain.PriceItems(items))
	return o
}

func TestOrderRepo_CreateAndFind(t *testing.T) {
	repo := NewOrderRepository(setupDB(t))
	ctx := context.Background()
	user := uint64(42)

	o := sampleOrder("ORD-1", &user, time.Now())
	require.NoError(t, repo.Create(ctx, o))
	assert.NotZero(t, o.ID)
	assert.Equal(t, o.ID, o.Items[0].OrderID)

	got, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ORD-1", got.OrderNumber)
	assert.Equal(t, user, *got.UserID)
	assert.True(t, decimal.NewFromInt(110).Equal(got.Total))
	assert.Equal(t, "London", got.BillingAddr.City)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Widget", got.Items[0].ProductName)
	assert.True(t, decimal.NewFromInt(100).Equal(got.Items[0].Subtotal))

	byNumber, err := repo.FindByOrderNumber(ctx, "ORD-1")
	require.NoError(t, err)
	require.NotNil(t, byNumber)
	assert.Equal(t, o.ID, byNumber.ID)
}

func TestOrderRepo_FindMissing(t *testing.T) {
	repo := NewOrderRepository(setupDB(t))

	got, err := repo.FindByID(context.Background(), 999)
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestOrderRepo_DuplicateOrderNumberRollsBack(t *testing.T) {
	db := setupDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, sampleOrder("ORD-dup", nil, time.Now())))
	assert.Error(t, repo.Create(ctx, sampleOrder("ORD-dup", nil, time.Now())))

	var items int64
	require.NoError(t, db.Model(&domain.OrderItem{}).Count(&items).Error)
	assert.Equal(t, int64(1), items)
}

func TestOrderRepo_Save(t *testing.T) {
	repo := NewOrderRepository(setupDB(t))
	ctx := context.Background()

	o := sampleOrder("ORD-2", nil, time.Now())
	require.NoError(t, repo.Create(ctx, o))

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, o.Cancel("customer request", now))
	require.NoError(t, repo.Save(ctx, o))

	got, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	require.NotNil(t, got.CancelledAt)
	assert.Contains(t, got.Notes, "customer request")
	assert.Len(t, got.Items, 1)
}

func TestOrderRepo_SoftDeletedOrdersAreHidden(t *testing.T) {
	db := setupDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	o := sampleOrder("ORD-3", nil, time.Now())
	require.NoError(t, repo.Create(ctx, o))
	require.NoError(t, db.Model(&domain.Order{}).Where("id = ?", o.ID).Update("deleted_at", time.Now()).Error)

	got, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, total, err := repo.FindMany(ctx, repository.OrderFilter{}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)

	all, total, err := repo.FindMany(ctx, repository.OrderFilter{IncludeDeleted: true}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.True(t, all[0].Deleted())
}

func TestOrderRepo_FindMany(t *testing.T) {
	repo := NewOrderRepository(setupDB(t))
	ctx := context.Background()
	alice, bob := uint64(1), uint64(2)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, sampleOrder(fmt.Sprintf("ORD-A%d", i), &alice, base.Add(time.Duration(i)*time.Hour))))
	}
	require.NoError(t, repo.Create(ctx, sampleOrder("ORD-B0", &bob, base)))

	page1, total, err := repo.FindMany(ctx, repository.OrderFilter{UserID: &alice}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page1, 2)
	assert.Equal(t, "ORD-A4", page1[0].OrderNumber)
	assert.Equal(t, "ORD-A3", page1[1].OrderNumber)
	assert.Len(t, page1[0].Items, 1)

	page3, _, err := repo.FindMany(ctx, repository.OrderFilter{UserID: &alice}, 3, 2)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Equal(t, "ORD-A0", page3[0].OrderNumber)

	cancelled := domain.StatusCancelled
	none, total, err := repo.FindMany(ctx, repository.OrderFilter{Status: &cancelled}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, none)
}
