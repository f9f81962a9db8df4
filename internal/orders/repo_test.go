package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tech4loop/marketplace-backend/pkg/db/dbtest"
	"github.com/tech4loop/marketplace-backend/pkg/db/models"
	"github.com/tech4loop/marketplace-backend/pkg/enums"
	pkgerrors "github.com/tech4loop/marketplace-backend/pkg/errors"
)

func newOrder(total string) *models.Order {
	return &models.Order{
		CustomerName:     "Maria Silva",
		CustomerEmail:    "maria@example.com",
		CustomerPhone:    "+5569999999999",
		ShippingStreet:   "Rua das Flores",
		ShippingNumber:   "100",
		ShippingDistrict: "Centro",
		ShippingCity:     "Ji-Paraná",
		ShippingState:    "RO",
		ShippingZip:      "76900-000",
		TotalAmount:      decimal.RequireFromString(total),
		Status:           enums.OrderStatusPending,
		PaymentStatus:    enums.PaymentStatusPending,
		PaymentMode:      enums.PaymentModeAll,
	}
}

func seedProduct(t *testing.T, db *gorm.DB) uuid.UUID {
	t.Helper()
	stock := 5
	product := models.Product{
		Name:   "Notebook",
		Slug:   "notebook-" + uuid.NewString()[:8],
		Price:  decimal.RequireFromString("100.00"),
		Stock:  &stock,
		Status: enums.ProductStatusActive,
	}
	require.NoError(t, db.Create(&product).Error)
	return product.ID
}

func TestCreateAndFindOrderWithItems(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()
	productID := seedProduct(t, db)

	order := newOrder("200.00")
	require.NoError(t, repo.CreateOrder(ctx, order))
	require.NotEqual(t, uuid.Nil, order.ID)

	require.NoError(t, repo.CreateItems(ctx, []models.OrderItem{
		{OrderID: order.ID, ProductID: productID, Quantity: 2, PriceAtPurchase: decimal.RequireFromString("100.00")},
	}))

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, found.TotalAmount.Equal(decimal.RequireFromString("200")))
	require.Len(t, found.Items, 1)
	assert.Equal(t, 2, found.Items[0].Quantity)
	assert.True(t, found.Items[0].LineTotal().Equal(decimal.NewFromInt(200)))

	_, err = repo.FindByID(ctx, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestApplyPaymentStatusApprovesOnce(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := newOrder("100.00")
	require.NoError(t, repo.CreateOrder(ctx, order))

	update := PaymentUpdate{OrderID: order.ID, PaymentID: "123", Status: enums.PaymentStatusApproved}
	first, err := repo.ApplyPaymentStatus(ctx, update)
	require.NoError(t, err)
	assert.Equal(t, Transition{Found: true, Applied: true, Approved: true}, first)

	second, err := repo.ApplyPaymentStatus(ctx, update)
	require.NoError(t, err)
	assert.Equal(t, Transition{Found: true}, second)

	// a late rejection must not move an approved order back
	late, err := repo.ApplyPaymentStatus(ctx, PaymentUpdate{OrderID: order.ID, PaymentID: "999", Status: enums.PaymentStatusRejected})
	require.NoError(t, err)
	assert.False(t, late.Applied)

	stored, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusApproved, stored.Status)
	assert.Equal(t, enums.PaymentStatusApproved, stored.PaymentStatus)
	require.NotNil(t, stored.PaymentID)
	assert.Equal(t, "123", *stored.PaymentID)
}

func TestApplyPaymentStatusConcurrentDeliveriesApproveExactlyOnce(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := newOrder("100.00")
	require.NoError(t, repo.CreateOrder(ctx, order))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		approved int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr, err := repo.ApplyPaymentStatus(ctx, PaymentUpdate{OrderID: order.ID, PaymentID: "123", Status: enums.PaymentStatusApproved})
			if err != nil {
				t.Errorf("apply: %v", err)
				return
			}
			if tr.Approved {
				mu.Lock()
				approved++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, approved)
}

func TestApplyPaymentStatusStampsPaymentIDOnlyOnApproval(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := newOrder("100.00")
	require.NoError(t, repo.CreateOrder(ctx, order))

	_, err := repo.ApplyPaymentStatus(ctx, PaymentUpdate{OrderID: order.ID, PaymentID: "111", Status: enums.PaymentStatusInProcess})
	require.NoError(t, err)
	_, err = repo.ApplyPaymentStatus(ctx, PaymentUpdate{OrderID: order.ID, PaymentID: "222", Status: enums.PaymentStatusRejected})
	require.NoError(t, err)

	stored, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusRejected, stored.Status)
	assert.Nil(t, stored.PaymentID)

	// a retried payment on the same preference approves the order
	tr, err := repo.ApplyPaymentStatus(ctx, PaymentUpdate{OrderID: order.ID, PaymentID: "333", Status: enums.PaymentStatusApproved})
	require.NoError(t, err)
	assert.True(t, tr.Approved)

	tr, err = repo.ApplyPaymentStatus(ctx, PaymentUpdate{OrderID: order.ID, PaymentID: "444", Status: enums.PaymentStatusApproved})
	require.NoError(t, err)
	assert.False(t, tr.Applied)

	stored, err = repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PaymentID)
	assert.Equal(t, "333", *stored.PaymentID)
}

func TestApplyPaymentStatusNeverMovesBackwards(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()

	rejected := newOrder("100.00")
	require.NoError(t, repo.CreateOrder(ctx, rejected))
	_, err := repo.ApplyPaymentStatus(ctx, PaymentUpdate{OrderID: rejected.ID, PaymentID: "1", Status: enums.PaymentStatusRejected})
	require.NoError(t, err)

	tr, err := repo.ApplyPaymentStatus(ctx, PaymentUpdate{OrderID: rejected.ID, PaymentID: "1", Status: enums.PaymentStatusPending})
	require.NoError(t, err)
	assert.Equal(t, Transition{Found: true}, tr)

	stored, err := repo.FindByID(ctx, rejected.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusRejected, stored.Status)
	assert.Equal(t, enums.PaymentStatusRejected, stored.PaymentStatus)

	expired := newOrder("50.00")
	require.NoError(t, repo.CreateOrder(ctx, expired))
	_, err = repo.CancelPending(ctx, []uuid.UUID{expired.ID})
	require.NoError(t, err)

	tr, err = repo.ApplyPaymentStatus(ctx, PaymentUpdate{OrderID: expired.ID, PaymentID: "2", Status: enums.PaymentStatusInProcess})
	require.NoError(t, err)
	assert.False(t, tr.Applied, "a cancelled order is not revived by an in-flight payment")

	tr, err = repo.ApplyPaymentStatus(ctx, PaymentUpdate{OrderID: expired.ID, PaymentID: "2", Status: enums.PaymentStatusApproved})
	require.NoError(t, err)
	assert.True(t, tr.Approved, "a late approval is still honored")
}

func TestApplyPaymentStatusUnknownOrder(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	tr, err := repo.ApplyPaymentStatus(context.Background(), PaymentUpdate{OrderID: uuid.New(), PaymentID: "1", Status: enums.PaymentStatusApproved})
	require.NoError(t, err)
	assert.False(t, tr.Found)
}

func TestApplyCallbackStatusNeverDowngradesApproved(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := newOrder("100.00")
	require.NoError(t, repo.CreateOrder(ctx, order))

	tr, err := repo.ApplyCallbackStatus(ctx, order.ID, enums.PaymentStatusApproved)
	require.NoError(t, err)
	assert.True(t, tr.Applied)

	tr, err = repo.ApplyCallbackStatus(ctx, order.ID, enums.PaymentStatusRejected)
	require.NoError(t, err)
	assert.Equal(t, Transition{Found: true}, tr)

	stored, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusApproved, stored.PaymentStatus)
	// fulfillment status is owned by the webhook
	assert.Equal(t, enums.OrderStatusPending, stored.Status)
}

func TestApplyCallbackStatusNeverRegressesRejected(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := newOrder("100.00")
	require.NoError(t, repo.CreateOrder(ctx, order))

	tr, err := repo.ApplyCallbackStatus(ctx, order.ID, enums.PaymentStatusRejected)
	require.NoError(t, err)
	assert.True(t, tr.Applied)

	tr, err = repo.ApplyCallbackStatus(ctx, order.ID, enums.PaymentStatusPending)
	require.NoError(t, err)
	assert.Equal(t, Transition{Found: true}, tr)

	stored, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusRejected, stored.PaymentStatus)
}

func TestListApprovedBetween(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()

	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	inRange := newOrder("10.00")
	inRange.PaymentStatus = enums.PaymentStatusApproved
	inRange.CreatedAt = day.Add(23 * time.Hour)
	outOfRange := newOrder("20.00")
	outOfRange.PaymentStatus = enums.PaymentStatusApproved
	outOfRange.CreatedAt = day.Add(24 * time.Hour)
	notApproved := newOrder("30.00")
	notApproved.CreatedAt = day.Add(time.Hour)
	for _, o := range []*models.Order{inRange, outOfRange, notApproved} {
		require.NoError(t, repo.CreateOrder(ctx, o))
	}

	got, err := repo.ListApprovedBetween(ctx, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, inRange.ID, got[0].ID)
}

func TestCancelPendingSkipsPaidOrders(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()

	pending := newOrder("10.00")
	paid := newOrder("10.00")
	paid.Status = enums.OrderStatusApproved
	require.NoError(t, repo.CreateOrder(ctx, pending))
	require.NoError(t, repo.CreateOrder(ctx, paid))

	cancelled, err := repo.CancelPending(ctx, []uuid.UUID{pending.ID, paid.ID})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{pending.ID}, cancelled)

	stored, err := repo.FindByID(ctx, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusApproved, stored.Status)
}
