package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tech4loop/marketplace-backend/internal/holds"
	"github.com/tech4loop/marketplace-backend/internal/orders"
	"github.com/tech4loop/marketplace-backend/pkg/db/models"
	"github.com/tech4loop/marketplace-backend/pkg/enums"
	"github.com/tech4loop/marketplace-backend/pkg/logger"
	"github.com/tech4loop/marketplace-backend/pkg/outbox"
	"github.com/tech4loop/marketplace-backend/pkg/outbox/payloads"
)

const (
	holdExpiryBatchSize  = 500
	holdExpiryMaxBatches = 20
)

// StockHoldExpiryJobParams configure the hold expiry sweep.
type StockHoldExpiryJobParams struct {
	Logger       *logger.Logger
	DB           txRunner
	Outbox       outboxEmitter
	BatchSize    int
	HoldsFactory holdStoreFactory
	OrderFactory orderCancellerFactory
}

type expiredHoldStore interface {
	ListExpired(ctx context.Context, now time.Time, limit int) ([]models.StockHold, error)
	ReleaseExpired(ctx context.Context, ids []uuid.UUID) (int64, error)
	ReleaseByOrder(ctx context.Context, orderID uuid.UUID) (int64, error)
}

type pendingOrderCanceller interface {
	CancelPending(ctx context.Context, orderIDs []uuid.UUID) ([]uuid.UUID, error)
}

type holdStoreFactory func(tx *gorm.DB) expiredHoldStore

type orderCancellerFactory func(tx *gorm.DB) pendingOrderCanceller

func defaultHoldStore(tx *gorm.DB) expiredHoldStore {
	return holds.NewRepository(tx)
}

func defaultOrderCanceller(tx *gorm.DB) pendingOrderCanceller {
	return orders.NewRepository(tx)
}

// NewStockHoldExpiryJob builds the job that releases lapsed holds and
// cancels the pending orders that owned them.
func NewStockHoldExpiryJob(params StockHoldExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = holdExpiryBatchSize
	}
	holdsFactory := params.HoldsFactory
	if holdsFactory == nil {
		holdsFactory = defaultHoldStore
	}
	orderFactory := params.OrderFactory
	if orderFactory == nil {
		orderFactory = defaultOrderCanceller
	}
	return &stockHoldExpiryJob{
		logg:         params.Logger,
		db:           params.DB,
		outbox:       params.Outbox,
		batchSize:    batchSize,
		holdsFactory: holdsFactory,
		orderFactory: orderFactory,
		now:          time.Now,
	}, nil
}

type stockHoldExpiryJob struct {
	logg         *logger.Logger
	db           txRunner
	outbox       outboxEmitter
	batchSize    int
	holdsFactory holdStoreFactory
	orderFactory orderCancellerFactory
	now          func() time.Time
}

func (j *stockHoldExpiryJob) Name() string { return "stock_hold_expiry" }

func (j *stockHoldExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	var totalReleased int64
	var totalCancelled int
	for batch := 0; batch < holdExpiryMaxBatches; batch++ {
		released, cancelled, more, err := j.expireBatch(ctx, now)
		if err != nil {
			return fmt.Errorf("expire holds batch %d: %w", batch, err)
		}
		totalReleased += released
		totalCancelled += cancelled
		if !more {
			break
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"holds_released":   totalReleased,
		"orders_cancelled": totalCancelled,
	})
	j.logg.Info(logCtx, "stock hold expiry complete")
	return nil
}

// expireBatch releases one page of expired holds and cancels their pending
// orders in a single transaction. more reports whether the page was full.
func (j *stockHoldExpiryJob) expireBatch(ctx context.Context, now time.Time) (int64, int, bool, error) {
	var (
		released  int64
		cancelled []uuid.UUID
		more      bool
	)
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		holdStore := j.holdsFactory(tx)
		expired, err := holdStore.ListExpired(ctx, now, j.batchSize)
		if err != nil {
			return fmt.Errorf("list expired holds: %w", err)
		}
		if len(expired) == 0 {
			return nil
		}
		more = len(expired) == j.batchSize

		holdIDs := make([]uuid.UUID, 0, len(expired))
		orderIDs := make([]uuid.UUID, 0, len(expired))
		seen := make(map[uuid.UUID]struct{}, len(expired))
		for _, hold := range expired {
			holdIDs = append(holdIDs, hold.ID)
			if _, ok := seen[hold.OrderID]; ok {
				continue
			}
			seen[hold.OrderID] = struct{}{}
			orderIDs = append(orderIDs, hold.OrderID)
		}

		released, err = holdStore.ReleaseExpired(ctx, holdIDs)
		if err != nil {
			return fmt.Errorf("release expired holds: %w", err)
		}
		cancelled, err = j.orderFactory(tx).CancelPending(ctx, orderIDs)
		if err != nil {
			return fmt.Errorf("cancel pending orders: %w", err)
		}
		for _, orderID := range cancelled {
			// sibling holds of a cancelled order may carry a later expiry
			if _, err := holdStore.ReleaseByOrder(ctx, orderID); err != nil {
				return fmt.Errorf("release holds for order %s: %w", orderID, err)
			}
			event := outbox.DomainEvent{
				EventType:     enums.EventOrderExpired,
				AggregateType: enums.AggregateOrder,
				AggregateID:   orderID,
				Source:        "cron",
				Version:       1,
				OccurredAt:    now,
				Data: payloads.OrderExpiredEvent{
					OrderID:   orderID,
					ExpiredAt: now,
				},
			}
			if err := j.outbox.Emit(ctx, tx, event); err != nil {
				return fmt.Errorf("emit order expired: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, false, err
	}
	return released, len(cancelled), more, nil
}
