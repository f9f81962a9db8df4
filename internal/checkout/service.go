package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tech4loop/marketplace-backend/internal/coverage"
	"github.com/tech4loop/marketplace-backend/internal/holds"
	"github.com/tech4loop/marketplace-backend/internal/orders"
	product "github.com/tech4loop/marketplace-backend/internal/products"
	"github.com/tech4loop/marketplace-backend/internal/profiles"
	"github.com/tech4loop/marketplace-backend/pkg/config"
	"github.com/tech4loop/marketplace-backend/pkg/db/models"
	"github.com/tech4loop/marketplace-backend/pkg/enums"
	pkgerrors "github.com/tech4loop/marketplace-backend/pkg/errors"
	"github.com/tech4loop/marketplace-backend/pkg/logger"
	"github.com/tech4loop/marketplace-backend/pkg/mercadopago"
	"github.com/tech4loop/marketplace-backend/pkg/metrics"
	"github.com/tech4loop/marketplace-backend/pkg/outbox"
	"github.com/tech4loop/marketplace-backend/pkg/outbox/payloads"
)

const (
	callbackPath = "/api/v1/checkout/callback"
	webhookPath  = "/api/v1/webhooks/payments"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type paymentGateway interface {
	CreatePreference(ctx context.Context, req mercadopago.PreferenceRequest) (*mercadopago.Preference, error)
	CheckoutURL(pref *mercadopago.Preference) string
}

type urlResolver interface {
	PublicURL(key string) string
}

// Service executes checkout orchestration.
type Service interface {
	Execute(ctx context.Context, input CheckoutInput) (*CheckoutResult, error)
}

type ServiceParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	Tx       txRunner
	Products *product.Repository
	Profiles *profiles.Repository
	Holds    *holds.Repository
	Orders   orders.Repository
	Outbox   outboxPublisher
	Gateway  paymentGateway
	Storage  urlResolver
	Metrics  *metrics.OrderMetrics
	Now      func() time.Time
}

type service struct {
	logg        *logger.Logger
	tx          txRunner
	products    *product.Repository
	profiles    *profiles.Repository
	holds       *holds.Repository
	orders      orders.Repository
	outbox      outboxPublisher
	gateway     paymentGateway
	storage     urlResolver
	metrics     *metrics.OrderMetrics
	now         func() time.Time
	holdTTL     time.Duration
	// deferredTTL applies to orders restricted to pix or boleto.
	deferredTTL time.Duration
	currency    string
	descriptor  string
	baseURL     string
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Config == nil:
		return nil, fmt.Errorf("config required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case params.Products == nil:
		return nil, fmt.Errorf("product repository required")
	case params.Profiles == nil:
		return nil, fmt.Errorf("profile repository required")
	case params.Holds == nil:
		return nil, fmt.Errorf("hold repository required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case params.Gateway == nil:
		return nil, fmt.Errorf("payment gateway required")
	case params.Storage == nil:
		return nil, fmt.Errorf("storage resolver required")
	}

	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	holdTTL := params.Config.Checkout.HoldTTL
	if holdTTL <= 0 {
		holdTTL = 30 * time.Minute
	}
	deferredTTL := params.Config.Checkout.DeferredHoldTTL
	if deferredTTL < holdTTL {
		deferredTTL = holdTTL
	}
	currency := strings.ToUpper(strings.TrimSpace(params.Config.Checkout.Currency))
	if currency == "" {
		currency = "BRL"
	}

	return &service{
		logg:        params.Logger,
		tx:          params.Tx,
		products:    params.Products,
		profiles:    params.Profiles,
		holds:       params.Holds,
		orders:      params.Orders,
		outbox:      params.Outbox,
		gateway:     params.Gateway,
		storage:     params.Storage,
		metrics:     params.Metrics,
		now:         now,
		holdTTL:     holdTTL,
		deferredTTL: deferredTTL,
		currency:    currency,
		descriptor:  params.Config.Gateway.StatementDescriptor,
		baseURL:     strings.TrimRight(params.Config.App.PublicBaseURL, "/"),
	}, nil
}

// placed is what the transactional phase hands to the gateway phase.
type placed struct {
	order    *models.Order
	products map[uuid.UUID]models.Product
	lines    []line
}

func (s *service) Execute(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	mode, err := enums.ParsePaymentMode(input.PaymentMode)
	if err != nil {
		s.metrics.IncCheckout("invalid")
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment mode")
	}
	lines := mergeLines(input.Items)
	if len(lines) == 0 {
		s.metrics.IncCheckout("invalid")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
	}
	for _, l := range lines {
		if l.productID == uuid.Nil || l.quantity < 1 {
			s.metrics.IncCheckout("invalid")
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "every item needs a product and a positive quantity")
		}
	}

	var result *placed
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var terr error
		result, terr = s.place(ctx, tx, input, lines, mode)
		return terr
	})
	if err != nil {
		s.metrics.IncCheckout(outcomeFor(err))
		return nil, err
	}

	ctx = s.logg.WithOrderID(ctx, result.order.ID.String())
	pref, err := s.gateway.CreatePreference(ctx, s.preferenceFor(input, result, mode))
	if err != nil {
		s.abandon(ctx, result.order.ID, err)
		s.metrics.IncCheckout("gateway_error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment gateway unavailable").
			WithDetails(map[string]any{"order_id": result.order.ID})
	}

	s.metrics.IncCheckout("created")
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"preference_id": pref.ID,
		"total":         result.order.TotalAmount.StringFixed(2),
	}), "checkout created")

	return &CheckoutResult{
		OrderID:      result.order.ID,
		InitPoint:    s.gateway.CheckoutURL(pref),
		PreferenceID: pref.ID,
		Total:        result.order.TotalAmount,
	}, nil
}

// place runs every check and write of a checkout inside tx. Any error rolls
// the whole checkout back.
func (s *service) place(ctx context.Context, tx *gorm.DB, input CheckoutInput, lines []line, mode enums.PaymentMode) (*placed, error) {
	ids := make([]uuid.UUID, len(lines))
	for i, l := range lines {
		ids[i] = l.productID
	}

	rows, err := s.products.WithTx(tx).FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.Product, len(rows))
	for _, p := range rows {
		byID[p.ID] = p
	}
	for _, l := range lines {
		p, ok := byID[l.productID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product not found").
				WithDetails(map[string]any{"product_id": l.productID})
		}
		if !p.IsActive() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s is not available", p.Name)).
				WithDetails(map[string]any{"product_id": l.productID})
		}
	}

	now := s.now()
	held, err := s.holds.WithTx(tx).ActiveQuantities(ctx, ids, now)
	if err != nil {
		return nil, err
	}
	for _, l := range lines {
		p := byID[l.productID]
		if !p.TracksStock() {
			continue
		}
		available := *p.Stock - held[p.ID]
		if available < l.quantity {
			if available < 0 {
				available = 0
			}
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock for "+p.Name).
				WithDetails(map[string]any{
					"product_id": p.ID,
					"requested":  l.quantity,
					"available":  available,
				})
		}
	}

	loc := coverage.Location{City: input.Shipping.City, State: input.Shipping.State}
	if err := s.checkRegions(ctx, tx, lines, byID, loc); err != nil {
		return nil, err
	}

	total := decimal.Zero
	items := make([]models.OrderItem, 0, len(lines))
	for _, l := range lines {
		p := byID[l.productID]
		if l.clientPrice != nil && !l.clientPrice.Equal(p.Price) {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"product_id":   p.ID.String(),
				"client_price": l.clientPrice.String(),
				"live_price":   p.Price.String(),
			}), "checkout price mismatch")
		}
		item := models.OrderItem{ProductID: p.ID, Quantity: l.quantity, PriceAtPurchase: p.Price}
		total = total.Add(item.LineTotal())
		items = append(items, item)
	}

	order := &models.Order{
		PartnerID:          byID[lines[0].productID].PartnerID,
		CustomerName:       strings.TrimSpace(input.Customer.Name),
		CustomerEmail:      strings.TrimSpace(input.Customer.Email),
		CustomerPhone:      strings.TrimSpace(input.Customer.Phone),
		CustomerDocument:   optionalString(input.Customer.Document),
		ShippingStreet:     strings.TrimSpace(input.Shipping.Street),
		ShippingNumber:     strings.TrimSpace(input.Shipping.Number),
		ShippingComplement: optionalString(input.Shipping.Complement),
		ShippingDistrict:   strings.TrimSpace(input.Shipping.District),
		ShippingCity:       strings.TrimSpace(input.Shipping.City),
		ShippingState:      strings.ToUpper(strings.TrimSpace(input.Shipping.State)),
		ShippingZip:        strings.TrimSpace(input.Shipping.Zip),
		TotalAmount:        total,
		Status:             enums.OrderStatusPending,
		PaymentStatus:      enums.PaymentStatusPending,
		PaymentMode:        mode,
	}
	ordersRepo := s.orders.WithTx(tx)
	if err := ordersRepo.CreateOrder(ctx, order); err != nil {
		return nil, err
	}
	for i := range items {
		items[i].OrderID = order.ID
	}
	if err := ordersRepo.CreateItems(ctx, items); err != nil {
		return nil, err
	}

	expiresAt := now.Add(s.holdTTLFor(mode))
	reservations := make([]models.StockHold, 0, len(lines))
	for _, l := range lines {
		if !byID[l.productID].TracksStock() {
			continue
		}
		reservations = append(reservations, models.StockHold{
			OrderID:   order.ID,
			ProductID: l.productID,
			Quantity:  l.quantity,
			Status:    enums.HoldStatusActive,
			ExpiresAt: expiresAt,
		})
	}
	if err := s.holds.WithTx(tx).Create(ctx, reservations); err != nil {
		return nil, err
	}

	event := payloads.OrderCreatedEvent{
		OrderID:       order.ID,
		PartnerID:     order.PartnerID,
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		CustomerPhone: order.CustomerPhone,
		City:          order.ShippingCity,
		State:         order.ShippingState,
		Total:         total,
		PaymentMode:   mode,
		HoldsExpireAt: expiresAt,
	}
	for _, item := range items {
		event.Items = append(event.Items, payloads.OrderLine{
			ProductID:       item.ProductID,
			Name:            byID[item.ProductID].Name,
			Quantity:        item.Quantity,
			PriceAtPurchase: item.PriceAtPurchase,
		})
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Source:        "checkout",
		Data:          event,
		OccurredAt:    now,
	}); err != nil {
		return nil, err
	}

	order.Items = items
	return &placed{order: order, products: byID, lines: lines}, nil
}

// checkRegions requires every distinct partner in the cart to serve loc.
// House products (no partner) ship nationwide.
func (s *service) checkRegions(ctx context.Context, tx *gorm.DB, lines []line, byID map[uuid.UUID]models.Product, loc coverage.Location) error {
	partnerIDs := make([]uuid.UUID, 0)
	seen := map[uuid.UUID]struct{}{}
	for _, l := range lines {
		partnerID := byID[l.productID].PartnerID
		if partnerID == nil {
			continue
		}
		if _, ok := seen[*partnerID]; ok {
			continue
		}
		seen[*partnerID] = struct{}{}
		partnerIDs = append(partnerIDs, *partnerID)
	}
	if len(partnerIDs) == 0 {
		return nil
	}

	found, err := s.profiles.WithTx(tx).FindByIDs(ctx, partnerIDs)
	if err != nil {
		return err
	}
	regions := make(map[uuid.UUID][]string, len(found))
	for _, p := range found {
		regions[p.ID] = p.ServiceRegions
	}
	for _, partnerID := range partnerIDs {
		serviceRegions, ok := regions[partnerID]
		if ok && coverage.Eligible(serviceRegions, loc) {
			continue
		}
		return pkgerrors.New(pkgerrors.CodeRegionNotServed, "partner does not deliver to this address").
			WithDetails(map[string]any{
				"partner_id": partnerID,
				"city":       loc.City,
				"state":      loc.State,
			})
	}
	return nil
}

func (s *service) preferenceFor(input CheckoutInput, p *placed, mode enums.PaymentMode) mercadopago.PreferenceRequest {
	items := make([]mercadopago.PreferenceItem, 0, len(p.order.Items))
	for _, item := range p.order.Items {
		prod := p.products[item.ProductID]
		items = append(items, mercadopago.PreferenceItem{
			ID:         prod.ID.String(),
			Title:      prod.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.PriceAtPurchase,
			CurrencyID: s.currency,
			PictureURL: s.storage.PublicURL(prod.PrimaryImage()),
		})
	}

	payer := &mercadopago.Payer{
		Name:  p.order.CustomerName,
		Email: p.order.CustomerEmail,
		Phone: p.order.CustomerPhone,
	}
	if p.order.CustomerDocument != nil {
		payer.DocumentType = "CPF"
		payer.DocumentNumber = digitsOnly(*p.order.CustomerDocument)
	}

	callback := s.baseURL + callbackPath
	return mercadopago.PreferenceRequest{
		Items:               items,
		Payer:               payer,
		BackURLs:            mercadopago.BackURLs{Success: callback, Failure: callback, Pending: callback},
		AutoReturn:          "approved",
		NotificationURL:     s.baseURL + webhookPath,
		ExternalReference:   p.order.ID.String(),
		StatementDescriptor: s.descriptor,
		ExcludedTypes:       excludedPaymentTypes(mode),
		IdempotencyKey:      "t4l-order-" + p.order.ID.String(),
	}
}

// abandon cancels an order whose preference could not be created and frees
// its holds. The row is kept so it shows up in audits.
func (s *service) abandon(ctx context.Context, orderID uuid.UUID, cause error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.holds.WithTx(tx).ReleaseByOrder(ctx, orderID); err != nil {
			return err
		}
		_, err := s.orders.WithTx(tx).CancelPending(ctx, []uuid.UUID{orderID})
		return err
	})
	if err != nil {
		s.logg.Error(ctx, "checkout cleanup after gateway failure failed", errors.Join(cause, err))
		return
	}
	s.logg.Error(ctx, "gateway preference failed; order cancelled", cause)
}

func (s *service) holdTTLFor(mode enums.PaymentMode) time.Duration {
	switch mode {
	case enums.PaymentModePix, enums.PaymentModeBoleto:
		return s.deferredTTL
	default:
		return s.holdTTL
	}
}

func excludedPaymentTypes(mode enums.PaymentMode) []string {
	switch mode {
	case enums.PaymentModePix:
		return []string{
			mercadopago.PaymentTypeTicket,
			mercadopago.PaymentTypeCreditCard,
			mercadopago.PaymentTypeDebitCard,
			mercadopago.PaymentTypeATM,
		}
	case enums.PaymentModeBoleto:
		return []string{
			mercadopago.PaymentTypeBankTransfer,
			mercadopago.PaymentTypeCreditCard,
			mercadopago.PaymentTypeDebitCard,
			mercadopago.PaymentTypeATM,
		}
	default:
		return nil
	}
}

func outcomeFor(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return "error"
	}
	switch typed.Code() {
	case pkgerrors.CodeInsufficientStock:
		return "insufficient_stock"
	case pkgerrors.CodeRegionNotServed:
		return "region_not_served"
	case pkgerrors.CodeValidation:
		return "invalid"
	default:
		return "error"
	}
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
