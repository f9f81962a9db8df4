package checkout

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CheckoutInput is the storefront checkout request.
type CheckoutInput struct {
	Customer    CustomerInput `json:"customer" validate:"required"`
	Shipping    ShippingInput `json:"shipping" validate:"required"`
	Items       []ItemInput   `json:"items" validate:"required,min=1,max=50,dive"`
	PaymentMode string        `json:"payment_mode" validate:"omitempty,oneof=all pix boleto"`
}

type CustomerInput struct {
	Name     string  `json:"name" validate:"required,max=120"`
	Email    string  `json:"email" validate:"required,email,max=254"`
	Phone    string  `json:"phone" validate:"required,max=32"`
	Document *string `json:"document" validate:"omitempty,max=18"`
}

type ShippingInput struct {
	Street     string  `json:"street" validate:"required,max=160"`
	Number     string  `json:"number" validate:"required,max=16"`
	Complement *string `json:"complement" validate:"omitempty,max=80"`
	District   string  `json:"district" validate:"required,max=80"`
	City       string  `json:"city" validate:"required,max=80"`
	State      string  `json:"state" validate:"required,len=2"`
	Zip        string  `json:"zip" validate:"required,max=10"`
}

// ItemInput is one cart line. Price is what the storefront displayed; it is
// only compared against the live price, never charged.
type ItemInput struct {
	ProductID uuid.UUID        `json:"product_id" validate:"required"`
	Quantity  int              `json:"quantity" validate:"required,min=1,max=999"`
	Price     *decimal.Decimal `json:"price,omitempty"`
}

// CheckoutResult is returned once the order exists and the gateway
// preference was created.
type CheckoutResult struct {
	OrderID      uuid.UUID       `json:"order_id"`
	InitPoint    string          `json:"init_point"`
	PreferenceID string          `json:"preference_id"`
	Total        decimal.Decimal `json:"total"`
}

type line struct {
	productID   uuid.UUID
	quantity    int
	clientPrice *decimal.Decimal
}

// mergeLines folds repeated products into one line, keeping first-seen order.
func mergeLines(items []ItemInput) []line {
	index := make(map[uuid.UUID]int, len(items))
	out := make([]line, 0, len(items))
	for _, item := range items {
		if i, ok := index[item.ProductID]; ok {
			out[i].quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(out)
		out = append(out, line{productID: item.ProductID, quantity: item.Quantity, clientPrice: item.Price})
	}
	return out
}

func optionalString(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
