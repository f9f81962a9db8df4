package enums

import (
	"fmt"
	"strings"
)

// PaymentMode narrows the payment options shown on the gateway's hosted page.
type PaymentMode string

const (
	PaymentModeAll    PaymentMode = "all"
	PaymentModePix    PaymentMode = "pix"
	PaymentModeBoleto PaymentMode = "boleto"
)

// ParsePaymentMode accepts an empty value as PaymentModeAll.
func ParsePaymentMode(value string) (PaymentMode, error) {
	switch PaymentMode(strings.ToLower(strings.TrimSpace(value))) {
	case "", PaymentModeAll:
		return PaymentModeAll, nil
	case PaymentModePix:
		return PaymentModePix, nil
	case PaymentModeBoleto:
		return PaymentModeBoleto, nil
	}
	return "", fmt.Errorf("invalid payment mode %q", value)
}
