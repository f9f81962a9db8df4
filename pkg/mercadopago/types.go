package mercadopago

import (
	"time"

	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/mercadopago/sdk-go/pkg/preference"
	"github.com/shopspring/decimal"
)

// Payment type ids accepted in preference exclusions.
const (
	PaymentTypeTicket       = "ticket"
	PaymentTypeBankTransfer = "bank_transfer"
	PaymentTypeCreditCard   = "credit_card"
	PaymentTypeDebitCard    = "debit_card"
	PaymentTypeATM          = "atm"
)

// PreferenceRequest describes a hosted checkout preference.
type PreferenceRequest struct {
	Items               []PreferenceItem
	Payer               *Payer
	BackURLs            BackURLs
	AutoReturn          string
	NotificationURL     string
	ExternalReference   string
	StatementDescriptor string
	ExcludedTypes       []string
	// IdempotencyKey defaults to a random key when empty.
	IdempotencyKey string
}

type PreferenceItem struct {
	ID         string
	Title      string
	Quantity   int
	UnitPrice  decimal.Decimal
	CurrencyID string
	PictureURL string
}

type Payer struct {
	Name           string
	Email          string
	Phone          string
	DocumentType   string
	DocumentNumber string
}

type BackURLs struct {
	Success string `json:"success,omitempty"`
	Failure string `json:"failure,omitempty"`
	Pending string `json:"pending,omitempty"`
}

// Preference is the gateway's answer to a preference creation.
type Preference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

// Payment is the subset of a gateway payment the marketplace consumes.
type Payment struct {
	ID                 int64              `json:"id"`
	Status             string             `json:"status"`
	StatusDetail       string             `json:"status_detail"`
	ExternalReference  string             `json:"external_reference"`
	TransactionAmount  decimal.Decimal    `json:"transaction_amount"`
	CurrencyID         string             `json:"currency_id"`
	PaymentTypeID      string             `json:"payment_type_id"`
	FeeDetails         []FeeDetail        `json:"fee_details"`
	TransactionDetails TransactionDetails `json:"transaction_details"`
	MoneyReleaseDate   *time.Time         `json:"money_release_date"`
	DateApproved       *time.Time         `json:"date_approved"`
	DateCreated        *time.Time         `json:"date_created"`
}

type FeeDetail struct {
	Type     string          `json:"type"`
	FeePayer string          `json:"fee_payer"`
	Amount   decimal.Decimal `json:"amount"`
}

type TransactionDetails struct {
	NetReceivedAmount decimal.Decimal `json:"net_received_amount"`
	TotalPaidAmount   decimal.Decimal `json:"total_paid_amount"`
}

// FeeTotal sums every fee charged on the payment.
func (p Payment) FeeTotal() decimal.Decimal {
	total := decimal.Zero
	for _, fee := range p.FeeDetails {
		total = total.Add(fee.Amount)
	}
	return total
}

type apiErrorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Status  int    `json:"status"`
	Cause   []struct {
		Code        any    `json:"code"`
		Description string `json:"description"`
	} `json:"cause"`
}

func (r PreferenceRequest) sdkRequest() preference.Request {
	items := make([]preference.ItemRequest, len(r.Items))
	for i, item := range r.Items {
		items[i] = preference.ItemRequest{
			ID:         item.ID,
			Title:      item.Title,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice.Round(2).InexactFloat64(),
			CurrencyID: item.CurrencyID,
			PictureURL: item.PictureURL,
		}
	}

	out := preference.Request{
		Items: items,
		BackURLs: &preference.BackURLsRequest{
			Success: r.BackURLs.Success,
			Failure: r.BackURLs.Failure,
			Pending: r.BackURLs.Pending,
		},
		AutoReturn:          r.AutoReturn,
		NotificationURL:     r.NotificationURL,
		ExternalReference:   r.ExternalReference,
		StatementDescriptor: r.StatementDescriptor,
	}
	if r.Payer != nil {
		payer := &preference.PayerRequest{Name: r.Payer.Name, Email: r.Payer.Email}
		if r.Payer.Phone != "" {
			payer.Phone = &preference.PhoneRequest{Number: r.Payer.Phone}
		}
		if r.Payer.DocumentNumber != "" {
			docType := r.Payer.DocumentType
			if docType == "" {
				docType = "CPF"
			}
			payer.Identification = &preference.IdentificationRequest{Type: docType, Number: r.Payer.DocumentNumber}
		}
		out.Payer = payer
	}
	if len(r.ExcludedTypes) > 0 {
		excluded := make([]preference.ExcludedPaymentTypeRequest, len(r.ExcludedTypes))
		for i, id := range r.ExcludedTypes {
			excluded[i] = preference.ExcludedPaymentTypeRequest{ID: id}
		}
		out.PaymentMethods = &preference.PaymentMethodsRequest{ExcludedPaymentTypes: excluded}
	}
	return out
}

func paymentFromSDK(resp *payment.Response) *Payment {
	fees := make([]FeeDetail, len(resp.FeeDetails))
	for i, fee := range resp.FeeDetails {
		fees[i] = FeeDetail{
			Type:     fee.Type,
			FeePayer: fee.FeePayer,
			Amount:   decimal.NewFromFloat(fee.Amount),
		}
	}
	return &Payment{
		ID:                int64(resp.ID),
		Status:            resp.Status,
		StatusDetail:      resp.StatusDetail,
		ExternalReference: resp.ExternalReference,
		TransactionAmount: decimal.NewFromFloat(resp.TransactionAmount),
		CurrencyID:        resp.CurrencyID,
		PaymentTypeID:     resp.PaymentTypeID,
		FeeDetails:        fees,
		TransactionDetails: TransactionDetails{
			NetReceivedAmount: decimal.NewFromFloat(resp.TransactionDetails.NetReceivedAmount),
			TotalPaidAmount:   decimal.NewFromFloat(resp.TransactionDetails.TotalPaidAmount),
		},
		MoneyReleaseDate: timePtr(resp.MoneyReleaseDate),
		DateApproved:     timePtr(resp.DateApproved),
		DateCreated:      timePtr(resp.DateCreated),
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
