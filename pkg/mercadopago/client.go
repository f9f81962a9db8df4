package mercadopago

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	mpconfig "github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/mperror"
	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/mercadopago/sdk-go/pkg/preference"

	"github.com/tech4loop/marketplace-backend/pkg/config"
	pkgerrors "github.com/tech4loop/marketplace-backend/pkg/errors"
	"github.com/tech4loop/marketplace-backend/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"

	defaultBaseURL = "https://api.mercadopago.com"
)

var (
	errAccessTokenRequired = errors.New("gateway access token is required")
	errInvalidEnv          = fmt.Errorf("gateway environment must be %q or %q", sandboxEnv, productionEnv)
	errLoggerRequired      = errors.New("gateway logger is required")
)

type preferenceAPI interface {
	Create(ctx context.Context, request preference.Request) (*preference.Response, error)
}

type paymentAPI interface {
	Get(ctx context.Context, id int) (*payment.Response, error)
}

// Client wraps the Mercado Pago SDK clients the marketplace uses with
// centralized logging, idempotency and error mapping.
type Client struct {
	preferences preferenceAPI
	payments    paymentAPI
	environment string
	logger      *logger.Logger
}

type options struct {
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*options)

// WithHTTPClient replaces the HTTP client handed to the SDK.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		if hc != nil {
			o.httpClient = hc
		}
	}
}

// NewClient initializes the SDK once with the configured credentials and env.
func NewClient(ctx context.Context, cfg config.GatewayConfig, logg *logger.Logger, opts ...Option) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	accessToken := strings.TrimSpace(cfg.AccessToken)
	if accessToken == "" {
		return nil, errAccessTokenRequired
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	target, err := url.ParseRequestURI(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid gateway base url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	o := options{httpClient: &http.Client{Timeout: timeout}}
	for _, opt := range opts {
		opt(&o)
	}

	sdkCfg, err := mpconfig.New(accessToken, mpconfig.WithHTTPClient(routedClient(o.httpClient, target)))
	if err != nil {
		return nil, fmt.Errorf("configure gateway sdk: %w", err)
	}

	logg.Info(logg.WithField(ctx, "gateway_env", env), "gateway client initialized")
	return &Client{
		preferences: preference.NewClient(sdkCfg),
		payments:    payment.NewClient(sdkCfg),
		environment: env,
		logger:      logg,
	}, nil
}

// Environment reports the normalized gateway environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// CheckoutURL picks the redirect URL matching the client environment.
func (c *Client) CheckoutURL(pref *Preference) string {
	if pref == nil {
		return ""
	}
	if c.environment == sandboxEnv && pref.SandboxInitPoint != "" {
		return pref.SandboxInitPoint
	}
	return pref.InitPoint
}

// CreatePreference registers a hosted checkout preference.
func (c *Client) CreatePreference(ctx context.Context, req PreferenceRequest) (*Preference, error) {
	if len(req.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "preference requires at least one item")
	}
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		ctx = withIdempotencyKey(ctx, key)
	}

	c.log(ctx, "request", "create_preference", map[string]any{
		"external_reference": req.ExternalReference,
		"items":              len(req.Items),
		"excluded_types":     req.ExcludedTypes,
	})

	resp, err := c.preferences.Create(ctx, req.sdkRequest())
	if err != nil {
		mapped := mapGatewayError(err, "create_preference")
		c.log(ctx, "error", "create_preference", map[string]any{"error": mapped.Error(), "external_reference": req.ExternalReference})
		return nil, mapped
	}

	pref := &Preference{ID: resp.ID, InitPoint: resp.InitPoint, SandboxInitPoint: resp.SandboxInitPoint}
	c.log(ctx, "response", "create_preference", map[string]any{"preference_id": pref.ID})
	return pref, nil
}

// GetPayment fetches the authoritative payment record.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	id, err := strconv.Atoi(paymentID)
	if err != nil || id <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id must be numeric")
	}
	c.log(ctx, "request", "get_payment", map[string]any{"payment_id": paymentID})

	resp, err := c.payments.Get(ctx, id)
	if err != nil {
		mapped := mapGatewayError(err, "get_payment")
		c.log(ctx, "error", "get_payment", map[string]any{"error": mapped.Error(), "payment_id": paymentID})
		return nil, mapped
	}

	out := paymentFromSDK(resp)
	c.log(ctx, "response", "get_payment", map[string]any{
		"payment_id":         paymentID,
		"status":             out.Status,
		"external_reference": out.ExternalReference,
	})
	return out, nil
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("gateway %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("gateway %s", phase))
	}
}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"token", "secret", "email", "phone", "document", "identification", "card"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

// mapGatewayError turns SDK failures into coded errors. Responses carry the
// HTTP status; anything else never reached the gateway or was unreadable.
func mapGatewayError(err error, op string) error {
	var respErr *mperror.ResponseError
	if !errors.As(err, &respErr) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("gateway %s failed", op))
	}

	status := respErr.StatusCode
	msg := fmt.Sprintf("gateway %s returned %d", op, status)
	if detail := errorMessage(respErr.Message); detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, detail)
	}
	mapped := pkgerrors.New(domainCodeForStatus(status), msg)
	if status >= http.StatusInternalServerError {
		return mapped.WithDetails(map[string]any{"gateway_status": status})
	}
	return mapped
}

// errorMessage extracts the message field from a gateway error body, falling
// back to the raw text.
func errorMessage(raw string) string {
	raw = strings.TrimSpace(raw)
	var body apiErrorBody
	if raw != "" && json.Unmarshal([]byte(raw), &body) == nil && body.Message != "" {
		return body.Message
	}
	return raw
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case http.StatusBadRequest:
		return pkgerrors.CodeValidation
	case http.StatusUnprocessableEntity:
		return pkgerrors.CodeStateConflict
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = sandboxEnv
	}
	switch env {
	case sandboxEnv, productionEnv:
		return env, nil
	default:
		return "", errInvalidEnv
	}
}
