package mercadopago

import (
	"context"
	"net/http"
	"net/url"
)

type idempotencyKeyCtx struct{}

func withIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKeyCtx{}, key)
}

// routedTransport points SDK requests at the configured API host and swaps
// the SDK's random idempotency key for the caller's when one is set.
type routedTransport struct {
	base   http.RoundTripper
	target *url.URL
}

func routedClient(hc *http.Client, target *url.URL) *http.Client {
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	routed := *hc
	routed.Transport = &routedTransport{base: base, target: target}
	return &routed
}

func (t *routedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	key, _ := req.Context().Value(idempotencyKeyCtx{}).(string)
	rewrite := t.target != nil && (req.URL.Scheme != t.target.Scheme || req.URL.Host != t.target.Host)
	if !rewrite && key == "" {
		return t.base.RoundTrip(req)
	}

	out := req.Clone(req.Context())
	if rewrite {
		out.URL.Scheme = t.target.Scheme
		out.URL.Host = t.target.Host
		out.Host = t.target.Host
	}
	if key != "" {
		out.Header.Set("X-Idempotency-Key", key)
	}
	return t.base.RoundTrip(out)
}
