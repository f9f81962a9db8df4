package validators

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/tech4loop/marketplace-backend/pkg/errors"
)

type sampleItem struct {
	Quantity int `json:"quantity" validate:"min=1"`
}

type sampleBody struct {
	Email string       `json:"email" validate:"required,email"`
	State string       `json:"state" validate:"required,len=2"`
	Items []sampleItem `json:"items" validate:"required,min=1,dive"`
}

func TestDecodeJSONBodyReportsFieldDetails(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"email":"nope","state":"RON","items":[{"quantity":0}]}`))
	var body sampleBody
	err := DecodeJSONBody(req, &body)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details := typed.Details().(map[string]string)
	assert.Equal(t, "must be a valid email", details["email"])
	assert.Equal(t, "must have length 2", details["state"])
	assert.Equal(t, "must be at least 1", details["items[0].quantity"])
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"email":"a@b.co","state":"RO","items":[{"quantity":1}],"extra":true}`))
	var body sampleBody
	err := DecodeJSONBody(req, &body)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseQueryDate(t *testing.T) {
	req := httptest.NewRequest("GET", "/?start=2024-03-01&end=03/05/2024", nil)

	start, err := ParseQueryDate(req, "start")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), start)

	_, err = ParseQueryDate(req, "end")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = ParseQueryDate(req, "missing")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseQueryIntBounds(t *testing.T) {
	req := httptest.NewRequest("GET", "/?limit=500", nil)
	_, err := ParseQueryInt(req, "limit", 20, 1, 100)
	require.Error(t, err)

	v, err := ParseQueryInt(httptest.NewRequest("GET", "/", nil), "limit", 20, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 20, v)
}
