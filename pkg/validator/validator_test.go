package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type priceBody struct {
	Min   float64  `json:"min_price" validate:"gte=0"`
	Max   float64  `json:"max_price" validate:"gte=0"`
	Brand []string `json:"brands" validate:"max=2"`
	Mode  string   `json:"mode" validate:"omitempty,oneof=a b"`
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, Validate(priceBody{Min: 1, Max: 2}))
}

func TestValidate_FieldsUseJSONNames(t *testing.T) {
	err := Validate(priceBody{Min: -1, Brand: []string{"a", "b", "c"}, Mode: "z"})
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	fields := ve.Fields()
	assert.Equal(t, "must be greater than or equal to 0", fields["min_price"])
	assert.Equal(t, "must have at most 2 entries", fields["brands"])
	assert.Equal(t, "must be one of: a b", fields["mode"])
	assert.Contains(t, err.Error(), "min_price")
}

func TestRegisterValidation(t *testing.T) {
	require.NoError(t, RegisterValidation("even_len", func(s string) bool { return len(s)%2 == 0 }))

	type body struct {
		Code string `json:"code" validate:"even_len"`
	}
	assert.NoError(t, Validate(body{Code: "ab"}))

	var ve *ValidationError
	require.ErrorAs(t, Validate(body{Code: "abc"}), &ve)
	assert.Equal(t, "failed 'even_len' validation", ve.Fields()["code"])
}

func TestDecodeAndValidate(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"min_price":10,"max_price":20}`))
	var b priceBody
	require.NoError(t, DecodeAndValidate(req, &b))
	assert.Equal(t, 20.0, b.Max)
}

func TestDecodeAndValidate_UnknownField(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"colour":"red"}`))
	var b priceBody
	err := DecodeAndValidate(req, &b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode request body")
}

func TestDecodeAndValidate_Malformed(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{`))
	var b priceBody
	assert.Error(t, DecodeAndValidate(req, &b))
}
