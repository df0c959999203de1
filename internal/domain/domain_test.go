package domain

import (
	stdjson "encoding/json"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		kind ValueKind
		raw  string
	}{
		{"", KindNull, ""},
		{"   ", KindNull, ""},
		{"NaN", KindNull, ""},
		{"True", KindBool, "true"},
		{"false", KindBool, "false"},
		{"42", KindInt, "42"},
		{"-7", KindInt, "-7"},
		{"19.990", KindDecimal, "19.99"},
		{"4.5", KindDecimal, "4.5"},
		{"1e3", KindDecimal, "1000"},
		{"-0", KindDecimal, "0"},
		{"007", KindString, "007"},
		{"+5", KindString, "+5"},
		{"0545010225", KindString, "0545010225"},
		{"007.5", KindString, "007.5"},
		{".5", KindString, ".5"},
		{"B07XYZ1234", KindString, "B07XYZ1234"},
		{"Sony WH-1000XM4", KindString, "Sony WH-1000XM4"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v := ParseValue(tt.in)
			assert.Equal(t, tt.kind, v.Kind())
			assert.Equal(t, tt.raw, v.String())
		})
	}
}

func TestProductMarshalJSONKeepsColumnOrder(t *testing.T) {
	columns := []string{"title", "price", "isBestSeller", "category_name"}
	p := NewProduct(3, columns, []Value{
		ParseValue(`Headphones "Pro"`),
		ParseValue("59.90"),
		ParseValue("False"),
		NullValue(),
	})

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Equal(t, `{"title":"Headphones \"Pro\"","price":59.9,"isBestSeller":false,"category_name":null}`, string(data))

	price, ok := p.Get("price")
	require.True(t, ok)
	d, ok := price.Decimal()
	require.True(t, ok)
	assert.Equal(t, "59.9", d.String())
}

func TestProductMarshalJSONIsValidForNumericLookingCells(t *testing.T) {
	for _, in := range []string{"007", "+5", "0545010225", "-0", "1e3", "12", "3.50"} {
		t.Run(in, func(t *testing.T) {
			p := NewProduct(0, []string{"asin"}, []Value{ParseValue(in)})

			data, err := json.Marshal(p)
			require.NoError(t, err)

			var decoded map[string]any
			require.NoError(t, stdjson.Unmarshal(data, &decoded), string(data))
			assert.Contains(t, decoded, "asin")
		})
	}
}

func TestValidateGranularityConfigs(t *testing.T) {
	require.NoError(t, ValidateGranularityConfigs(DefaultGranularities()))

	assert.Error(t, ValidateGranularityConfigs(nil))
	assert.Error(t, ValidateGranularityConfigs([]GranularityConfig{NewGranularityConfig(0, 10)}))
	assert.Error(t, ValidateGranularityConfigs([]GranularityConfig{NewGranularityConfig(10, 0)}))
	assert.Error(t, ValidateGranularityConfigs([]GranularityConfig{
		NewGranularityConfig(150, 10),
		NewGranularityConfig(150, 5),
	}))
}

func TestFormatGranularities(t *testing.T) {
	assert.Equal(t, "150, 1000, 6500", FormatGranularities([]Granularity{6500, 150, 1000}))
}
