package currency

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidFormat(t *testing.T) {
	tests := []struct {
		code  string
		valid bool
	}{
		{"USD", true},
		{"CHF", true},
		{"XYZ", true},
		{"usd", false},
		{"US", false},
		{"USDT", false},
		{"", false},
		{"U5D", false},
		{" USD", false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidFormat(tt.code))
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "GBP", Normalize(" gbp "))
	assert.True(t, IsValidFormat(Normalize("chf")))
}

func TestLookup(t *testing.T) {
	meta, ok := Lookup("JPY")
	assert.True(t, ok)
	assert.Equal(t, 0, meta.Decimals)

	_, ok = Lookup("XXX")
	assert.False(t, ok)

	assert.Contains(t, Known(), DefaultBase)
}
