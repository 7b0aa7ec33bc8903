package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPairKey(t *testing.T) {
	assert.Equal(t, "exchange_rate:USD-GBP", PairKey("USD", "GBP"))
	assert.NotEqual(t, PairKey("USD", "GBP"), PairKey("GBP", "USD"))
}
