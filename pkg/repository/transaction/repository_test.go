package transaction

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageRequest(t *testing.T) {
	tests := []struct {
		name    string
		page    PageRequest
		wantErr bool
		offset  int
	}{
		{"first page", PageRequest{Index: 0, Size: 20}, false, 0},
		{"third page", PageRequest{Index: 2, Size: 10}, false, 20},
		{"max size", PageRequest{Index: 0, Size: MaxPageSize}, false, 0},
		{"negative index", PageRequest{Index: -1, Size: 10}, true, 0},
		{"zero size", PageRequest{Index: 0, Size: 0}, true, 0},
		{"too large", PageRequest{Index: 0, Size: MaxPageSize + 1}, true, 0},
		{"last safe index", PageRequest{Index: MaxIndex(20), Size: 20}, false, MaxIndex(20) * 20},
		{"offset overflows", PageRequest{Index: MaxIndex(20) + 1, Size: 20}, true, 0},
		{"max int index", PageRequest{Index: math.MaxInt, Size: 1}, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.page.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPage)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.offset, tt.page.Offset())
		})
	}
}
