package pricing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/shipfast-storefront/internal/catalog"
)

func TestApply_NoCode(t *testing.T) {
	for _, p := range catalog.Plans() {
		q, err := Apply("", p.Price)
		require.NoError(t, err)
		assert.Equal(t, 0, q.Discount, p.ID)
		assert.Equal(t, p.Price, q.FinalPrice, p.ID)
	}
}

func TestApply(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		base      int
		discount  int
		final     int
		wantError error
	}{
		{name: "percentage rounds half up", code: "LAUNCH25", base: 49, discount: 12, final: 37},
		{name: "percentage on professional", code: "launch25", base: 149, discount: 37, final: 112},
		{name: "flat on enterprise", code: "HOLIDAY10", base: 499, discount: 10, final: 489},
		{name: "flat clamped to base", code: "HOLIDAY10", base: 7, discount: 7, final: 0},
		{name: "student half price", code: " student50 ", base: 49, discount: 25, final: 24},
		{name: "retired code", code: "BETA100", base: 499, wantError: ErrInvalidDiscountCode},
		{name: "unknown code", code: "FREESTUFF", base: 49, wantError: ErrInvalidDiscountCode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Apply(tt.code, tt.base)
			if tt.wantError != nil {
				assert.True(t, errors.Is(err, tt.wantError))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.discount, q.Discount)
			assert.Equal(t, tt.final, q.FinalPrice)
			assert.Equal(t, tt.base, q.BasePrice)
		})
	}
}

func TestApply_UnknownCodeAnyPrice(t *testing.T) {
	for _, base := range []int{1, 49, 149, 499, 10000} {
		_, err := Apply("NOPE", base)
		assert.ErrorIs(t, err, ErrInvalidDiscountCode)
	}
}
