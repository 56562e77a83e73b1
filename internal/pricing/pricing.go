// Package pricing рассчитывает скидку по промокоду.
package pricing

import (
	"errors"
	"strings"

	"github.com/mmeshcher/shipfast-storefront/internal/catalog"
	"github.com/mmeshcher/shipfast-storefront/internal/model"
)

// ErrInvalidDiscountCode возвращается для неизвестного или выведенного из оборота промокода.
var ErrInvalidDiscountCode = errors.New("invalid discount code")

// Quote содержит результат расчёта цены.
type Quote struct {
	Code       string `json:"code,omitempty"`
	BasePrice  int    `json:"basePrice"`
	Discount   int    `json:"discount"`
	FinalPrice int    `json:"finalPrice"`
}

// Apply применяет промокод к базовой цене. Пустой код даёт нулевую скидку.
// Фиксированная скидка, превышающая цену, ограничивается ценой: итог не бывает отрицательным.
func Apply(code string, basePrice int) (Quote, error) {
	q := Quote{BasePrice: basePrice, FinalPrice: basePrice}

	code = strings.TrimSpace(code)
	if code == "" {
		return q, nil
	}

	d, ok := catalog.Discount(code)
	if !ok || !d.Valid {
		return Quote{}, ErrInvalidDiscountCode
	}

	var discount int
	switch d.Kind {
	case model.DiscountPercentage:
		// округление половины вверх в целых числах
		discount = (basePrice*d.Value + 50) / 100
	case model.DiscountFlat:
		discount = d.Value
	default:
		return Quote{}, ErrInvalidDiscountCode
	}

	if discount > basePrice {
		discount = basePrice
	}
	if discount < 0 {
		discount = 0
	}

	q.Code = d.Code
	q.Discount = discount
	q.FinalPrice = basePrice - discount
	return q, nil
}
