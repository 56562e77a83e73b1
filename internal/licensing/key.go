// Package licensing выпускает лицензионные ключи и подписывает ссылки на скачивание.
package licensing

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/mmeshcher/shipfast-storefront/internal/catalog"
	"github.com/mmeshcher/shipfast-storefront/internal/model"
)

const emailCodeLen = 4

// KeyGenerator выпускает лицензионные ключи.
type KeyGenerator struct {
	now    func() time.Time
	random io.Reader
}

// NewKeyGenerator создаёт генератор на системных часах и криптографическом источнике случайности.
func NewKeyGenerator() *KeyGenerator {
	return &KeyGenerator{now: time.Now, random: rand.Reader}
}

// Generate выпускает ключ для тарифа и адреса покупателя.
// Уникальность гарантирует хранилище: при конфликте ключ перевыпускается.
func (g *KeyGenerator) Generate(plan model.PlanID, email string) (string, error) {
	p, ok := catalog.Plan(plan)
	if !ok {
		return "", fmt.Errorf("unknown plan %q", plan)
	}

	stamp := g.now().UnixMilli() % 100_000_000

	suffix, err := rand.Int(g.random, big.NewInt(10_000))
	if err != nil {
		return "", fmt.Errorf("read random suffix: %w", err)
	}

	return fmt.Sprintf("%s-%08d-%s-%04d", p.KeyPrefix, stamp, emailCode(email), suffix.Int64()), nil
}

func emailCode(email string) string {
	local, _, _ := strings.Cut(email, "@")

	var b strings.Builder
	for _, r := range strings.ToUpper(local) {
		if b.Len() == emailCodeLen {
			break
		}
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	for b.Len() < emailCodeLen {
		b.WriteByte('X')
	}
	return b.String()
}

// MaskKey скрывает середину ключа для журналов.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + "..." + key[len(key)-4:]
}
