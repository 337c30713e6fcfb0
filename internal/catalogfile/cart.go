package catalogfile

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Cheertaboi/storefront-discount-service/internal/models"
)

var ErrInvalidCart = errors.New("catalogfile: invalid cart")

type cartItemEntry struct {
	ID       string `yaml:"id"`
	Category string `yaml:"category"`
	Price    amount `yaml:"price"`
	Quantity int    `yaml:"quantity"`
}

type cartDoc struct {
	Items        []cartItemEntry `yaml:"items"`
	Subtotal     *amount         `yaml:"subtotal"`
	ShippingCost amount          `yaml:"shippingCost"`
}

// ParseCart decodes a cart snapshot. The subtotal is computed from the items
// unless the document states one.
func ParseCart(data []byte) (models.CartContext, error) {
	var doc cartDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return models.CartContext{}, fmt.Errorf("catalogfile: decode cart: %w", err)
	}
	if doc.ShippingCost.IsNegative() {
		return models.CartContext{}, fmt.Errorf("%w: shippingCost must not be negative", ErrInvalidCart)
	}

	cart := models.CartContext{
		Items:        make([]models.CartItem, 0, len(doc.Items)),
		ShippingCost: doc.ShippingCost.Decimal,
	}
	for i, it := range doc.Items {
		if it.Price.IsNegative() || it.Quantity < 1 {
			return models.CartContext{}, fmt.Errorf("%w: item #%d needs price >= 0 and quantity >= 1", ErrInvalidCart, i+1)
		}
		cart.Items = append(cart.Items, models.CartItem{
			ID:       it.ID,
			Category: it.Category,
			Price:    it.Price.Decimal,
			Qty:      it.Quantity,
		})
	}

	if doc.Subtotal == nil {
		return cart.WithComputedSubtotal(), nil
	}
	if doc.Subtotal.IsNegative() {
		return models.CartContext{}, fmt.Errorf("%w: subtotal must not be negative", ErrInvalidCart)
	}
	cart.Subtotal = doc.Subtotal.Decimal
	return cart, nil
}

func LoadCart(path string) (models.CartContext, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.CartContext{}, err
	}
	return ParseCart(data)
}
