package catalogfile_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Cheertaboi/storefront-discount-service/internal/catalogfile"
	"github.com/Cheertaboi/storefront-discount-service/internal/models"
)

const sampleCatalog = `
discounts:
  - code: save10
    type: percentage
    value: 10
    maxDiscountUSD: "50"
    stackable: true
  - code: ELEC15
    type: percentage
    value: 15
    scope: category
    category: electronics
    minPurchaseUSD: 100
    validUntil: "2030-01-01T00:00:00Z"
  - code: OLD
    type: fixed
    value: 19.99
    active: false
    usageLimit: 5
    usageCount: 5
`

func TestParseCatalog(t *testing.T) {
	t.Parallel()

	c, err := catalogfile.ParseCatalog([]byte(sampleCatalog))
	require.NoError(t, err)
	require.Equal(t, 3, c.Len())

	got, err := c.GetByCodes(context.Background(), []string{"SAVE10", " elec15 ", "missing"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	save := got[0]
	require.Equal(t, "SAVE10", save.Code)
	require.True(t, save.IsActive)
	require.True(t, save.Stackable)
	require.True(t, save.MaxDiscountUSD.Valid)
	require.True(t, save.MaxDiscountUSD.Decimal.Equal(decimal.NewFromInt(50)))

	elec := got[1]
	require.Equal(t, models.ScopeCategory, elec.Target.Scope())
	require.Equal(t, "electronics", elec.Target.Category())
	require.False(t, elec.Stackable)
	require.NotNil(t, elec.ValidUntil)
	require.True(t, elec.MinPurchaseUSD.Equal(decimal.NewFromInt(100)))

	active, err := c.List(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, active, 2)
	require.Equal(t, "ELEC15", active[0].Code)
	require.Equal(t, "SAVE10", active[1].Code)

	all, err := c.List(context.Background(), false)
	require.NoError(t, err)
	old := all[1]
	require.Equal(t, "OLD", old.Code)
	require.False(t, old.IsActive)
	require.True(t, old.Value.Equal(decimal.RequireFromString("19.99")), "got %s", old.Value)
	require.NotNil(t, old.UsageLimit)
	require.Equal(t, 5, *old.UsageLimit)
}

func TestParseCatalogErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		doc     string
		wantErr error
	}{
		{name: "category without key", doc: "discounts:\n  - {code: A, type: fixed, value: 1, scope: category}", wantErr: models.ErrMissingCategory},
		{name: "percentage over 100", doc: "discounts:\n  - {code: A, type: percentage, value: 120}", wantErr: models.ErrMalformed},
		{name: "unknown type", doc: "discounts:\n  - {code: A, type: bogo, value: 1}", wantErr: models.ErrMalformed},
		{name: "duplicate after normalization", doc: "discounts:\n  - {code: a, type: fixed, value: 1}\n  - {code: A, type: fixed, value: 2}", wantErr: catalogfile.ErrDuplicateCode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := catalogfile.ParseCatalog([]byte(tt.doc))
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := catalogfile.ParseCatalog([]byte("discounts:\n  - {code: A, type: fixed, value: abc}"))
	require.Error(t, err)
	_, err = catalogfile.ParseCatalog([]byte("discounts:\n  - {code: A, type: fixed, value: 1, validFrom: tomorrow}"))
	require.Error(t, err)
}

func TestCatalogIsReadOnly(t *testing.T) {
	t.Parallel()

	c, err := catalogfile.ParseCatalog([]byte("discounts: []"))
	require.NoError(t, err)

	_, err = c.Create(context.Background(), models.Discount{Code: "X"})
	require.ErrorIs(t, err, catalogfile.ErrReadOnly)
}

func TestParseCart(t *testing.T) {
	t.Parallel()

	cart, err := catalogfile.ParseCart([]byte(`
items:
  - {id: tv, category: electronics, price: 199.99, quantity: 1}
  - {id: tee, category: clothing, price: "12.50", quantity: 2}
shippingCost: 7.5
`))
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)
	require.Equal(t, 2, cart.Items[1].Qty)
	require.True(t, cart.Subtotal.Equal(decimal.RequireFromString("224.99")), "computed subtotal %s", cart.Subtotal)
	require.True(t, cart.ShippingCost.Equal(decimal.RequireFromString("7.5")))

	stated, err := catalogfile.ParseCart([]byte("items: []\nsubtotal: 40\n"))
	require.NoError(t, err)
	require.True(t, stated.Subtotal.Equal(decimal.NewFromInt(40)), "stated subtotal must be kept")

	for _, doc := range []string{
		"items:\n  - {id: a, price: 1, quantity: 0}",
		"items:\n  - {id: a, price: -1, quantity: 1}",
		"shippingCost: -1",
		"subtotal: -3",
	} {
		_, err := catalogfile.ParseCart([]byte(doc))
		require.ErrorIs(t, err, catalogfile.ErrInvalidCart, doc)
	}
}

func TestLoadFromDisk(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "discounts.yaml")
	cartPath := filepath.Join(dir, "cart.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte(sampleCatalog), 0o600))
	require.NoError(t, os.WriteFile(cartPath, []byte("items:\n  - {id: a, price: 10, quantity: 1}\n"), 0o600))

	c, err := catalogfile.LoadCatalog(catalogPath)
	require.NoError(t, err)
	require.Equal(t, 3, c.Len())

	cart, err := catalogfile.LoadCart(cartPath)
	require.NoError(t, err)
	require.True(t, cart.Subtotal.Equal(decimal.NewFromInt(10)))

	_, err = catalogfile.LoadCatalog(filepath.Join(dir, "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
