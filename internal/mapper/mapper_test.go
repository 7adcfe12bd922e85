package mapper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveCaseInsensitive(t *testing.T) {
	m, err := Resolve([]string{"EAN13", "Libelle", "Prix HT"}, []string{"ean13", "gencod"}, "prix ht")
	require.NoError(t, err)

	require.Len(t, m.Barcodes, 1)
	assert.Equal(t, 0, m.Barcodes[0].Index)
	assert.Equal(t, 2, m.Price.Index)
}

func TestResolveFailsWithoutBarcodeColumn(t *testing.T) {
	_, err := Resolve([]string{"name", "price"}, []string{"ean13", "gencod"}, "price")
	assert.Error(t, err)
}

func TestResolveFailsWithoutPriceColumn(t *testing.T) {
	_, err := Resolve([]string{"ean13", "name"}, []string{"ean13"}, "tarif")
	assert.Error(t, err)
}

func TestVirtualColumnsAlwaysResolve(t *testing.T) {
	m, err := Resolve([]string{"ean13"}, []string{"ean13"}, "date_du_jour")
	require.NoError(t, err)
	assert.Equal(t, VirtualDateDuJour, m.Price.Virtual)

	ctx := Context{FileName: "tarif.csv", Today: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)}
	v, ok := m.PriceValue([]string{"123"}, ctx)
	require.True(t, ok)
	assert.Equal(t, "2026-03-14", v)
}

func TestBarcodeValuePriorityOrder(t *testing.T) {
	m, err := Resolve([]string{"gencod", "ean13", "prix"}, []string{"ean13", "gencod"}, "prix")
	require.NoError(t, err)

	// ean13 is listed first so it wins even though gencod is column 0.
	v, ok := m.BarcodeValue([]string{"111", "222", "1.00"}, Context{})
	require.True(t, ok)
	assert.Equal(t, "222", v)

	// Empty ean13 cell falls through to gencod.
	v, ok = m.BarcodeValue([]string{"111", "  ", "1.00"}, Context{})
	require.True(t, ok)
	assert.Equal(t, "111", v)
}

func TestRefClean(t *testing.T) {
	assert.Equal(t, "TARIF2026A", RefClean("tarif_2026-a.csv"))
	assert.Equal(t, "LISTE", RefClean("/in/liste.CSV"))
	assert.Equal(t, "ATTACHMENT", RefClean("attachment"))
}

func TestResolveTemplate(t *testing.T) {
	headers := []string{"Gencode", "Tarif HT", "Code Interne"}
	m, err := ResolveTemplate(headers, map[string]string{
		"barcode": "gencode",
		"price":   "tarif ht",
		"ref":     "code interne",
		"valid":   "date_du_jour",
	})
	require.NoError(t, err)

	ctx := Context{FileName: "t.csv", Today: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	row := []string{"3001234567890", "12,50", "A1"}

	bc, ok := m.BarcodeValue(row, ctx)
	require.True(t, ok)
	assert.Equal(t, "3001234567890", bc)

	price, ok := m.PriceValue(row, ctx)
	require.True(t, ok)
	assert.Equal(t, "12,50", price)

	ref, ok := m.BoundTarget("ref")
	require.True(t, ok)
	v, ok := ref.Value(row, ctx)
	require.True(t, ok)
	assert.Equal(t, "A1", v)

	// free-form targets can bind virtual columns
	valid, ok := m.BoundTarget("valid")
	require.True(t, ok)
	v, ok = valid.Value(row, ctx)
	require.True(t, ok)
	assert.Equal(t, "2024-03-01", v)
}

func TestResolveTemplateRequiresBarcodeAndPrice(t *testing.T) {
	headers := []string{"gencode", "tarif"}

	_, err := ResolveTemplate(headers, map[string]string{"price": "tarif"})
	assert.ErrorContains(t, err, "barcode")

	_, err = ResolveTemplate(headers, map[string]string{"barcode": "gencode"})
	assert.ErrorContains(t, err, "price")

	_, err = ResolveTemplate(headers, map[string]string{"barcode": "missing", "price": "tarif"})
	assert.ErrorContains(t, err, "missing")
}
