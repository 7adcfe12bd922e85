package importer

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivspro/tariff-import/internal/models"
)

// fakeCatalog keeps products in memory and records writes.
type fakeCatalog struct {
	products    []models.Product
	cleared     []int
	prices      map[int]string
	priceWrites []int
	failFor     map[int]bool
}

func newFakeCatalog(products ...models.Product) *fakeCatalog {
	return &fakeCatalog{
		products: products,
		prices:   make(map[int]string),
		failFor:  make(map[int]bool),
	}
}

func (f *fakeCatalog) FindByBarcodes(_ context.Context, barcodes []string) ([]models.Product, error) {
	want := make(map[string]bool, len(barcodes))
	for _, bc := range barcodes {
		want[bc] = true
	}
	var out []models.Product
	for _, p := range f.products {
		if p.Barcode != nil && want[*p.Barcode] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeCatalog) ClearBarcodes(_ context.Context, ids []int) error {
	f.cleared = append(f.cleared, ids...)
	for i := range f.products {
		for _, id := range ids {
			if f.products[i].ID == id {
				f.products[i].Barcode = nil
			}
		}
	}
	return nil
}

func (f *fakeCatalog) UpdateTemplatePrice(_ context.Context, templateID int, price string) error {
	if f.failFor[templateID] {
		return fmt.Errorf("write failed for template %d", templateID)
	}
	f.prices[templateID] = price
	f.priceWrites = append(f.priceWrites, templateID)
	return nil
}

func product(id, tmplID int, name, barcode string) models.Product {
	return models.Product{ID: id, TemplateID: tmplID, Name: name, Barcode: &barcode}
}

func testProvider() *models.Provider {
	return &models.Provider{
		CSVDelimiter:     ";",
		CSVHasHeader:     true,
		DecimalSeparator: ",",
		BarcodeColumns:   []string{"ean13"},
		PriceColumn:      "prix",
	}
}

func TestImportFileUpdatesPrices(t *testing.T) {
	cat := newFakeCatalog(
		product(1, 10, "Widget", "111"),
		product(2, 20, "Gadget", "222"),
	)
	im := New(cat, 2, nil)

	csv := "ean13;prix\n111;12,50\n222;8,999\n"
	res, err := im.ImportFile(context.Background(), testProvider(), "tarif.csv", strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, 2, res.TotalLines)
	assert.Equal(t, 2, res.SuccessCount)
	assert.Equal(t, 0, res.ErrorCount)
	assert.Equal(t, "12.5", cat.prices[10])
	// rounded to 2 decimals, half away from zero
	assert.Equal(t, "9", cat.prices[20])
}

func TestImportFileDedupFirstWins(t *testing.T) {
	cat := newFakeCatalog(product(1, 10, "Widget", "111"))
	im := New(cat, 2, nil)

	// Same (ref, barcode) pair twice: second occurrence is skipped, so
	// the first price survives.
	csv := "ean13;prix;ref\n111;5,00;A1\n111;9,00;A1\n"
	res, err := im.ImportFile(context.Background(), testProvider(), "t.csv", strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, 1, res.DedupCount)
	assert.Equal(t, 1, res.SuccessCount)
	assert.Equal(t, "5", cat.prices[10])
}

func TestImportFileLastPriceWinsPerTemplate(t *testing.T) {
	cat := newFakeCatalog(
		product(1, 10, "Widget A", "111"),
		product(2, 10, "Widget B", "222"),
	)
	im := New(cat, 2, nil)

	// Different barcodes, same template: the later row wins.
	csv := "ean13;prix\n111;5,00\n222;7,00\n"
	res, err := im.ImportFile(context.Background(), testProvider(), "t.csv", strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, 1, res.SuccessCount)
	assert.Equal(t, "7", cat.prices[10])
}

func TestImportFileConflictClearsAndExcludes(t *testing.T) {
	cat := newFakeCatalog(
		product(1, 10, "P1", "5000"),
		product(2, 20, "P2", "5000"),
		product(3, 30, "OK", "333"),
	)
	im := New(cat, 2, nil)

	csv := "ean13;prix\n5000;4,00\n333;6,00\n"
	res, err := im.ImportFile(context.Background(), testProvider(), "t.csv", strings.NewReader(csv))
	require.NoError(t, err)

	assert.ElementsMatch(t, []int{1, 2}, cat.cleared)
	assert.Equal(t, 1, res.ConflictCount)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "5000", res.Conflicts[0].Barcode)
	// conflicted row excluded, clean row committed
	assert.NotContains(t, cat.prices, 10)
	assert.NotContains(t, cat.prices, 20)
	assert.Equal(t, "6", cat.prices[30])
	assert.Equal(t, 1, res.ErrorCount)
	assert.Equal(t, 0, res.NotFoundCount)
	assert.Contains(t, res.DetailHTML, "5000")
}

func TestImportFileUnknownBarcodeCounted(t *testing.T) {
	cat := newFakeCatalog(product(1, 10, "Widget", "111"))
	im := New(cat, 2, nil)

	csv := "ean13;prix\n999;2,00\n111;3,00\n"
	res, err := im.ImportFile(context.Background(), testProvider(), "t.csv", strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, 1, res.NotFoundCount)
	assert.Equal(t, 1, res.ErrorCount)
	assert.Equal(t, 1, res.SuccessCount)
}

func TestImportFileCommitFailureDoesNotBlockSiblings(t *testing.T) {
	cat := newFakeCatalog(
		product(1, 10, "A", "111"),
		product(2, 20, "B", "222"),
	)
	cat.failFor[10] = true
	im := New(cat, 2, nil)

	csv := "ean13;prix\n111;1,00\n222;2,00\n"
	res, err := im.ImportFile(context.Background(), testProvider(), "t.csv", strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, 1, res.SuccessCount)
	assert.Equal(t, 1, res.ErrorCount)
	assert.Equal(t, "2", cat.prices[20])
}

func TestImportFileBadRowsCounted(t *testing.T) {
	cat := newFakeCatalog(product(1, 10, "Widget", "111"))
	im := New(cat, 2, nil)

	// blank barcode, unparseable price, then a good row
	csv := "ean13;prix\n;1,00\n111;abc\n111;2,00\n"
	res, err := im.ImportFile(context.Background(), testProvider(), "t.csv", strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, 3, res.TotalLines)
	assert.Equal(t, 2, res.ErrorCount)
	assert.Equal(t, 1, res.SuccessCount)
}

func TestImportFileFailsWhenColumnsMissing(t *testing.T) {
	cat := newFakeCatalog()
	im := New(cat, 2, nil)

	csv := "name;qty\nfoo;3\n"
	_, err := im.ImportFile(context.Background(), testProvider(), "t.csv", strings.NewReader(csv))
	assert.Error(t, err)
}

func TestNormalizeRef(t *testing.T) {
	// accented runes are dropped, not transliterated
	assert.Equal(t, "RF12A", normalizeRef("réf 12-a"))
	assert.Equal(t, "", normalizeRef("---"))
}

func TestParsePrice(t *testing.T) {
	d, ok := parsePrice("1 234,56", ",")
	require.True(t, ok)
	assert.Equal(t, "1234.56", d.String())

	_, ok = parsePrice("", ",")
	assert.False(t, ok)
	_, ok = parsePrice("n/a", ",")
	assert.False(t, ok)
}

// templateStore serves one fixed mapping template for every provider.
type templateStore struct {
	tpl *models.MappingTemplate
	err error
}

func (s *templateStore) GetForProvider(_ context.Context, _ int) (*models.MappingTemplate, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.tpl, nil
}

func TestImportFileAppliesMappingTemplate(t *testing.T) {
	cat := newFakeCatalog(product(1, 10, "Widget", "111"))
	store := &templateStore{tpl: &models.MappingTemplate{
		Name: "grossiste-a layout",
		Columns: models.MappingColumns{
			models.MappingTargetBarcode: "gencode",
			models.MappingTargetPrice:   "tarif ht",
			models.MappingTargetRef:     "code interne",
		},
	}}
	im := New(cat, 2, store)

	// none of the provider's flat columns exist; only the template fits
	csv := "gencode;tarif ht;code interne\n111;12,50;A1\n111;15,00;A1\n"
	res, err := im.ImportFile(context.Background(), testProvider(), "t.csv", strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, 1, res.SuccessCount)
	// the bound ref target feeds dedup, so the repeated pair collapses
	assert.Equal(t, 1, res.DedupCount)
	assert.Equal(t, "12.5", cat.prices[10])
}

func TestImportFileTemplateNotMatchingHeadersFails(t *testing.T) {
	cat := newFakeCatalog()
	store := &templateStore{tpl: &models.MappingTemplate{
		Name:    "wrong layout",
		Columns: models.MappingColumns{"barcode": "gencode", "price": "tarif"},
	}}
	im := New(cat, 2, store)

	csv := "ean13;prix\n111;2,00\n"
	_, err := im.ImportFile(context.Background(), testProvider(), "t.csv", strings.NewReader(csv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrong layout")
}

func TestImportFileFallsBackToProviderColumns(t *testing.T) {
	cat := newFakeCatalog(product(1, 10, "Widget", "111"))
	im := New(cat, 2, &templateStore{err: sql.ErrNoRows})

	csv := "ean13;prix\n111;3,00\n"
	res, err := im.ImportFile(context.Background(), testProvider(), "t.csv", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, res.SuccessCount)
	assert.Equal(t, "3", cat.prices[10])
}
