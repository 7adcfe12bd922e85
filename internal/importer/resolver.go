package importer

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/ivspro/tariff-import/internal/models"
)

// Barcode batches stay between these bounds: large enough to amortize
// the lookup round-trip, small enough to keep the IN set reasonable.
const (
	batchSize    = 2000
	maxBatchSize = 5000
)

// Catalog is the slice of product storage the import engine needs.
type Catalog interface {
	FindByBarcodes(ctx context.Context, barcodes []string) ([]models.Product, error)
	ClearBarcodes(ctx context.Context, productIDs []int) error
	UpdateTemplatePrice(ctx context.Context, templateID int, price string) error
}

// Conflict records one barcode owned by two or more products. All
// owners get their barcode cleared and the file's rows carrying it are
// excluded from the run.
type Conflict struct {
	Barcode  string           `json:"barcode"`
	Products []models.Product `json:"products"`
}

// resolver translates barcodes to product templates one batch at a time.
type resolver struct {
	catalog Catalog
}

// resolution maps each usable barcode of one batch to its single owning
// template, after conflicts were neutralized.
type resolution struct {
	templateByBarcode map[string]int
	conflicted        map[string]bool
	conflicts         []Conflict
}

func (r *resolver) resolve(ctx context.Context, rows []pendingRow) (*resolution, error) {
	uniq := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if row.Barcode != "" {
			uniq[row.Barcode] = struct{}{}
		}
	}
	if len(uniq) == 0 {
		return &resolution{templateByBarcode: map[string]int{}}, nil
	}
	if len(uniq) > maxBatchSize {
		return nil, fmt.Errorf("barcode batch too large: %d > %d", len(uniq), maxBatchSize)
	}

	barcodes := make([]string, 0, len(uniq))
	for bc := range uniq {
		barcodes = append(barcodes, bc)
	}
	sort.Strings(barcodes)

	products, err := r.catalog.FindByBarcodes(ctx, barcodes)
	if err != nil {
		return nil, fmt.Errorf("resolve barcodes: %w", err)
	}

	owners := make(map[string][]models.Product)
	for _, p := range products {
		if p.Barcode == nil {
			continue
		}
		owners[*p.Barcode] = append(owners[*p.Barcode], p)
	}

	res := &resolution{
		templateByBarcode: make(map[string]int, len(owners)),
		conflicted:        make(map[string]bool),
	}
	var conflictIDs []int
	for _, bc := range barcodes {
		ps := owners[bc]
		switch len(ps) {
		case 0:
			// not found, counted per row by the caller
		case 1:
			res.templateByBarcode[bc] = ps[0].TemplateID
		default:
			res.conflicted[bc] = true
			res.conflicts = append(res.conflicts, Conflict{Barcode: bc, Products: ps})
			for _, p := range ps {
				conflictIDs = append(conflictIDs, p.ID)
			}
		}
	}

	if len(conflictIDs) > 0 {
		if err := r.catalog.ClearBarcodes(ctx, conflictIDs); err != nil {
			return nil, fmt.Errorf("clear conflicted barcodes: %w", err)
		}
		for _, c := range res.conflicts {
			log.Warn().
				Str("barcode", c.Barcode).
				Int("products", len(c.Products)).
				Msg("barcode shared by several products, cleared on all owners")
		}
	}
	return res, nil
}
