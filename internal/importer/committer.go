package importer

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// committer applies resolved prices to product templates. Within one
// batch the last row in file order wins per template; a failed write
// never blocks the other templates.
type committer struct {
	catalog  Catalog
	decimals int32
}

func (c *committer) commit(ctx context.Context, rows []pendingRow, res *resolution, stats *Stats) {
	byTemplate := make(map[int]decimal.Decimal)
	order := make([]int, 0)

	for _, row := range rows {
		if row.Barcode == "" {
			stats.ErrorCount++
			continue
		}
		tmplID, ok := res.templateByBarcode[row.Barcode]
		if !ok {
			stats.ErrorCount++
			if !res.conflicted[row.Barcode] {
				stats.NotFoundCount++
			}
			continue
		}
		if _, seen := byTemplate[tmplID]; !seen {
			order = append(order, tmplID)
		}
		byTemplate[tmplID] = row.Price
	}

	for _, tmplID := range order {
		price := byTemplate[tmplID].Round(c.decimals)
		if err := c.catalog.UpdateTemplatePrice(ctx, tmplID, price.String()); err != nil {
			stats.ErrorCount++
			log.Error().Err(err).Int("template_id", tmplID).Msg("price update failed")
			continue
		}
		stats.SuccessCount++
	}
}
