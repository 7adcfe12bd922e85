package importer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"html"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ivspro/tariff-import/internal/csvstream"
	"github.com/ivspro/tariff-import/internal/mapper"
	"github.com/ivspro/tariff-import/internal/models"
)

// Stats are the per-file counters surfaced in the import log.
type Stats struct {
	TotalLines    int `json:"totalLines"`
	SuccessCount  int `json:"successCount"`
	ErrorCount    int `json:"errorCount"`
	DedupCount    int `json:"dedupCount"`
	ConflictCount int `json:"conflictCount"`
	NotFoundCount int `json:"notFoundCount"`
}

// Result is the outcome of importing one file.
type Result struct {
	Stats
	RefClean   string
	Conflicts  []Conflict
	DetailHTML string
	Duration   time.Duration
}

// MappingStore looks up the free-form mapping template bound to a
// provider. sql.ErrNoRows means the provider has none.
type MappingStore interface {
	GetForProvider(ctx context.Context, providerID int) (*models.MappingTemplate, error)
}

// FileImporter streams one tariff file end to end: parse, map, dedup,
// resolve barcodes in batches, commit prices.
type FileImporter struct {
	resolver  resolver
	committer committer
	mappings  MappingStore
}

// New builds a file importer committing prices rounded to the given
// currency precision. A nil mapping store disables template mappings.
func New(catalog Catalog, currencyDecimals int, mappings MappingStore) *FileImporter {
	return &FileImporter{
		resolver:  resolver{catalog: catalog},
		committer: committer{catalog: catalog, decimals: int32(currencyDecimals)},
		mappings:  mappings,
	}
}

// resolveMapping picks the column mapping for one file: a template bound
// to the provider wins; otherwise the provider's flat column
// configuration applies. A template that does not fit the file's headers
// is an error, not a silent fallback.
func (im *FileImporter) resolveMapping(ctx context.Context, p *models.Provider, headers []string) (*mapper.Mapping, error) {
	if im.mappings != nil {
		tpl, err := im.mappings.GetForProvider(ctx, p.ID)
		switch {
		case err == nil:
			m, terr := mapper.ResolveTemplate(headers, tpl.Columns)
			if terr != nil {
				return nil, fmt.Errorf("mapping template %q: %w", tpl.Name, terr)
			}
			log.Debug().Str("template", tpl.Name).Int("provider_id", p.ID).Msg("mapping template applied")
			return m, nil
		case !errors.Is(err, sql.ErrNoRows):
			log.Warn().Err(err).Int("provider_id", p.ID).Msg("mapping template lookup failed, using provider columns")
		}
	}
	return mapper.Resolve(headers, p.BarcodeColumns, p.PriceColumn)
}

// ImportFile consumes the stream and applies its prices. Row-level
// problems are counted, never fatal; an error return means the file
// itself was unusable (unreadable, no mappable columns) or storage
// failed mid-run.
func (im *FileImporter) ImportFile(ctx context.Context, p *models.Provider, fileName string, r io.Reader) (*Result, error) {
	start := time.Now()

	reader, err := csvstream.New(r, csvstream.Options{
		Delimiter: p.Delimiter(),
		HasHeader: p.CSVHasHeader,
	})
	if err != nil {
		return nil, fmt.Errorf("open csv stream: %w", err)
	}

	m, err := im.resolveMapping(ctx, p, reader.Headers())
	if err != nil {
		return nil, fmt.Errorf("map columns: %w", err)
	}
	fctx := mapper.Context{FileName: fileName, Today: time.Now()}
	refSrc, hasRefCol := resolveRefSource(m)
	fileRef := mapper.RefClean(fileName)

	res := &Result{RefClean: fileRef}
	dedup := newDeduper()
	var pending []pendingRow

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		resolved, err := im.resolver.resolve(ctx, pending)
		if err != nil {
			return err
		}
		res.Conflicts = append(res.Conflicts, resolved.conflicts...)
		res.ConflictCount += len(resolved.conflicts)
		im.committer.commit(ctx, pending, resolved, &res.Stats)
		pending = pending[:0]
		return nil
	}

	for {
		row, ok := reader.Next()
		if !ok {
			break
		}
		res.TotalLines++
		if row.Err != nil {
			res.ErrorCount++
			continue
		}

		barcode, ok := m.BarcodeValue(row.Values, fctx)
		if !ok {
			res.ErrorCount++
			continue
		}
		rawPrice, ok := m.PriceValue(row.Values, fctx)
		if !ok {
			res.ErrorCount++
			continue
		}
		price, ok := parsePrice(rawPrice, p.DecimalSeparator)
		if !ok {
			res.ErrorCount++
			continue
		}

		ref := fileRef
		if hasRefCol {
			if v, ok := refSrc.Value(row.Values, fctx); ok {
				ref = v
			}
		}
		if dedup.IsDuplicate(normalizeRef(ref), barcode) {
			res.DedupCount++
			continue
		}

		pending = append(pending, pendingRow{Line: row.Line, Barcode: barcode, Price: price})
		if len(pending) >= batchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	res.Duration = time.Since(start)
	res.DetailHTML = buildDetailHTML(res, fctx)

	log.Info().
		Str("file", fileName).
		Int("total", res.TotalLines).
		Int("updated", res.SuccessCount).
		Int("errors", res.ErrorCount).
		Int("dedup", res.DedupCount).
		Int("conflicts", res.ConflictCount).
		Dur("duration", res.Duration).
		Msg("file imported")
	return res, nil
}

// buildDetailHTML renders the "rules applied" block shown alongside a
// log record.
func buildDetailHTML(res *Result, fctx mapper.Context) string {
	var b strings.Builder
	b.WriteString("<h5>Rules applied</h5>")
	fmt.Fprintf(&b, "<p>ref_clean: %s</p>", html.EscapeString(res.RefClean))
	fmt.Fprintf(&b, "<p>date_du_jour: %s</p>", fctx.Today.Format("2006-01-02"))
	fmt.Fprintf(&b, "<p>Duplicates skipped (ref+barcode): %d</p>", res.DedupCount)
	if len(res.Conflicts) > 0 {
		b.WriteString("<h5>Barcode conflicts</h5><ul>")
		for _, c := range res.Conflicts {
			names := make([]string, 0, len(c.Products))
			for _, p := range c.Products {
				names = append(names, p.Name)
			}
			fmt.Fprintf(&b, "<li>%s: %s</li>",
				html.EscapeString(c.Barcode),
				html.EscapeString(strings.Join(names, ", ")))
		}
		b.WriteString("</ul>")
	}
	fmt.Fprintf(&b, "<p>Total lines: %d</p><p>Updated products: %d</p><p>Errors: %d</p>",
		res.TotalLines, res.SuccessCount, res.ErrorCount)
	return b.String()
}
