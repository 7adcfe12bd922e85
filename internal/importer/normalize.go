package importer

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ivspro/tariff-import/internal/mapper"
	"github.com/ivspro/tariff-import/internal/models"
)

// refSynonyms are the header names, checked in order, that may carry a
// supplier reference. When none is present the file-derived ref_clean
// value stands in.
var refSynonyms = []string{
	"référence", "reference", "réf", "ref", "default_code", "sku",
	"code article", "article", "reference fournisseur",
}

// rowKey is the intra-file deduplication key.
type rowKey struct {
	ref     string
	barcode string
}

// pendingRow is one usable data row awaiting barcode resolution.
type pendingRow struct {
	Line    int
	Barcode string
	Price   decimal.Decimal
}

// normalizeRef uppercases a reference and strips everything outside
// A-Z0-9, so "réf 12-a" and "REF12A" collide as intended.
func normalizeRef(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// resolveRefSource finds the reference column. An explicit template
// binding wins; otherwise the known header synonyms are scanned in order.
func resolveRefSource(m *mapper.Mapping) (mapper.Source, bool) {
	if src, ok := m.BoundTarget(models.MappingTargetRef); ok {
		return src, true
	}
	for _, name := range refSynonyms {
		if src, ok := m.ResolveTarget(name); ok {
			return src, true
		}
	}
	return mapper.Source{}, false
}

// parsePrice turns a raw price cell into a decimal. The configured
// decimal separator is mapped to '.' and digit-grouping spaces are
// dropped, so "1 234,56" parses under a ',' separator.
func parsePrice(raw, decSep string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Decimal{}, false
	}
	if decSep != "" && decSep != "." {
		s = strings.ReplaceAll(s, decSep, ".")
	}
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// deduper keeps first-wins state over (normalized ref, barcode) pairs
// for one file.
type deduper struct {
	seen map[rowKey]struct{}
}

func newDeduper() *deduper {
	return &deduper{seen: make(map[rowKey]struct{})}
}

// IsDuplicate records the pair and reports whether it was already seen.
// Pairs missing either component never count as duplicates.
func (d *deduper) IsDuplicate(normRef, barcode string) bool {
	if normRef == "" || barcode == "" {
		return false
	}
	key := rowKey{ref: normRef, barcode: barcode}
	if _, ok := d.seen[key]; ok {
		return true
	}
	d.seen[key] = struct{}{}
	return false
}
